package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopfloor/core/model"
)

type fakeSubscriber struct {
	mu      sync.Mutex
	topic   string
	handler func(string, []byte)
	err     error
}

func (f *fakeSubscriber) Subscribe(topic string, h func(string, []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic, f.handler = topic, h
	return f.err
}

func (f *fakeSubscriber) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(topic, []byte(payload))
}

type transition struct {
	entryID string
	to      model.EntryStatus
	actor   string
	reason  string
}

type fakeHandler struct {
	mu    sync.Mutex
	calls []transition
}

func (f *fakeHandler) Transition(_ context.Context, id string, to model.EntryStatus, actor, reason string) (model.ScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, transition{id, to, actor, reason})
	if id == "locked" {
		return model.ScheduleEntry{}, model.ErrInvalidTransition
	}
	return model.ScheduleEntry{ID: id, PlanID: "p1", Status: to}, nil
}

func (f *fakeHandler) recorded() []transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transition(nil), f.calls...)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults("shopfloor/")
	assert.Equal(t, "shopfloor/progress/+", c.Topic)
	assert.Equal(t, "shopfloor-terminal", c.Actor)
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		topic   string
		payload string
		want    report
		wantErr bool
	}{
		{"id from topic", "shopfloor/progress/e1", `{"status":"in_progress"}`, report{EntryID: "e1", Status: model.EntryInProgress}, false},
		{"id from payload", "shopfloor/progress/+", `{"entry_id":"e2","status":"COMPLETED","actor":"press-3"}`,
			report{EntryID: "e2", Status: model.EntryCompleted, Actor: "press-3"}, false},
		{"bad json", "shopfloor/progress/e1", `{`, report{}, true},
		{"unknown status", "shopfloor/progress/e1", `{"status":"PAUSED"}`, report{}, true},
		{"no id", "+", `{"status":"COMPLETED"}`, report{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decode(tc.topic, []byte(tc.payload))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListenerAppliesReports(t *testing.T) {
	reg := prometheus.NewRegistry()
	sub := &fakeSubscriber{}
	h := &fakeHandler{}
	cfg := Config{}
	cfg.SetDefaults("shopfloor")
	l, err := NewListener(sub, h, cfg, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	require.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.handler != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "shopfloor/progress/+", sub.topic)

	sub.deliver("shopfloor/progress/e1", `{"status":"IN_PROGRESS","reason":"job started"}`)
	sub.deliver("shopfloor/progress/locked", `{"status":"COMPLETED"}`)
	sub.deliver("shopfloor/progress/e2", `not json`)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(l.messages.WithLabelValues("invalid")) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []transition{
		{"e1", model.EntryInProgress, "shopfloor-terminal", "job started"},
		{"locked", model.EntryCompleted, "shopfloor-terminal", ""},
	}, h.recorded())
	assert.Equal(t, 1.0, testutil.ToFloat64(l.messages.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.messages.WithLabelValues("rejected")))
	assert.NotZero(t, testutil.ToFloat64(l.last))
}

func TestListenerSubscribeError(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("not authorized")}
	l, err := NewListener(sub, &fakeHandler{}, Config{Topic: "t/+"}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.ErrorContains(t, l.Run(context.Background()), "not authorized")
}

func TestListenerDropsWhenQueueFull(t *testing.T) {
	sub := &fakeSubscriber{}
	l, err := NewListener(sub, &fakeHandler{}, Config{Topic: "t/+"}, prometheus.NewRegistry())
	require.NoError(t, err)
	for i := 0; i < queueSize+3; i++ {
		l.enqueue("t/e1", []byte(`{"status":"CONFIRMED"}`))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(l.messages.WithLabelValues("dropped")))
}

func TestNewListenerValidation(t *testing.T) {
	_, err := NewListener(nil, &fakeHandler{}, Config{Topic: "t"}, prometheus.NewRegistry())
	assert.Error(t, err)
	_, err = NewListener(&fakeSubscriber{}, &fakeHandler{}, Config{}, prometheus.NewRegistry())
	assert.Error(t, err)
}
