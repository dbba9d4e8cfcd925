package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/shopfloor/core/metrics"
	"github.com/kilianp07/shopfloor/core/model"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordPlan(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	rec := coremetrics.PlanRecord{
		PlanID:               "p1",
		Algorithm:            "GREEDY",
		Entries:              10,
		Conflicts:            2,
		AggregateScore:       51.23456,
		CompletionRate:       0.8,
		EquipmentUtilization: 0.5,
		WorkerUtilization:    0.25,
		AverageWaitingHours:  1.5,
		UnassignedWorkers:    1,
		Elapsed:              1500 * time.Microsecond,
		Time:                 now,
	}
	require.NoError(t, sink.RecordPlan(rec))

	p := write.NewPointWithMeasurement("plan_committed").
		AddTag("plan_id", "p1").
		AddTag("algorithm", "GREEDY").
		AddField("entries", 10).
		AddField("conflicts", 2).
		AddField("aggregate_score", 51.235).
		AddField("completion_rate", 0.8).
		AddField("equipment_utilization", 0.5).
		AddField("worker_utilization", 0.25).
		AddField("average_waiting_hours", 1.5).
		AddField("unassigned_equipment", 0).
		AddField("unassigned_workers", 1).
		AddField("elapsed_ms", 1.5).
		SetTime(now)
	assert.Equal(t, []string{line(p)}, bodies())
}

func TestInfluxSink_RecordConflicts(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	evs := []coremetrics.ConflictEvent{
		{PlanID: "p1", Type: model.ConflictEquipment, Severity: model.SeverityHigh, ResourceID: "eq1", Overlap: 90 * time.Minute, Time: now},
		{PlanID: "p1", Type: model.ConflictWorker, Severity: model.SeverityMedium, ResourceID: "w1", Overlap: time.Hour, Time: now},
	}
	require.NoError(t, sink.RecordConflicts(evs))
	require.NoError(t, sink.RecordConflicts(nil))

	p1 := write.NewPointWithMeasurement("resource_conflict").
		AddTag("plan_id", "p1").
		AddTag("type", "EQUIPMENT").
		AddTag("severity", "HIGH").
		AddTag("resource_id", "eq1").
		AddField("overlap_hours", 1.5).
		SetTime(now)
	p2 := write.NewPointWithMeasurement("resource_conflict").
		AddTag("plan_id", "p1").
		AddTag("type", "WORKER").
		AddTag("severity", "MEDIUM").
		AddTag("resource_id", "w1").
		AddField("overlap_hours", 1.0).
		SetTime(now)
	got := bodies()
	require.Len(t, got, 1, "one batch, no request for an empty slice")
	assert.Equal(t, line(p1)+"\n"+line(p2), got[0])
}

func TestInfluxSink_RecordUrgent(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	require.NoError(t, sink.RecordUrgent(coremetrics.UrgentEvent{
		PlanID: "p1", OrderID: "wo-9", EntryID: "e9", Shifted: 2, Conflicts: 1, Time: now,
	}))
	p := write.NewPointWithMeasurement("urgent_insertion").
		AddTag("plan_id", "p1").
		AddTag("order_id", "wo-9").
		AddField("entry_id", "e9").
		AddField("shifted", 2).
		AddField("conflicts", 1).
		SetTime(now)
	assert.Equal(t, []string{line(p)}, bodies())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	assert.IsType(t, coremetrics.NopSink{}, sink, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
