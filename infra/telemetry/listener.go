// Package telemetry applies progress reports sent by shop-floor terminals and
// machines over MQTT to stored schedule entries.
//
// A report is a JSON object published on <prefix>/progress/<entry id>:
//
//	{"status": "IN_PROGRESS", "actor": "press-3", "reason": "job started"}
//
// The entry id may also be carried in the payload as "entry_id".
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/infra/logger"
)

const queueSize = 100

// Subscriber delivers messages published on a topic filter.
type Subscriber interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

// StatusHandler applies a status change to a stored entry.
type StatusHandler interface {
	Transition(ctx context.Context, entryID string, to model.EntryStatus, actor, reason string) (model.ScheduleEntry, error)
}

// Config selects the progress topic.
type Config struct {
	// Topic is the subscription filter. Empty uses <prefix>/progress/+.
	Topic string `json:"topic"`
	// Actor is recorded when a report names none.
	Actor string `json:"actor"`
}

// SetDefaults derives the topic from the MQTT topic prefix.
func (c *Config) SetDefaults(prefix string) {
	if c.Topic == "" {
		c.Topic = strings.TrimSuffix(prefix, "/") + "/progress/+"
	}
	if c.Actor == "" {
		c.Actor = "shopfloor-terminal"
	}
}

type report struct {
	EntryID string            `json:"entry_id"`
	Status  model.EntryStatus `json:"status"`
	Actor   string            `json:"actor"`
	Reason  string            `json:"reason"`
}

type message struct {
	topic   string
	payload []byte
	arrived time.Time
}

// Listener consumes progress reports one at a time.
type Listener struct {
	cfg     Config
	sub     Subscriber
	handler StatusHandler
	log     logger.Logger
	queue   chan message

	messages *prometheus.CounterVec
	last     prometheus.Gauge
	latency  prometheus.Histogram
}

// NewListener prepares a listener. Metrics are registered on reg, or on the
// default registerer when reg is nil.
func NewListener(sub Subscriber, handler StatusHandler, cfg Config, reg prometheus.Registerer) (*Listener, error) {
	if sub == nil || handler == nil {
		return nil, errors.New("telemetry: subscriber and status handler are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("telemetry: topic is required")
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	l := &Listener{
		cfg:     cfg,
		sub:     sub,
		handler: handler,
		log:     logger.New("telemetry"),
		queue:   make(chan message, queueSize),
	}
	var err error
	if l.messages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfloor_progress_reports_total",
		Help: "Progress reports received from the shop floor by result",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if l.last, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shopfloor_progress_last_report_timestamp_seconds",
		Help: "Unix timestamp of the last applied progress report",
	})); err != nil {
		return nil, err
	}
	if l.latency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopfloor_progress_apply_latency_seconds",
		Help:    "Time from arrival to application of a progress report",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	return l, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Run subscribes and applies reports until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.sub.Subscribe(l.cfg.Topic, l.enqueue); err != nil {
		return err
	}
	l.log.Infof("listening for progress reports on %s", l.cfg.Topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-l.queue:
			if err := l.apply(ctx, msg); err != nil {
				l.log.Warnf("progress report on %s rejected: %v", msg.topic, err)
			}
		}
	}
}

// enqueue runs on the client goroutine. Reports arriving while the queue is
// full are dropped.
func (l *Listener) enqueue(topic string, payload []byte) {
	select {
	case l.queue <- message{topic: topic, payload: payload, arrived: time.Now()}:
	default:
		l.messages.WithLabelValues("dropped").Inc()
		l.log.Errorf("progress queue full, dropping report on %s", topic)
	}
}

func (l *Listener) apply(ctx context.Context, msg message) error {
	r, err := decode(msg.topic, msg.payload)
	if err != nil {
		l.messages.WithLabelValues("invalid").Inc()
		return err
	}
	if r.Actor == "" {
		r.Actor = l.cfg.Actor
	}
	entry, err := l.handler.Transition(ctx, r.EntryID, r.Status, r.Actor, r.Reason)
	if err != nil {
		l.messages.WithLabelValues("rejected").Inc()
		return err
	}
	l.messages.WithLabelValues("applied").Inc()
	l.last.SetToCurrentTime()
	l.latency.Observe(time.Since(msg.arrived).Seconds())
	l.log.Infow("progress applied", map[string]any{
		"entry_id": entry.ID,
		"plan_id":  entry.PlanID,
		"status":   entry.Status,
		"actor":    r.Actor,
	})
	return nil
}

func decode(topic string, payload []byte) (report, error) {
	var r report
	if err := json.Unmarshal(payload, &r); err != nil {
		return r, fmt.Errorf("decode: %w", err)
	}
	if r.EntryID == "" {
		r.EntryID = lastSegment(topic)
	}
	if r.EntryID == "" || r.EntryID == "+" {
		return r, errors.New("no entry id in topic or payload")
	}
	r.Status = model.EntryStatus(strings.ToUpper(string(r.Status)))
	if !r.Status.Valid() {
		return r, fmt.Errorf("unknown status %q", r.Status)
	}
	return r, nil
}

func lastSegment(topic string) string {
	parts := strings.Split(topic, "/")
	return parts[len(parts)-1]
}
