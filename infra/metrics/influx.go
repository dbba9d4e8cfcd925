package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/shopfloor/core/metrics"
	"github.com/kilianp07/shopfloor/infra/logger"
)

// InfluxSink writes plan records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlan writes one plan_committed point.
func (s *InfluxSink) RecordPlan(rec coremetrics.PlanRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_committed").
		AddTag("plan_id", rec.PlanID).
		AddTag("algorithm", rec.Algorithm).
		AddField("entries", rec.Entries).
		AddField("conflicts", rec.Conflicts).
		AddField("aggregate_score", round3(rec.AggregateScore)).
		AddField("completion_rate", round3(rec.CompletionRate)).
		AddField("equipment_utilization", round3(rec.EquipmentUtilization)).
		AddField("worker_utilization", round3(rec.WorkerUtilization)).
		AddField("average_waiting_hours", round3(rec.AverageWaitingHours)).
		AddField("unassigned_equipment", rec.UnassignedEquipment).
		AddField("unassigned_workers", rec.UnassignedWorkers).
		AddField("elapsed_ms", round3(rec.Elapsed.Seconds()*1000)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordConflicts writes one resource_conflict point per conflict.
func (s *InfluxSink) RecordConflicts(evs []coremetrics.ConflictEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		points = append(points, write.NewPointWithMeasurement("resource_conflict").
			AddTag("plan_id", ev.PlanID).
			AddTag("type", string(ev.Type)).
			AddTag("severity", string(ev.Severity)).
			AddTag("resource_id", ev.ResourceID).
			AddField("overlap_hours", round3(ev.Overlap.Hours())).
			SetTime(ev.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordUrgent writes an urgent_insertion point.
func (s *InfluxSink) RecordUrgent(ev coremetrics.UrgentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("urgent_insertion").
		AddTag("plan_id", ev.PlanID).
		AddTag("order_id", ev.OrderID).
		AddField("entry_id", ev.EntryID).
		AddField("shifted", ev.Shifted).
		AddField("conflicts", ev.Conflicts).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
