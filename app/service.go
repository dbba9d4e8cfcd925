package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/shopfloor/config"
	"github.com/kilianp07/shopfloor/core/adjustlog"
	"github.com/kilianp07/shopfloor/core/conflict"
	"github.com/kilianp07/shopfloor/core/engine"
	"github.com/kilianp07/shopfloor/core/events"
	coremetrics "github.com/kilianp07/shopfloor/core/metrics"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/notify"
	"github.com/kilianp07/shopfloor/core/scoring"
	"github.com/kilianp07/shopfloor/core/selector"
	"github.com/kilianp07/shopfloor/core/store"
	"github.com/kilianp07/shopfloor/infra/logger"
	"github.com/kilianp07/shopfloor/infra/metrics"
	"github.com/kilianp07/shopfloor/infra/mqtt"
	infrastore "github.com/kilianp07/shopfloor/infra/store"
	"github.com/kilianp07/shopfloor/infra/telemetry"
	"github.com/kilianp07/shopfloor/internal/eventbus"
	"github.com/kilianp07/shopfloor/pkg/export"
)

var (
	// ErrEntryClosed is returned when a completed or cancelled entry is
	// adjusted.
	ErrEntryClosed = errors.New("entry is completed or cancelled")
	// ErrNoBroker is returned by Listen when no MQTT broker is configured.
	ErrNoBroker = errors.New("no mqtt broker configured")
)

const busBuffer = 64

// activeStatuses are the statuses that still occupy resources.
var activeStatuses = []model.EntryStatus{
	model.EntryPending, model.EntryConfirmed, model.EntryInProgress, model.EntryCompleted,
}

// Deps are the collaborators of a Service. Store, Logs and Engine are
// required.
type Deps struct {
	Engine *engine.Engine
	Store  store.Store
	Logs   adjustlog.LogStore
	// Bus carries engine and service events. Nil creates a private bus.
	Bus  *eventbus.Bus[events.Event]
	Sink coremetrics.MetricsSink
	// Publisher receives notifications. Nil disables them.
	Publisher   notify.Publisher
	TopicPrefix string
	// Subscriber receives shop-floor progress reports for Listen.
	Subscriber telemetry.Subscriber
	Logger     logger.Logger
	Clock      func() time.Time
}

// Service runs scheduling operations over the engine and the stores.
type Service struct {
	engine *engine.Engine
	store  store.Store
	logs   adjustlog.LogStore
	bus    *eventbus.Bus[events.Event]
	sink   coremetrics.MetricsSink
	log    logger.Logger
	now    func() time.Time
	sub    telemetry.Subscriber

	mqtt    *mqtt.PahoClient
	cancel  context.CancelFunc
	workers []<-chan struct{}
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (svc *Service, err error) {
	var closers []io.Closer
	defer func() {
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
		}
	}()

	st, err := infrastore.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("plan store: %w", err)
	}
	closers = append(closers, st)
	logs, err := adjustlog.New(cfg.AdjustmentLog)
	if err != nil {
		return nil, fmt.Errorf("adjustment log: %w", err)
	}
	closers = append(closers, logs)
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New[events.Event](busBuffer)
	eng, err := engine.New(cfg.Engine, engine.WithLogger(logger.New("engine")), engine.WithBus(bus))
	if err != nil {
		return nil, err
	}

	var (
		pub    notify.Publisher
		sub    telemetry.Subscriber
		client *mqtt.PahoClient
	)
	if cfg.MQTT.Enabled() {
		client, err = mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		pub, sub = client, client
	}
	svc, err = NewService(Deps{
		Engine:      eng,
		Store:       st,
		Logs:        logs,
		Bus:         bus,
		Sink:        sink,
		Publisher:   pub,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Subscriber:  sub,
		Logger:      logger.New("service"),
	})
	if err != nil {
		return nil, err
	}
	svc.mqtt = client
	return svc, nil
}

// NewService wires a Service from explicit collaborators and starts the
// metrics collector and the notification forwarder.
func NewService(d Deps) (*Service, error) {
	if d.Engine == nil || d.Store == nil || d.Logs == nil {
		return nil, errors.New("service: engine, store and adjustment log are required")
	}
	s := &Service{
		engine: d.Engine,
		store:  d.Store,
		logs:   d.Logs,
		bus:    d.Bus,
		sink:   d.Sink,
		log:    d.Logger,
		now:    d.Clock,
		sub:    d.Subscriber,
	}
	if s.bus == nil {
		s.bus = eventbus.New[events.Event](busBuffer)
	}
	if s.sink == nil {
		s.sink = coremetrics.NopSink{}
	}
	if s.log == nil {
		s.log = logger.NopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.workers = append(s.workers, metrics.StartEventCollector(ctx, s.bus, s.sink))
	if d.Publisher != nil {
		prefix := d.TopicPrefix
		if prefix == "" {
			prefix = notify.DefaultTopicPrefix
		}
		fwd := notify.NewForwarder(d.Publisher, prefix, s.log)
		s.workers = append(s.workers, fwd.Start(ctx, s.bus))
	}
	return s, nil
}

// Engine returns the scheduling engine.
func (s *Service) Engine() *engine.Engine { return s.engine }

// Bus returns the event bus the service publishes on.
func (s *Service) Bus() *eventbus.Bus[events.Event] { return s.bus }

// GenerateRequest is one scheduling run. Preview runs are returned without
// being stored.
type GenerateRequest struct {
	engine.Request
	Commit bool
}

// Generate runs the engine. When committing, the plan's entries and
// conflicts replace any stored version of the plan as one batch.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (engine.Plan, error) {
	started := s.now()
	plan, err := s.engine.Run(ctx, req.Request)
	if err != nil {
		return engine.Plan{}, err
	}
	if !req.Commit {
		s.log.Debugf("preview of plan %s discarded", plan.ID)
		return plan, nil
	}
	if err := s.store.SavePlan(ctx, plan.ID, plan.Entries, plan.Conflicts); err != nil {
		return engine.Plan{}, fmt.Errorf("commit plan %s: %w", plan.ID, err)
	}
	at := s.now()
	s.bus.Publish(events.RunStateEvent{
		PlanID:    plan.ID,
		State:     events.StatePersisted,
		Algorithm: plan.AlgorithmName,
		Entries:   len(plan.Entries),
		At:        at,
	})
	s.bus.Publish(events.PlanCommittedEvent{
		PlanID:    plan.ID,
		Algorithm: plan.AlgorithmName,
		Entries:   len(plan.Entries),
		Conflicts: plan.Conflicts,
		Metrics:   plan.Metrics,
		Elapsed:   at.Sub(started),
		At:        at,
	})
	s.log.Infow("plan committed", map[string]any{
		"plan_id":   plan.ID,
		"entries":   len(plan.Entries),
		"conflicts": len(plan.Conflicts),
	})
	return plan, nil
}

// Plans lists the stored plan ids.
func (s *Service) Plans(ctx context.Context) ([]string, error) {
	return s.store.ListPlans(ctx)
}

// Entries returns the stored entries of a plan ordered by start.
func (s *Service) Entries(ctx context.Context, planID string) ([]model.ScheduleEntry, error) {
	entries, err := s.store.ListEntries(ctx, store.EntryQuery{PlanID: planID})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
	}
	return entries, nil
}

// Conflicts returns the stored conflicts of a plan.
func (s *Service) Conflicts(ctx context.Context, planID string) ([]model.ResourceConflict, error) {
	return s.store.ListConflicts(ctx, planID)
}

// Confirm moves every PENDING entry of the plan to CONFIRMED and returns the
// confirmed entries.
func (s *Service) Confirm(ctx context.Context, planID, actor string) ([]model.ScheduleEntry, error) {
	entries, err := s.Entries(ctx, planID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var (
		confirmed []model.ScheduleEntry
		logs      []model.AdjustmentLog
	)
	for _, e := range entries {
		if e.Status != model.EntryPending {
			continue
		}
		after := e
		after.Status = model.EntryConfirmed
		confirmed = append(confirmed, after)
		logs = append(logs, newLog(e, after, model.AdjustStatus, "plan confirmed", actor, now))
	}
	if len(confirmed) == 0 {
		return nil, nil
	}
	if err := s.commit(ctx, confirmed, logs); err != nil {
		return nil, err
	}
	s.log.Infof("confirmed %d entries of plan %s", len(confirmed), planID)
	return confirmed, nil
}

// AdjustRequest moves an entry manually. Nil fields are left unchanged. A
// new start without an explicit end keeps the entry's working duration.
type AdjustRequest struct {
	EntryID     string
	EquipmentID *string
	WorkerID    *string
	Start       *time.Time
	End         *time.Time
	Actor       string
	Reason      string
}

// AdjustResult is the stored entry after a manual adjustment and the plan
// conflicts that now involve it.
type AdjustResult struct {
	Entry     model.ScheduleEntry      `json:"entry"`
	Log       model.AdjustmentLog      `json:"log"`
	Conflicts []model.ResourceConflict `json:"conflicts"`
}

// Adjust applies a manual change to one entry, logs it and recomputes the
// plan conflicts.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) (AdjustResult, error) {
	before, err := s.store.GetEntry(ctx, req.EntryID)
	if err != nil {
		return AdjustResult{}, err
	}
	if before.Status.Terminal() {
		return AdjustResult{}, fmt.Errorf("adjust %s: %w", before.ID, ErrEntryClosed)
	}
	after := before
	if req.EquipmentID != nil {
		after.EquipmentID = *req.EquipmentID
	}
	if req.WorkerID != nil {
		after.WorkerID = *req.WorkerID
	}
	cal := s.engine.Calendar()
	if req.Start != nil {
		d := before.Duration
		if d <= 0 {
			d = cal.WorkingBetween(before.Start, before.End)
		}
		after.Start = cal.Snap(*req.Start)
		after.End = cal.EndTime(after.Start, d)
	}
	if req.End != nil {
		after.End = *req.End
	}
	if after.End.Before(after.Start) {
		return AdjustResult{}, fmt.Errorf("adjust %s: end %s before start %s", before.ID, after.End, after.Start)
	}
	after.ManualAdjusted = true
	after.AdjustReason = req.Reason

	rec := newLog(before, after, model.AdjustManual, req.Reason, req.Actor, s.now())
	if err := s.commit(ctx, []model.ScheduleEntry{after}, []model.AdjustmentLog{rec}); err != nil {
		return AdjustResult{}, err
	}
	conflicts, err := s.DetectConflicts(ctx, after.PlanID)
	if err != nil {
		return AdjustResult{}, err
	}
	return AdjustResult{Entry: after, Log: rec, Conflicts: conflict.Involving(conflicts, after.ID)}, nil
}

// Transition changes the status of one entry. Illegal transitions return
// model.ErrInvalidTransition. Cancelling an entry releases its resources, so
// the plan conflicts are recomputed.
func (s *Service) Transition(ctx context.Context, entryID string, to model.EntryStatus, actor, reason string) (model.ScheduleEntry, error) {
	before, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	if !before.Status.CanTransition(to) {
		return model.ScheduleEntry{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, before.Status, to)
	}
	after := before
	after.Status = to
	rec := newLog(before, after, model.AdjustStatus, reason, actor, s.now())
	if err := s.commit(ctx, []model.ScheduleEntry{after}, []model.AdjustmentLog{rec}); err != nil {
		return model.ScheduleEntry{}, err
	}
	if to == model.EntryCancelled {
		if _, err := s.DetectConflicts(ctx, after.PlanID); err != nil {
			return model.ScheduleEntry{}, err
		}
	}
	return after, nil
}

// InsertUrgent books an urgent order against every persisted booking, then
// commits the new entry, the shifted entries and their logs, and refreshes
// the conflicts of every touched plan. The returned conflicts are those
// involving the new or shifted entries, including conflicts across plans.
func (s *Service) InsertUrgent(ctx context.Context, req engine.UrgentRequest, equipment []model.Equipment, workers []model.Worker) (engine.UrgentResult, error) {
	existing, err := s.store.ListEntries(ctx, store.EntryQuery{Statuses: activeStatuses})
	if err != nil {
		return engine.UrgentResult{}, fmt.Errorf("load bookings: %w", err)
	}
	res, err := s.engine.InsertUrgent(ctx, req, existing, equipment, workers)
	if err != nil {
		return engine.UrgentResult{}, err
	}
	changed := append([]model.ScheduleEntry{res.Entry}, res.Shifted...)
	if err := s.commit(ctx, changed, res.Logs); err != nil {
		return engine.UrgentResult{}, err
	}
	plans := map[string]bool{}
	for _, e := range changed {
		if plans[e.PlanID] {
			continue
		}
		plans[e.PlanID] = true
		if _, err := s.DetectConflicts(ctx, e.PlanID); err != nil {
			return engine.UrgentResult{}, err
		}
	}

	shifted := make([]string, 0, len(res.Shifted))
	for _, e := range res.Shifted {
		shifted = append(shifted, e.ID)
	}
	s.bus.Publish(events.UrgentInsertedEvent{
		PlanID:    req.PlanID,
		Entry:     res.Entry,
		Shifted:   shifted,
		Conflicts: len(res.Conflicts),
		At:        s.now(),
	})
	return res, nil
}

// DetectConflicts recomputes the conflicts of a plan against every active
// persisted booking and replaces the stored set.
func (s *Service) DetectConflicts(ctx context.Context, planID string) ([]model.ResourceConflict, error) {
	all, err := s.store.ListEntries(ctx, store.EntryQuery{Statuses: activeStatuses})
	if err != nil {
		return nil, err
	}
	var own []string
	for _, e := range all {
		if e.PlanID == planID {
			own = append(own, e.ID)
		}
	}
	conflicts := conflict.Involving(conflict.Detect(all), own...)
	for i := range conflicts {
		conflicts[i].PlanID = planID
	}
	if err := s.store.ReplaceConflicts(ctx, planID, conflicts); err != nil {
		return nil, fmt.Errorf("store conflicts of %s: %w", planID, err)
	}
	s.log.Debugf("plan %s has %d conflicts", planID, len(conflicts))
	return conflicts, nil
}

// Compare ranks stored plans by aggregate score. orders supplies due and
// release dates; workers, when given, enable the skill match rate.
func (s *Service) Compare(ctx context.Context, planIDs []string, orders []model.WorkOrder, workers []model.Worker) (scoring.Comparison, error) {
	byID := make(map[string]model.WorkOrder, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	var skills selector.SkillLookup
	if len(workers) > 0 {
		skills = selector.NewSkillIndex(workers)
	}
	scorer := s.engine.Scorer(skills)
	ev := scoring.EvaluatorFunc(func(ctx context.Context, planID string) (scoring.PlanMetrics, error) {
		entries, err := s.Entries(ctx, planID)
		if err != nil {
			return scoring.PlanMetrics{}, err
		}
		return scorer.Evaluate(planID, entries, byID), nil
	})
	return scoring.Compare(ctx, ev, planIDs)
}

// Gantt returns the stored plan grouped by resource.
func (s *Service) Gantt(ctx context.Context, planID string) ([]export.GanttRow, error) {
	entries, err := s.Entries(ctx, planID)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.store.ListConflicts(ctx, planID)
	if err != nil {
		return nil, err
	}
	return export.Gantt(entries, conflicts), nil
}

// Reset deletes a plan's entries, conflicts and adjustment logs. It returns
// the number of purged log records.
func (s *Service) Reset(ctx context.Context, planID string) (int, error) {
	if err := s.store.DeletePlan(ctx, planID); err != nil {
		return 0, fmt.Errorf("reset %s: %w", planID, err)
	}
	n, err := s.logs.Purge(ctx, planID)
	if err != nil {
		return 0, fmt.Errorf("purge logs of %s: %w", planID, err)
	}
	s.log.Infof("plan %s reset, %d log records purged", planID, n)
	return n, nil
}

// History returns adjustment logs ordered by time.
func (s *Service) History(ctx context.Context, q adjustlog.LogQuery) ([]model.AdjustmentLog, error) {
	return s.logs.Query(ctx, q)
}

// Listen applies progress reports received from the shop floor as status
// transitions until ctx is canceled.
func (s *Service) Listen(ctx context.Context, cfg telemetry.Config) error {
	if s.sub == nil {
		return ErrNoBroker
	}
	l, err := telemetry.NewListener(s.sub, s, cfg, nil)
	if err != nil {
		return err
	}
	return l.Run(ctx)
}

// Close drains the background workers, flushes metrics and releases the
// stores and the broker connection.
func (s *Service) Close() error {
	s.bus.Close()
	for _, done := range s.workers {
		<-done
	}
	s.cancel()

	var errs []error
	if err := coremetrics.Flush(s.sink); err != nil {
		errs = append(errs, fmt.Errorf("flush metrics: %w", err))
	}
	if c, ok := s.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	errs = append(errs, s.store.Close(), s.logs.Close())
	return errors.Join(errs...)
}

// commit stores changed entries and appends their logs. Every log is also
// published as an EntryAdjustedEvent.
func (s *Service) commit(ctx context.Context, entries []model.ScheduleEntry, logs []model.AdjustmentLog) error {
	if err := s.store.UpdateEntries(ctx, entries...); err != nil {
		return fmt.Errorf("update entries: %w", err)
	}
	if err := s.logs.Append(ctx, logs...); err != nil {
		return fmt.Errorf("append adjustment logs: %w", err)
	}
	for _, l := range logs {
		s.bus.Publish(events.EntryAdjustedEvent{Log: l})
	}
	return nil
}

func newLog(before, after model.ScheduleEntry, kind model.AdjustmentKind, reason, actor string, at time.Time) model.AdjustmentLog {
	return model.AdjustmentLog{
		ID:        uuid.NewString(),
		PlanID:    after.PlanID,
		EntryID:   after.ID,
		Kind:      kind,
		Before:    before.Snapshot(),
		After:     after.Snapshot(),
		Reason:    reason,
		Actor:     actor,
		Timestamp: at,
	}
}
