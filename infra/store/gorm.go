package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/store"
)

type entryRow struct {
	ID               string    `gorm:"primaryKey;size:64"`
	PlanID           string    `gorm:"index;size:64;not null"`
	WorkOrderID      string    `gorm:"size:64"`
	EquipmentID      string    `gorm:"index;size:64"`
	WorkerID         string    `gorm:"index;size:64"`
	StartsAt         time.Time `gorm:"index"`
	EndsAt           time.Time
	DurationNS       int64
	PriorityScore    float64
	Status           string    `gorm:"size:16"`
	Sequence         int
	Urgent           bool
	ManualAdjusted   bool
	AdjustReason     string
	AlgorithmVersion string    `gorm:"size:32"`
}

func (entryRow) TableName() string { return "schedule_entries" }

type conflictRow struct {
	ID           string    `gorm:"primaryKey;size:64"`
	PlanID       string    `gorm:"primaryKey;size:64"`
	Type         string    `gorm:"size:16"`
	Severity     string    `gorm:"size:16"`
	ResourceID   string    `gorm:"size:64"`
	EntryA       string    `gorm:"size:64"`
	EntryB       string    `gorm:"size:64"`
	OverlapStart time.Time
	OverlapEnd   time.Time
	Status       string    `gorm:"size:16"`
}

func (conflictRow) TableName() string { return "resource_conflicts" }

func toRow(e model.ScheduleEntry) entryRow {
	return entryRow{
		ID:               e.ID,
		PlanID:           e.PlanID,
		WorkOrderID:      e.WorkOrderID,
		EquipmentID:      e.EquipmentID,
		WorkerID:         e.WorkerID,
		StartsAt:         e.Start.UTC(),
		EndsAt:           e.End.UTC(),
		DurationNS:       int64(e.Duration),
		PriorityScore:    e.PriorityScore,
		Status:           string(e.Status),
		Sequence:         e.Sequence,
		Urgent:           e.Urgent,
		ManualAdjusted:   e.ManualAdjusted,
		AdjustReason:     e.AdjustReason,
		AlgorithmVersion: e.AlgorithmVersion,
	}
}

func (r entryRow) entry() model.ScheduleEntry {
	return model.ScheduleEntry{
		ID:               r.ID,
		PlanID:           r.PlanID,
		WorkOrderID:      r.WorkOrderID,
		EquipmentID:      r.EquipmentID,
		WorkerID:         r.WorkerID,
		Start:            r.StartsAt.UTC(),
		End:              r.EndsAt.UTC(),
		Duration:         time.Duration(r.DurationNS),
		PriorityScore:    r.PriorityScore,
		Status:           model.EntryStatus(r.Status),
		Sequence:         r.Sequence,
		Urgent:           r.Urgent,
		ManualAdjusted:   r.ManualAdjusted,
		AdjustReason:     r.AdjustReason,
		AlgorithmVersion: r.AlgorithmVersion,
	}
}

func toConflictRow(c model.ResourceConflict) conflictRow {
	return conflictRow{
		ID:           c.ID,
		PlanID:       c.PlanID,
		Type:         string(c.Type),
		Severity:     string(c.Severity),
		ResourceID:   c.ResourceID,
		EntryA:       c.EntryA,
		EntryB:       c.EntryB,
		OverlapStart: c.OverlapStart.UTC(),
		OverlapEnd:   c.OverlapEnd.UTC(),
		Status:       string(c.Status),
	}
}

func (r conflictRow) conflict() model.ResourceConflict {
	return model.ResourceConflict{
		ID:           r.ID,
		PlanID:       r.PlanID,
		Type:         model.ConflictType(r.Type),
		Severity:     model.Severity(r.Severity),
		ResourceID:   r.ResourceID,
		EntryA:       r.EntryA,
		EntryB:       r.EntryB,
		OverlapStart: r.OverlapStart.UTC(),
		OverlapEnd:   r.OverlapEnd.UTC(),
		Status:       model.ResolutionStatus(r.Status),
	}
}

// GormStore persists plans through gorm.
type GormStore struct {
	db *gorm.DB
}

// Connect opens a gorm connection for driver (sqlite, postgres or mysql).
func Connect(driver, dsn string, maxOpenConns int) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// NewGormStore migrates the schema and returns a store over db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&entryRow{}, &conflictRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SavePlan(ctx context.Context, planID string, entries []model.ScheduleEntry, conflicts []model.ResourceConflict) error {
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		if e.PlanID != planID {
			return fmt.Errorf("entry %s belongs to plan %q, not %q", e.ID, e.PlanID, planID)
		}
		if err := e.Validate(); err != nil {
			return err
		}
		rows = append(rows, toRow(e))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", planID).Delete(&entryRow{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, 100).Error; err != nil {
				return err
			}
		}
		return replaceConflicts(tx, planID, conflicts)
	})
}

func replaceConflicts(tx *gorm.DB, planID string, conflicts []model.ResourceConflict) error {
	if err := tx.Where("plan_id = ?", planID).Delete(&conflictRow{}).Error; err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	rows := make([]conflictRow, 0, len(conflicts))
	for _, c := range conflicts {
		c.PlanID = planID
		rows = append(rows, toConflictRow(c))
	}
	return tx.CreateInBatches(&rows, 100).Error
}

func (s *GormStore) ListEntries(ctx context.Context, q store.EntryQuery) ([]model.ScheduleEntry, error) {
	tx := s.db.WithContext(ctx).Model(&entryRow{})
	if q.PlanID != "" {
		tx = tx.Where("plan_id = ?", q.PlanID)
	}
	if q.ResourceID != "" {
		switch q.ResourceKind {
		case model.ResourceEquipment:
			tx = tx.Where("equipment_id = ?", q.ResourceID)
		case model.ResourceWorker:
			tx = tx.Where("worker_id = ?", q.ResourceID)
		case "":
			tx = tx.Where("(equipment_id = ? OR worker_id = ?)", q.ResourceID, q.ResourceID)
		default:
			return nil, fmt.Errorf("unknown resource kind %q", q.ResourceKind)
		}
	}
	if !q.From.IsZero() {
		tx = tx.Where("ends_at > ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		tx = tx.Where("starts_at < ?", q.To.UTC())
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		tx = tx.Where("status IN ?", statuses)
	}
	var rows []entryRow
	if err := tx.Order("plan_id, starts_at, sequence").Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]model.ScheduleEntry, len(rows))
	for i, r := range rows {
		res[i] = r.entry()
	}
	return res, nil
}

func (s *GormStore) GetEntry(ctx context.Context, id string) (model.ScheduleEntry, error) {
	var row entryRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ScheduleEntry{}, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	return row.entry(), nil
}

func (s *GormStore) UpdateEntries(ctx context.Context, entries ...model.ScheduleEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			var existing entryRow
			err := tx.Select("plan_id").First(&existing, "id = ?", e.ID).Error
			switch {
			case err == nil:
				e.PlanID = existing.PlanID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
			row := toRow(e)
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("save entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (s *GormStore) ReplaceConflicts(ctx context.Context, planID string, conflicts []model.ResourceConflict) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceConflicts(tx, planID, conflicts)
	})
}

func (s *GormStore) ListConflicts(ctx context.Context, planID string) ([]model.ResourceConflict, error) {
	var rows []conflictRow
	if err := s.db.WithContext(ctx).Where("plan_id = ?", planID).
		Order("overlap_start, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]model.ResourceConflict, len(rows))
	for i, r := range rows {
		res[i] = r.conflict()
	}
	return res, nil
}

func (s *GormStore) ListPlans(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&entryRow{}).Distinct("plan_id").Order("plan_id").Pluck("plan_id", &ids).Error
	return ids, err
}

func (s *GormStore) DeletePlan(ctx context.Context, planID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("plan_id = ?", planID).Delete(&entryRow{})
		if res.Error != nil {
			return res.Error
		}
		found := res.RowsAffected > 0
		res = tx.Where("plan_id = ?", planID).Delete(&conflictRow{})
		if res.Error != nil {
			return res.Error
		}
		if !found && res.RowsAffected == 0 {
			return fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
		}
		return nil
	})
}

// Close releases database resources.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
