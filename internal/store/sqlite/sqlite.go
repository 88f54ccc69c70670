// Package sqlite implements a SQLite-based instance store using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/store"
)

// DatabaseFile is the file name of the database inside the data directory.
const DatabaseFile = "lastword.db"

func init() {
	store.Register("sqlite", NewDriver)
}

var _ store.Driver = (*Driver)(nil)

// Driver implements store.Driver using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	return &Driver{dataDir: cfg.DataDir}, nil
}

func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(d.dataDir, DatabaseFile)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	d.db = db

	if err := db.WithContext(ctx).AutoMigrate(&core.Instance{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Driver) Create(ctx context.Context, inst *core.Instance) error {
	return d.db.WithContext(ctx).Create(inst).Error
}

func (d *Driver) Get(ctx context.Context, id string) (*core.Instance, error) {
	var inst core.Instance
	result := d.db.WithContext(ctx).First(&inst, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, core.ErrInstanceNotFound
		}
		return nil, result.Error
	}
	normalize(&inst)
	return &inst, nil
}

// CompareAndSwap issues a single conditional UPDATE, so the version check and the write
// are atomic even across processes sharing the database file.
func (d *Driver) CompareAndSwap(ctx context.Context, inst *core.Instance, expected int64) error {
	inst.Version = expected + 1
	result := d.db.WithContext(ctx).
		Model(&core.Instance{}).
		Where("id = ? AND version = ?", inst.ID, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(inst)
	if result.Error != nil {
		inst.Version = expected
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	inst.Version = expected
	var count int64
	if err := d.db.WithContext(ctx).Model(&core.Instance{}).Where("id = ?", inst.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return core.ErrInstanceNotFound
	}
	return core.ErrConflict
}

func (d *Driver) ListDue(ctx context.Context, now time.Time, limit int) ([]*core.Instance, error) {
	q := d.db.WithContext(ctx).
		Where("state NOT IN ?", terminalStates()).
		Where("resume_at <= ?", now.UTC()).
		Order("resume_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []*core.Instance
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return normalizeAll(list), nil
}

func (d *Driver) List(ctx context.Context, filter core.InstanceFilter) ([]*core.Instance, error) {
	q := d.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if filter.Identity != "" {
		q = q.Where("identity = ?", filter.Identity)
	}
	if len(filter.States) > 0 {
		q = q.Where("state IN ?", filter.States)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var list []*core.Instance
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return normalizeAll(list), nil
}

func (d *Driver) FindActive(ctx context.Context, identity string) (*core.Instance, error) {
	var inst core.Instance
	result := d.db.WithContext(ctx).
		Where("identity = ?", identity).
		Where("state NOT IN ?", terminalStates()).
		Order("created_at DESC").
		First(&inst)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, core.ErrInstanceNotFound
		}
		return nil, result.Error
	}
	normalize(&inst)
	return &inst, nil
}

func terminalStates() []core.State {
	return []core.State{core.StateCompleted, core.StateCancelled, core.StateFailed}
}

// normalize brings times read back from SQLite into UTC.
func normalize(inst *core.Instance) {
	inst.ResumeAt = inst.ResumeAt.UTC()
	inst.SleepUntil = inst.SleepUntil.UTC()
	inst.LeaseUntil = inst.LeaseUntil.UTC()
	inst.CreatedAt = inst.CreatedAt.UTC()
	inst.UpdatedAt = inst.UpdatedAt.UTC()
	if inst.NotifiedAt != nil {
		t := inst.NotifiedAt.UTC()
		inst.NotifiedAt = &t
	}
	if inst.ReleasedAt != nil {
		t := inst.ReleasedAt.UTC()
		inst.ReleasedAt = &t
	}
}

func normalizeAll(list []*core.Instance) []*core.Instance {
	for _, inst := range list {
		normalize(inst)
	}
	return list
}
