package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erazemk/custody/internal/model"
)

type departmentRow struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

func (departmentRow) TableName() string { return "departments" }

type workerRow struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	DepartmentID *string
	Status       string `gorm:"not null;default:active"`
	Password     *string
}

func (workerRow) TableName() string { return "workers" }

type itemRow struct {
	SerialNumber     string `gorm:"primaryKey"`
	Status           string `gorm:"not null"`
	WorkerID         *string
	DeliveryDate     *string
	InstallationDate *string
	MeterNumber      *string
	OperationType    *string
	Notes            *string
}

func (itemRow) TableName() string { return "items" }

type logRow struct {
	ID            string    `gorm:"primaryKey"`
	SerialNumber  string    `gorm:"not null"`
	WorkerID      string    `gorm:"not null"`
	Status        string    `gorm:"not null"`
	Timestamp     time.Time `gorm:"not null;index"`
	MeterNumber   *string
	OperationType *string
	Notes         *string
}

func (logRow) TableName() string { return "logs" }

type settingRow struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (settingRow) TableName() string { return "settings" }

type revokedTokenRow struct {
	JTI       string    `gorm:"primaryKey;column:jti"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (revokedTokenRow) TableName() string { return "revoked_tokens" }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// insertBatchSize bounds the number of rows per INSERT statement.
const insertBatchSize = 500

// Postgres is the remote managed backend.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres creates missing tables and returns the backend.
func NewPostgres(db *gorm.DB) (*Postgres, error) {
	err := db.AutoMigrate(
		&departmentRow{}, &workerRow{}, &itemRow{}, &logRow{}, &settingRow{}, &revokedTokenRow{},
	)
	if err != nil {
		return nil, fmt.Errorf("creating schema: %w", classify(err))
	}
	return &Postgres{db: db}, nil
}

// classify marks connection and resource failures as storage unavailability.
// Errors that did not come from the server, such as dial failures, count too.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
	}
	if len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", // connection exception
			"53", // insufficient resources
			"57": // operator intervention
			return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
		}
	}
	return err
}

// FetchAll reads the full snapshot, logs newest first.
func (p *Postgres) FetchAll(ctx context.Context) (*model.Snapshot, error) {
	db := p.db.WithContext(ctx)

	var depts []departmentRow
	if err := db.Order("id").Find(&depts).Error; err != nil {
		return nil, unavailable("fetching departments", err)
	}
	var workers []workerRow
	if err := db.Order("id").Find(&workers).Error; err != nil {
		return nil, unavailable("fetching workers", err)
	}
	var items []itemRow
	if err := db.Order("serial_number").Find(&items).Error; err != nil {
		return nil, unavailable("fetching items", err)
	}
	var logs []logRow
	if err := db.Order("timestamp DESC").Order("id").Find(&logs).Error; err != nil {
		return nil, unavailable("fetching logs", err)
	}

	snap := &model.Snapshot{
		Departments: make([]model.Department, 0, len(depts)),
		Workers:     make([]model.Worker, 0, len(workers)),
		Items:       make([]model.Item, 0, len(items)),
		Logs:        make([]model.Log, 0, len(logs)),
	}
	for _, d := range depts {
		snap.Departments = append(snap.Departments, model.Department{ID: d.ID, Name: d.Name})
	}
	for _, w := range workers {
		snap.Workers = append(snap.Workers, model.Worker{
			ID: w.ID, Name: w.Name, DepartmentID: deref(w.DepartmentID),
			Status: w.Status, Password: deref(w.Password),
		})
	}
	for _, it := range items {
		snap.Items = append(snap.Items, model.Item{
			SerialNumber:     it.SerialNumber,
			Status:           model.ItemStatus(it.Status),
			WorkerID:         deref(it.WorkerID),
			DeliveryDate:     deref(it.DeliveryDate),
			InstallationDate: deref(it.InstallationDate),
			MeterNumber:      deref(it.MeterNumber),
			OperationType:    deref(it.OperationType),
			Notes:            deref(it.Notes),
		})
	}
	for _, l := range logs {
		snap.Logs = append(snap.Logs, model.Log{
			ID: l.ID, SerialNumber: l.SerialNumber, WorkerID: l.WorkerID,
			Status:        model.ItemStatus(l.Status),
			Timestamp:     l.Timestamp.UTC(),
			MeterNumber:   deref(l.MeterNumber),
			OperationType: deref(l.OperationType),
			Notes:         deref(l.Notes),
		})
	}
	return snap, nil
}

// ReplaceAll deletes all four collections and inserts snap in one transaction.
func (p *Postgres) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	depts := make([]departmentRow, 0, len(snap.Departments))
	for _, d := range snap.Departments {
		depts = append(depts, departmentRow{ID: d.ID, Name: d.Name})
	}
	workers := make([]workerRow, 0, len(snap.Workers))
	for _, w := range snap.Workers {
		status := w.Status
		if status == "" {
			status = model.WorkerActive
		}
		workers = append(workers, workerRow{
			ID: w.ID, Name: w.Name, DepartmentID: optional(w.DepartmentID),
			Status: status, Password: optional(w.Password),
		})
	}
	items := make([]itemRow, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, itemRow{
			SerialNumber:     it.SerialNumber,
			Status:           string(it.Status),
			WorkerID:         optional(it.WorkerID),
			DeliveryDate:     optional(it.DeliveryDate),
			InstallationDate: optional(it.InstallationDate),
			MeterNumber:      optional(it.MeterNumber),
			OperationType:    optional(it.OperationType),
			Notes:            optional(it.Notes),
		})
	}
	logs := make([]logRow, 0, len(snap.Logs))
	for _, l := range snap.Logs {
		logs = append(logs, logRow{
			ID: l.ID, SerialNumber: l.SerialNumber, WorkerID: l.WorkerID,
			Status:        string(l.Status),
			Timestamp:     l.Timestamp.UTC(),
			MeterNumber:   optional(l.MeterNumber),
			OperationType: optional(l.OperationType),
			Notes:         optional(l.Notes),
		})
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"logs", "items", "workers", "departments"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		if len(depts) > 0 {
			if err := tx.CreateInBatches(depts, insertBatchSize).Error; err != nil {
				return fmt.Errorf("inserting departments: %w", err)
			}
		}
		if len(workers) > 0 {
			if err := tx.CreateInBatches(workers, insertBatchSize).Error; err != nil {
				return fmt.Errorf("inserting workers: %w", err)
			}
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(items, insertBatchSize).Error; err != nil {
				return fmt.Errorf("inserting items: %w", err)
			}
		}
		if len(logs) > 0 {
			if err := tx.CreateInBatches(logs, insertBatchSize).Error; err != nil {
				return fmt.Errorf("inserting logs: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// JWTSecret returns the signing secret. Concurrent first calls agree on one value.
func (p *Postgres) JWTSecret(ctx context.Context) (string, error) {
	candidate, err := newSecret()
	if err != nil {
		return "", err
	}

	db := p.db.WithContext(ctx)
	err = db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&settingRow{Key: jwtSecretKey, Value: candidate}).Error
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", jwtSecretKey, classify(err))
	}

	var row settingRow
	if err := db.Where("key = ?", jwtSecretKey).First(&row).Error; err != nil {
		return "", fmt.Errorf("querying %s: %w", jwtSecretKey, classify(err))
	}
	return row.Value, nil
}

// RevokeToken records jti until expiresAt and prunes expired entries.
// Tokens that already expired are not stored.
func (p *Postgres) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	now := time.Now()
	if expiresAt.Before(now) {
		return nil
	}

	db := p.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&revokedTokenRow{JTI: jti, ExpiresAt: expiresAt.UTC()}).Error
	if err != nil {
		return fmt.Errorf("revoking token: %w", classify(err))
	}

	_ = db.Where("expires_at < ?", now).Delete(&revokedTokenRow{}).Error
	return nil
}

// IsTokenRevoked reports whether jti was revoked.
func (p *Postgres) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&revokedTokenRow{}).Where("jti = ?", jti).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", classify(err))
	}
	return count > 0, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
