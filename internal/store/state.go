package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/custody/internal/model"
)

// timestampLayout is fixed-width UTC so ORDER BY timestamp is chronological.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// nullString maps an empty optional field to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStorageUnavailable, err)
}

// FetchAll returns the full contents of all four collections, logs newest first.
func FetchAll(ctx context.Context, db *sql.DB) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	var err error

	if snap.Departments, err = fetchDepartments(ctx, db); err != nil {
		return nil, unavailable("fetching departments", err)
	}
	if snap.Workers, err = fetchWorkers(ctx, db); err != nil {
		return nil, unavailable("fetching workers", err)
	}
	if snap.Items, err = fetchItems(ctx, db); err != nil {
		return nil, unavailable("fetching items", err)
	}
	if snap.Logs, err = fetchLogs(ctx, db); err != nil {
		return nil, unavailable("fetching logs", err)
	}

	snap.Normalize()
	return snap, nil
}

func fetchDepartments(ctx context.Context, db *sql.DB) ([]model.Department, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Department
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func fetchWorkers(ctx context.Context, db *sql.DB) ([]model.Worker, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, department_id, status, password FROM workers ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Worker
	for rows.Next() {
		var w model.Worker
		var dept, password sql.NullString
		if err := rows.Scan(&w.ID, &w.Name, &dept, &w.Status, &password); err != nil {
			return nil, err
		}
		w.DepartmentID = dept.String
		w.Password = password.String
		out = append(out, w)
	}
	return out, rows.Err()
}

func fetchItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT serial_number, status, worker_id, delivery_date, installation_date,
		        meter_number, operation_type, notes
		 FROM items ORDER BY serial_number`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		var worker, delivery, installation, meter, opType, notes sql.NullString
		if err := rows.Scan(&it.SerialNumber, &it.Status, &worker, &delivery, &installation,
			&meter, &opType, &notes); err != nil {
			return nil, err
		}
		it.WorkerID = worker.String
		it.DeliveryDate = delivery.String
		it.InstallationDate = installation.String
		it.MeterNumber = meter.String
		it.OperationType = opType.String
		it.Notes = notes.String
		out = append(out, it)
	}
	return out, rows.Err()
}

func fetchLogs(ctx context.Context, db *sql.DB) ([]model.Log, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, serial_number, worker_id, status, timestamp, meter_number, operation_type, notes
		 FROM logs ORDER BY timestamp DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Log
	for rows.Next() {
		var l model.Log
		var ts string
		var meter, opType, notes sql.NullString
		if err := rows.Scan(&l.ID, &l.SerialNumber, &l.WorkerID, &l.Status, &ts,
			&meter, &opType, &notes); err != nil {
			return nil, err
		}
		if l.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("log %s: parsing timestamp %q: %w", l.ID, ts, err)
		}
		l.MeterNumber = meter.String
		l.OperationType = opType.String
		l.Notes = notes.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// ReplaceAll discards all four collections and inserts snap in their place,
// inside one transaction. On any error nothing is changed.
func ReplaceAll(ctx context.Context, db *sql.DB, snap *model.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("beginning transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"logs", "items", "workers", "departments"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, d := range snap.Departments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO departments (id, name) VALUES (?, ?)`, d.ID, d.Name,
		); err != nil {
			return fmt.Errorf("inserting department %s: %w", d.ID, err)
		}
	}

	for _, w := range snap.Workers {
		status := w.Status
		if status == "" {
			status = model.WorkerActive
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workers (id, name, department_id, status, password) VALUES (?, ?, ?, ?, ?)`,
			w.ID, w.Name, nullString(w.DepartmentID), status, nullString(w.Password),
		); err != nil {
			return fmt.Errorf("inserting worker %s: %w", w.ID, err)
		}
	}

	for _, it := range snap.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (serial_number, status, worker_id, delivery_date, installation_date,
			                    meter_number, operation_type, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.SerialNumber, string(it.Status), nullString(it.WorkerID), nullString(it.DeliveryDate),
			nullString(it.InstallationDate), nullString(it.MeterNumber), nullString(it.OperationType),
			nullString(it.Notes),
		); err != nil {
			return fmt.Errorf("inserting item %s: %w", it.SerialNumber, err)
		}
	}

	for _, l := range snap.Logs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO logs (id, serial_number, worker_id, status, timestamp, meter_number, operation_type, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.SerialNumber, l.WorkerID, string(l.Status), formatTimestamp(l.Timestamp),
			nullString(l.MeterNumber), nullString(l.OperationType), nullString(l.Notes),
		); err != nil {
			return fmt.Errorf("inserting log %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("committing transaction", err)
	}
	return nil
}
