package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/session"
)

// maxRangeSize caps how many serials one range operation may touch.
const maxRangeSize = 100000

// Log notes written by stock returns.
const (
	noteReturned      = "تم الإرجاع للمخزون"
	noteBulkReturned  = "تم الإرجاع للمخزون (جماعي)"
	noteWorkerDeleted = "تم حذف العامل وإرجاع عهدته للمخزون"
	summarySerial     = "N/A"
)

// ItemPatch carries optional fields for a status change. An empty field
// keeps the item's current value.
type ItemPatch struct {
	MeterNumber   string
	Notes         string
	OperationType string
}

// WorkerInput is the editable part of a worker.
type WorkerInput struct {
	Name         string
	DepartmentID string
	Password     string
	// Status is only applied on update; new workers start active.
	Status string
}

func parseRange(from, to string) (int, int, error) {
	f, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a number", model.ErrInvalidRange, from)
	}
	t, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q is not a number", model.ErrInvalidRange, to)
	}
	if f > t {
		return 0, 0, fmt.Errorf("%w: %d is greater than %d", model.ErrInvalidRange, f, t)
	}
	// The span is computed unsigned so MinInt..MaxInt cannot overflow.
	if uint64(t)-uint64(f) >= maxRangeSize {
		return 0, 0, fmt.Errorf("%w: more than %d serials", model.ErrInvalidRange, maxRangeSize)
	}
	return f, t, nil
}

// eachSerial calls fn for every serial in [f, t]. It stops at t without
// incrementing past it, so t == MaxInt terminates.
func eachSerial(f, t int, fn func(serial string)) {
	for n := f; ; n++ {
		fn(strconv.Itoa(n))
		if n == t {
			return
		}
	}
}

func (m *Manager) today() string {
	return m.now().Format(model.DateLayout)
}

func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Millisecond)
}

func (m *Manager) itemIndexLocked(serial string) int {
	for i := range m.state.Items {
		if m.state.Items[i].SerialNumber == serial {
			return i
		}
	}
	return -1
}

func (m *Manager) workerIndexLocked(id string) int {
	for i := range m.state.Workers {
		if m.state.Workers[i].ID == id {
			return i
		}
	}
	return -1
}

// prependLogsLocked adds logs ahead of the existing ones, keeping newest first.
func (m *Manager) prependLogsLocked(logs ...model.Log) {
	m.state.Logs = append(logs, m.state.Logs...)
}

// confirmed checks permission and then asks for confirmation. The lock is
// not held while the confirmer runs.
func (m *Manager) confirmed(op session.Operation, prompt string) error {
	m.mu.Lock()
	err := m.sess.Allow(op)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if !m.confirm.Confirm(prompt) {
		return model.ErrNotConfirmed
	}
	return nil
}

// AddStockRange creates an available item for every serial in [from, to]
// that does not exist yet and returns how many were created.
func (m *Manager) AddStockRange(from, to string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpAddStock); err != nil {
		return 0, err
	}
	f, t, err := parseRange(from, to)
	if err != nil {
		return 0, err
	}

	existing := make(map[string]bool, len(m.state.Items))
	for _, it := range m.state.Items {
		existing[it.SerialNumber] = true
	}

	added := 0
	eachSerial(f, t, func(serial string) {
		if existing[serial] {
			return
		}
		m.state.Items = append(m.state.Items, model.Item{SerialNumber: serial, Status: model.StatusAvailable})
		added++
	})

	if added > 0 {
		m.changedLocked()
	}
	return added, nil
}

// DeliverRange assigns every available item in [from, to] to the worker and
// returns how many moved. Missing or unavailable serials are skipped.
func (m *Manager) DeliverRange(workerID, from, to string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpDeliver); err != nil {
		return 0, err
	}
	f, t, err := parseRange(from, to)
	if err != nil {
		return 0, err
	}
	if m.workerIndexLocked(workerID) < 0 {
		return 0, nil
	}

	index := make(map[string]int, len(m.state.Items))
	for i, it := range m.state.Items {
		index[it.SerialNumber] = i
	}

	today := m.today()
	ts := m.timestamp()
	var logs []model.Log
	eachSerial(f, t, func(serial string) {
		i, ok := index[serial]
		if !ok || m.state.Items[i].Status != model.StatusAvailable {
			return
		}
		it := &m.state.Items[i]
		*it = model.Item{
			SerialNumber: it.SerialNumber,
			Status:       model.StatusAssigned,
			WorkerID:     workerID,
			DeliveryDate: today,
		}
		logs = append(logs, model.Log{
			ID:           m.newID(),
			SerialNumber: it.SerialNumber,
			WorkerID:     workerID,
			Status:       model.StatusAssigned,
			Timestamp:    ts,
		})
	})

	if len(logs) > 0 {
		m.prependLogsLocked(logs...)
		m.changedLocked()
	}
	return len(logs), nil
}

// UpdateItemStatus moves an item to status, merging the non-empty patch
// fields, and reports whether the item existed. Installing sets the
// installation date. Moving back to available clears the custody fields.
func (m *Manager) UpdateItemStatus(serial string, status model.ItemStatus, patch ItemPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpUpdateStatus); err != nil {
		return false, err
	}
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}

	i := m.itemIndexLocked(serial)
	if i < 0 {
		return false, nil
	}
	m.applyStatusLocked(i, status, patch)
	return true, nil
}

// ReportOutcome is the worker's status update for an item in their own
// custody. Installing requires a meter number and an operation type.
func (m *Manager) ReportOutcome(serial string, status model.ItemStatus, patch ItemPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpReportOutcome); err != nil {
		return false, err
	}
	switch status {
	case model.StatusInstalled:
		if strings.TrimSpace(patch.MeterNumber) == "" || strings.TrimSpace(patch.OperationType) == "" {
			return false, fmt.Errorf("%w: installation needs a meter number and an operation type", model.ErrInvalidInput)
		}
	case model.StatusDamaged, model.StatusLost:
	default:
		return false, fmt.Errorf("%w: workers cannot set %q", model.ErrInvalidStatus, status)
	}

	i := m.itemIndexLocked(serial)
	if i < 0 {
		return false, nil
	}
	it := m.state.Items[i]
	if it.Status != model.StatusAssigned || it.WorkerID != m.sess.User.ID {
		return false, fmt.Errorf("%w: item %s is not in your custody", model.ErrForbidden, serial)
	}

	m.applyStatusLocked(i, status, patch)
	return true, nil
}

func (m *Manager) applyStatusLocked(i int, status model.ItemStatus, patch ItemPatch) {
	it := &m.state.Items[i]

	logWorker := it.WorkerID
	if logWorker == "" {
		logWorker = model.SystemWorkerID
	}

	if status == model.StatusAvailable {
		it.ClearCustody()
	} else {
		it.Status = status
		if patch.MeterNumber != "" {
			it.MeterNumber = patch.MeterNumber
		}
		if patch.Notes != "" {
			it.Notes = patch.Notes
		}
		if patch.OperationType != "" {
			it.OperationType = patch.OperationType
		}
		if status == model.StatusInstalled {
			it.InstallationDate = m.today()
		}
	}

	m.prependLogsLocked(model.Log{
		ID:            m.newID(),
		SerialNumber:  it.SerialNumber,
		WorkerID:      logWorker,
		Status:        status,
		Timestamp:     m.timestamp(),
		MeterNumber:   patch.MeterNumber,
		OperationType: patch.OperationType,
		Notes:         patch.Notes,
	})
	m.changedLocked()
}

// ReturnToStock makes the item available again and clears its custody
// fields. It reports whether the item existed.
func (m *Manager) ReturnToStock(serial string) (bool, error) {
	if err := m.confirmed(session.OpReturn, fmt.Sprintf("Return item %s to stock?", serial)); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.itemIndexLocked(serial)
	if i < 0 {
		return false, nil
	}
	m.state.Items[i].ClearCustody()
	m.prependLogsLocked(model.Log{
		ID:           m.newID(),
		SerialNumber: serial,
		WorkerID:     model.SystemWorkerID,
		Status:       model.StatusAvailable,
		Timestamp:    m.timestamp(),
		Notes:        noteReturned,
	})
	m.changedLocked()
	return true, nil
}

// BulkReturnToStock returns every listed item that exists, logging each one,
// and returns how many were returned. Duplicate serials count once.
func (m *Manager) BulkReturnToStock(serials []string) (int, error) {
	if len(serials) == 0 {
		return 0, nil
	}
	if err := m.confirmed(session.OpBulkReturn, fmt.Sprintf("Return %d items to stock?", len(serials))); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.timestamp()
	seen := make(map[string]bool, len(serials))
	var logs []model.Log
	for _, serial := range serials {
		if seen[serial] {
			continue
		}
		seen[serial] = true

		i := m.itemIndexLocked(serial)
		if i < 0 {
			continue
		}
		m.state.Items[i].ClearCustody()
		logs = append(logs, model.Log{
			ID:           m.newID(),
			SerialNumber: serial,
			WorkerID:     model.SystemWorkerID,
			Status:       model.StatusAvailable,
			Timestamp:    ts,
			Notes:        noteBulkReturned,
		})
	}

	if len(logs) > 0 {
		m.prependLogsLocked(logs...)
		m.changedLocked()
	}
	return len(logs), nil
}

// DeleteWorker returns the worker's assigned items to stock, appends one
// summary log and removes the worker. It returns how many items came back.
func (m *Manager) DeleteWorker(id string) (int, error) {
	if err := m.confirmed(session.OpManageWorkers, "Delete this worker and return their custody to stock?"); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.workerIndexLocked(id)
	if w < 0 {
		return 0, nil
	}

	returned := 0
	for i := range m.state.Items {
		it := &m.state.Items[i]
		if it.WorkerID == id && it.Status == model.StatusAssigned {
			it.ClearCustody()
			returned++
		}
	}

	m.state.Workers = append(m.state.Workers[:w], m.state.Workers[w+1:]...)
	m.prependLogsLocked(model.Log{
		ID:           m.newID(),
		SerialNumber: summarySerial,
		WorkerID:     model.SystemWorkerID,
		Status:       model.StatusAvailable,
		Timestamp:    m.timestamp(),
		Notes:        noteWorkerDeleted,
	})
	m.changedLocked()
	return returned, nil
}

// DeleteDepartment removes the department. Workers keep their reference.
func (m *Manager) DeleteDepartment(id string) (bool, error) {
	if err := m.confirmed(session.OpManageDepartments, "Delete this department?"); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.state.Departments {
		if d.ID == id {
			m.state.Departments = append(m.state.Departments[:i], m.state.Departments[i+1:]...)
			m.changedLocked()
			return true, nil
		}
	}
	return false, nil
}

// UpsertDepartment creates a department when id is empty, otherwise renames
// it. It returns the department id, or "" if id was not found.
func (m *Manager) UpsertDepartment(name, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpManageDepartments); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: department name is required", model.ErrInvalidInput)
	}

	if id == "" {
		d := model.Department{ID: m.newID(), Name: name}
		m.state.Departments = append(m.state.Departments, d)
		m.changedLocked()
		return d.ID, nil
	}

	for i := range m.state.Departments {
		if m.state.Departments[i].ID == id {
			m.state.Departments[i].Name = name
			m.changedLocked()
			return id, nil
		}
	}
	return "", nil
}

// UpsertWorker creates an active worker when id is empty, otherwise
// overwrites the worker's name, department and password. It returns the
// worker id, or "" if id was not found.
func (m *Manager) UpsertWorker(in WorkerInput, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpManageWorkers); err != nil {
		return "", err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return "", fmt.Errorf("%w: worker name is required", model.ErrInvalidInput)
	}
	if in.Status != "" && in.Status != model.WorkerActive && in.Status != model.WorkerInactive {
		return "", fmt.Errorf("%w: worker status %q", model.ErrInvalidInput, in.Status)
	}

	if id == "" {
		w := model.Worker{
			ID:           m.newID(),
			Name:         in.Name,
			DepartmentID: in.DepartmentID,
			Status:       model.WorkerActive,
			Password:     in.Password,
		}
		m.state.Workers = append(m.state.Workers, w)
		m.changedLocked()
		return w.ID, nil
	}

	i := m.workerIndexLocked(id)
	if i < 0 {
		return "", nil
	}
	w := &m.state.Workers[i]
	w.Name = in.Name
	w.DepartmentID = in.DepartmentID
	w.Password = in.Password
	if in.Status != "" {
		w.Status = in.Status
	}
	m.changedLocked()
	return id, nil
}

// ChangeOwnPassword sets the logged-in worker's password.
func (m *Manager) ChangeOwnPassword(newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpChangeOwnPassword); err != nil {
		return err
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", model.ErrInvalidInput)
	}

	i := m.workerIndexLocked(m.sess.User.ID)
	if i < 0 {
		return nil
	}
	m.state.Workers[i].Password = newPassword
	m.changedLocked()
	return nil
}
