package client

import (
	"strings"

	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/session"
)

// ItemFilter narrows the inventory list. Empty fields match everything.
type ItemFilter struct {
	// Search matches a substring of the serial number or the worker name.
	Search       string
	WorkerID     string
	DepartmentID string
	Status       model.ItemStatus
}

// Stats counts the items by status.
func (m *Manager) Stats() model.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.ComputeStats(m.state.Items)
}

// Departments returns a copy of the departments.
func (m *Manager) Departments() []model.Department {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Department{}, m.state.Departments...)
}

// Workers returns a copy of the workers.
func (m *Manager) Workers() []model.Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Worker{}, m.state.Workers...)
}

// AvailableItems returns the items in stock.
func (m *Manager) AvailableItems() []model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Item
	for _, it := range m.state.Items {
		if it.Status == model.StatusAvailable {
			out = append(out, it)
		}
	}
	return out
}

// WorkerCustody returns the items currently assigned to the worker.
func (m *Manager) WorkerCustody(workerID string) []model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.custodyLocked(workerID)
}

// MyCustody returns the logged-in worker's assigned items.
func (m *Manager) MyCustody() ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpReportOutcome); err != nil {
		return nil, err
	}
	return m.custodyLocked(m.sess.User.ID), nil
}

func (m *Manager) custodyLocked(workerID string) []model.Item {
	var out []model.Item
	for _, it := range m.state.Items {
		if it.WorkerID == workerID && it.Status == model.StatusAssigned {
			out = append(out, it)
		}
	}
	return out
}

// FilterItems returns the items matching f, in stored order.
func (m *Manager) FilterItems(f ItemFilter) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpViewLogs); err != nil {
		return nil, err
	}

	workers := make(map[string]model.Worker, len(m.state.Workers))
	for _, w := range m.state.Workers {
		workers[w.ID] = w
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var out []model.Item
	for _, it := range m.state.Items {
		w, hasWorker := workers[it.WorkerID]
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		if f.WorkerID != "" && it.WorkerID != f.WorkerID {
			continue
		}
		if f.DepartmentID != "" && (!hasWorker || w.DepartmentID != f.DepartmentID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(it.SerialNumber), search) &&
			!(hasWorker && strings.Contains(strings.ToLower(w.Name), search)) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// Logs returns the logs, newest first.
func (m *Manager) Logs() ([]model.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.Allow(session.OpViewLogs); err != nil {
		return nil, err
	}
	view := model.Snapshot{Logs: append([]model.Log{}, m.state.Logs...)}
	view.SortLogs()
	return view.Logs, nil
}
