// Package session holds the logged-in role, user and current tab of a client,
// and decides which operations that session may run.
package session

import (
	"fmt"

	"github.com/erazemk/custody/internal/model"
)

// Tabs.
const (
	TabDashboard    = "dashboard"
	TabInventory    = "inventory"
	TabLog          = "log"
	TabDelivery     = "delivery"
	TabManagement   = "management"
	TabWorkerPortal = "worker-portal"
)

var adminTabs = map[string]bool{
	TabDashboard:  true,
	TabInventory:  true,
	TabLog:        true,
	TabDelivery:   true,
	TabManagement: true,
}

// State is the persisted session. The zero value is logged out.
type State struct {
	Role string        `json:"role,omitempty"`
	User *model.Worker `json:"user,omitempty"`
	Tab  string        `json:"tab,omitempty"`
}

// LoggedIn reports whether a role is set.
func (s *State) LoggedIn() bool {
	return s.Role == model.RoleAdmin || s.Role == model.RoleWorker
}

// LoginAdmin starts an admin session on the dashboard.
func (s *State) LoginAdmin() {
	*s = State{Role: model.RoleAdmin, Tab: TabDashboard}
}

// LoginWorker starts a worker session on the worker portal.
func (s *State) LoginWorker(w model.Worker) {
	w.Password = ""
	*s = State{Role: model.RoleWorker, User: &w, Tab: TabWorkerPortal}
}

// Logout clears the session.
func (s *State) Logout() {
	*s = State{}
}

// SetTab switches the current tab. Workers only have the worker portal.
func (s *State) SetTab(tab string) error {
	switch s.Role {
	case model.RoleAdmin:
		if !adminTabs[tab] {
			return fmt.Errorf("%w: unknown tab %q", model.ErrInvalidInput, tab)
		}
	case model.RoleWorker:
		if tab != TabWorkerPortal {
			return fmt.Errorf("%w: tab %q", model.ErrForbidden, tab)
		}
	default:
		return fmt.Errorf("%w: not logged in", model.ErrForbidden)
	}
	s.Tab = tab
	return nil
}

// Operation is a gated client action.
type Operation int

const (
	OpManageDepartments Operation = iota
	OpManageWorkers
	OpAddStock
	OpDeliver
	OpUpdateStatus
	OpReturn
	OpBulkReturn
	OpViewLogs
	OpReportOutcome
	OpChangeOwnPassword
)

var opNames = map[Operation]string{
	OpManageDepartments: "manage departments",
	OpManageWorkers:     "manage workers",
	OpAddStock:          "add stock",
	OpDeliver:           "deliver items",
	OpUpdateStatus:      "update item status",
	OpReturn:            "return to stock",
	OpBulkReturn:        "bulk return to stock",
	OpViewLogs:          "view logs",
	OpReportOutcome:     "report outcome",
	OpChangeOwnPassword: "change own password",
}

func (op Operation) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// Allow returns ErrForbidden unless the session may run op.
func (s *State) Allow(op Operation) error {
	var ok bool
	switch s.Role {
	case model.RoleAdmin:
		ok = op != OpReportOutcome && op != OpChangeOwnPassword
	case model.RoleWorker:
		ok = (op == OpReportOutcome || op == OpChangeOwnPassword) && s.User != nil
	}
	if !ok {
		role := s.Role
		if role == "" {
			role = "anonymous"
		}
		return fmt.Errorf("%w: %s cannot %s", model.ErrForbidden, role, op)
	}
	return nil
}
