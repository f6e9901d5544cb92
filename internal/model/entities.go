package model

import "time"

// Department groups workers.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Worker is a field worker who holds items in custody.
// DepartmentID is a soft reference; deleting a department leaves it dangling.
type Worker struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DepartmentID string `json:"departmentId"`
	Status       string `json:"status"`
	Password     string `json:"password,omitempty"`
}

// Worker statuses.
const (
	WorkerActive   = "active"
	WorkerInactive = "inactive"
)

// Item is a serialized custody unit. The optional fields are only set while
// the item is assigned or installed.
type Item struct {
	SerialNumber     string     `json:"serialNumber"`
	Status           ItemStatus `json:"status"`
	WorkerID         string     `json:"workerId,omitempty"`
	DeliveryDate     string     `json:"deliveryDate,omitempty"`
	InstallationDate string     `json:"installationDate,omitempty"`
	MeterNumber      string     `json:"meterNumber,omitempty"`
	OperationType    string     `json:"operationType,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// ClearCustody resets the item to available and drops every custody field.
func (it *Item) ClearCustody() {
	*it = Item{SerialNumber: it.SerialNumber, Status: StatusAvailable}
}

// Log is an append-only record of an item transition.
type Log struct {
	ID            string     `json:"id"`
	SerialNumber  string     `json:"serialNumber"`
	WorkerID      string     `json:"workerId"`
	Status        ItemStatus `json:"status"`
	Timestamp     time.Time  `json:"timestamp"`
	MeterNumber   string     `json:"meterNumber,omitempty"`
	OperationType string     `json:"operationType,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// SystemWorkerID marks log entries not attributed to a worker.
const SystemWorkerID = "system"

// Roles.
const (
	RoleAdmin  = "admin"
	RoleWorker = "worker"
)

// DateLayout is the calendar date format used for delivery and installation dates.
const DateLayout = "2006-01-02"
