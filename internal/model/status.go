package model

import "fmt"

// ItemStatus is the lifecycle state of a custody item.
type ItemStatus string

// Item statuses.
const (
	StatusAvailable ItemStatus = "available"
	StatusAssigned  ItemStatus = "assigned"
	StatusInstalled ItemStatus = "installed"
	StatusDamaged   ItemStatus = "damaged"
	StatusLost      ItemStatus = "lost"
)

// StatusTable holds one value per item status. Tables are built with
// positional literals so a new status fails to compile until every table
// has a value for it.
type StatusTable[T any] struct {
	Available T
	Assigned  T
	Installed T
	Damaged   T
	Lost      T
}

// Get returns the value for s and whether s is a known status.
func (t StatusTable[T]) Get(s ItemStatus) (T, bool) {
	switch s {
	case StatusAvailable:
		return t.Available, true
	case StatusAssigned:
		return t.Assigned, true
	case StatusInstalled:
		return t.Installed, true
	case StatusDamaged:
		return t.Damaged, true
	case StatusLost:
		return t.Lost, true
	}
	var zero T
	return zero, false
}

// StatusLabels are the display labels shown to field staff.
var StatusLabels = StatusTable[string]{
	"متوفر",
	"عهدة مع العامل",
	"مركبة",
	"تالفة",
	"مفقودة",
}

// StatusColors are the badge colors used by the dashboards.
var StatusColors = StatusTable[string]{
	"slate",
	"blue",
	"emerald",
	"red",
	"orange",
}

// Statuses lists every item status in lifecycle order.
func Statuses() []ItemStatus {
	return []ItemStatus{StatusAvailable, StatusAssigned, StatusInstalled, StatusDamaged, StatusLost}
}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	_, ok := StatusLabels.Get(s)
	return ok
}

// Label returns the display label, or the raw value for unknown statuses.
func (s ItemStatus) Label() string {
	if l, ok := StatusLabels.Get(s); ok {
		return l
	}
	return string(s)
}

// ParseItemStatus accepts a status code or its display label.
func ParseItemStatus(v string) (ItemStatus, error) {
	for _, s := range Statuses() {
		if v == string(s) || v == s.Label() {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
}

// UnmarshalText normalizes display labels written by older clients to status
// codes. Unknown values are kept as-is; Snapshot.Validate rejects them on items.
func (s *ItemStatus) UnmarshalText(b []byte) error {
	if parsed, err := ParseItemStatus(string(b)); err == nil {
		*s = parsed
		return nil
	}
	*s = ItemStatus(b)
	return nil
}
