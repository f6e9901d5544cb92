package model

import (
	"fmt"
	"sort"
)

// Snapshot is the complete state of all four collections.
type Snapshot struct {
	Departments []Department `json:"departments"`
	Workers     []Worker     `json:"workers"`
	Items       []Item       `json:"items"`
	Logs        []Log        `json:"logs"`
}

// Normalize replaces nil collections with empty ones so they encode as [].
func (s *Snapshot) Normalize() {
	if s.Departments == nil {
		s.Departments = []Department{}
	}
	if s.Workers == nil {
		s.Workers = []Worker{}
	}
	if s.Items == nil {
		s.Items = []Item{}
	}
	if s.Logs == nil {
		s.Logs = []Log{}
	}
}

// Clone returns a copy that shares no slices with s.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Departments: append([]Department{}, s.Departments...),
		Workers:     append([]Worker{}, s.Workers...),
		Items:       append([]Item{}, s.Items...),
		Logs:        append([]Log{}, s.Logs...),
	}
	return c
}

// SortLogs orders logs newest first.
func (s *Snapshot) SortLogs() {
	sort.SliceStable(s.Logs, func(i, j int) bool {
		return s.Logs[i].Timestamp.After(s.Logs[j].Timestamp)
	})
}

// Validate rejects what the store cannot hold: missing or duplicate keys and
// item statuses outside the known set. Worker and log statuses are stored as
// given.
func (s *Snapshot) Validate() error {
	seen := make(map[string]bool)
	for _, d := range s.Departments {
		if d.ID == "" {
			return fmt.Errorf("%w: department without id", ErrInvalidInput)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w: duplicate department id %q", ErrInvalidInput, d.ID)
		}
		seen[d.ID] = true
	}

	clear(seen)
	for _, w := range s.Workers {
		if w.ID == "" {
			return fmt.Errorf("%w: worker without id", ErrInvalidInput)
		}
		if seen[w.ID] {
			return fmt.Errorf("%w: duplicate worker id %q", ErrInvalidInput, w.ID)
		}
		seen[w.ID] = true
	}

	clear(seen)
	for _, it := range s.Items {
		if it.SerialNumber == "" {
			return fmt.Errorf("%w: item without serial number", ErrInvalidInput)
		}
		if seen[it.SerialNumber] {
			return fmt.Errorf("%w: duplicate serial number %q", ErrInvalidInput, it.SerialNumber)
		}
		if !it.Status.Valid() {
			return fmt.Errorf("%w: item %q has status %q", ErrInvalidStatus, it.SerialNumber, it.Status)
		}
		seen[it.SerialNumber] = true
	}

	clear(seen)
	for _, l := range s.Logs {
		if l.ID == "" {
			return fmt.Errorf("%w: log without id", ErrInvalidInput)
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: duplicate log id %q", ErrInvalidInput, l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

// Stats are per-status item counts.
type Stats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Assigned  int `json:"assigned"`
	Installed int `json:"installed"`
	Damaged   int `json:"damaged"`
	Lost      int `json:"lost"`
}

// ComputeStats counts items by status. Items with an unknown status count
// toward Total only.
func ComputeStats(items []Item) Stats {
	st := Stats{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case StatusAvailable:
			st.Available++
		case StatusAssigned:
			st.Assigned++
		case StatusInstalled:
			st.Installed++
		case StatusDamaged:
			st.Damaged++
		case StatusLost:
			st.Lost++
		}
	}
	return st
}
