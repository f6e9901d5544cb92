package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestStatusTablesCoverEveryStatus(t *testing.T) {
	for _, s := range Statuses() {
		if l, ok := StatusLabels.Get(s); !ok || l == "" {
			t.Errorf("missing label for %q", s)
		}
		if c, ok := StatusColors.Get(s); !ok || c == "" {
			t.Errorf("missing color for %q", s)
		}
	}
	if _, ok := StatusLabels.Get("removed"); ok {
		t.Error("unknown status should not have a label")
	}
}

func TestParseItemStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    ItemStatus
		wantErr bool
	}{
		{"available", StatusAvailable, false},
		{"installed", StatusInstalled, false},
		{"مركبة", StatusInstalled, false},
		{"عهدة مع العامل", StatusAssigned, false},
		{"", "", true},
		{"removed", "", true},
	}

	for _, tt := range tests {
		got, err := ParseItemStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseItemStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("ParseItemStatus(%q) error = %v, want ErrInvalidStatus", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseItemStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestItemDecodesLabelStatus(t *testing.T) {
	var it Item
	if err := json.Unmarshal([]byte(`{"serialNumber":"7","status":"تالفة"}`), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.Status != StatusDamaged {
		t.Errorf("expected damaged, got %q", it.Status)
	}
}

func TestItemOmitsEmptyOptionals(t *testing.T) {
	data, err := json.Marshal(Item{SerialNumber: "1", Status: StatusAvailable})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"serialNumber":"1","status":"available"}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestClearCustody(t *testing.T) {
	it := Item{
		SerialNumber: "5", Status: StatusInstalled, WorkerID: "w1", DeliveryDate: "2024-01-01",
		InstallationDate: "2024-01-02", MeterNumber: "M1", OperationType: "new", Notes: "n",
	}
	it.ClearCustody()
	if it != (Item{SerialNumber: "5", Status: StatusAvailable}) {
		t.Errorf("custody fields not cleared: %+v", it)
	}
}

func TestSnapshotValidate(t *testing.T) {
	valid := func() *Snapshot {
		return &Snapshot{
			Departments: []Department{{ID: "1", Name: "a"}},
			Workers:     []Worker{{ID: "1", Name: "w", DepartmentID: "1", Status: WorkerActive}},
			Items:       []Item{{SerialNumber: "1", Status: StatusAvailable}},
			Logs:        []Log{{ID: "l1", SerialNumber: "1", WorkerID: "1", Status: StatusAssigned}},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
		want   error
	}{
		{"duplicate department", func(s *Snapshot) { s.Departments = append(s.Departments, s.Departments[0]) }, ErrInvalidInput},
		{"worker without id", func(s *Snapshot) { s.Workers[0].ID = "" }, ErrInvalidInput},
		{"duplicate serial", func(s *Snapshot) { s.Items = append(s.Items, s.Items[0]) }, ErrInvalidInput},
		{"unknown item status", func(s *Snapshot) { s.Items[0].Status = "removed" }, ErrInvalidStatus},
		{"log without id", func(s *Snapshot) { s.Logs[0].ID = "" }, ErrInvalidInput},
		{"duplicate log", func(s *Snapshot) { s.Logs = append(s.Logs, s.Logs[0]) }, ErrInvalidInput},
	}

	for _, tt := range tests {
		s := valid()
		tt.mutate(s)
		if err := s.Validate(); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestSnapshotValidateKeepsFreeFormStatuses(t *testing.T) {
	s := &Snapshot{
		Workers: []Worker{{ID: "1", Name: "w", Status: "on leave"}},
		Logs:    []Log{{ID: "l1", SerialNumber: "N/A", WorkerID: "system", Status: "archived"}},
	}
	if err := s.Validate(); err != nil {
		t.Errorf("free-form worker and log statuses rejected: %v", err)
	}
}

func TestSnapshotNormalizeEncodesEmptyArrays(t *testing.T) {
	var s Snapshot
	s.Normalize()
	data, _ := json.Marshal(s)
	if string(data) != `{"departments":[],"workers":[],"items":[],"logs":[]}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestSortLogsNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Snapshot{Logs: []Log{
		{ID: "a", Timestamp: base},
		{ID: "c", Timestamp: base.Add(2 * time.Minute)},
		{ID: "b", Timestamp: base.Add(time.Minute)},
	}}
	s.SortLogs()
	if s.Logs[0].ID != "c" || s.Logs[1].ID != "b" || s.Logs[2].ID != "a" {
		t.Errorf("unexpected order: %v %v %v", s.Logs[0].ID, s.Logs[1].ID, s.Logs[2].ID)
	}
}

func TestComputeStats(t *testing.T) {
	items := []Item{
		{Status: StatusAvailable}, {Status: StatusAvailable}, {Status: StatusAssigned},
		{Status: StatusInstalled}, {Status: StatusDamaged}, {Status: StatusLost},
	}
	st := ComputeStats(items)
	want := Stats{Total: 6, Available: 2, Assigned: 1, Installed: 1, Damaged: 1, Lost: 1}
	if st != want {
		t.Errorf("got %+v, want %+v", st, want)
	}
	if st.Available+st.Assigned+st.Installed+st.Damaged+st.Lost != st.Total {
		t.Error("per-status counts do not sum to total")
	}
}
