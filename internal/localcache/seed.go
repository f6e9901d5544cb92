package localcache

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/erazemk/custody/internal/model"
)

// Seed is the initial departments and workers used when the cache is empty.
type Seed struct {
	Departments []SeedDepartment `toml:"departments"`
	Workers     []SeedWorker     `toml:"workers"`
}

// SeedDepartment is a department entry in the seed file.
type SeedDepartment struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// SeedWorker is a worker entry in the seed file.
type SeedWorker struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	DepartmentID string `toml:"department_id"`
	Status       string `toml:"status"`
	Password     string `toml:"password"`
}

// DefaultSeed is used when no seed file is configured or it does not exist.
func DefaultSeed() Seed {
	return Seed{
		Departments: []SeedDepartment{
			{ID: "1", Name: "قسم الصيانة"},
			{ID: "2", Name: "قسم التركيبات"},
		},
		Workers: []SeedWorker{
			{ID: "1", Name: "أحمد محمد", DepartmentID: "1", Status: model.WorkerActive, Password: "123"},
			{ID: "2", Name: "سارة خالد", DepartmentID: "2", Status: model.WorkerActive, Password: "123"},
		},
	}
}

// LoadSeed reads a TOML seed file. A missing file yields DefaultSeed; a file
// that exists but cannot be parsed is an error.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSeed(), nil
	}
	if err != nil {
		return Seed{}, fmt.Errorf("reading seed file: %w", err)
	}

	var s Seed
	if err := toml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return s, nil
}

// DepartmentList converts the seed departments.
func (s Seed) DepartmentList() []model.Department {
	out := make([]model.Department, 0, len(s.Departments))
	for _, d := range s.Departments {
		out = append(out, model.Department{ID: d.ID, Name: d.Name})
	}
	return out
}

// WorkerList converts the seed workers. Missing statuses default to active.
func (s Seed) WorkerList() []model.Worker {
	out := make([]model.Worker, 0, len(s.Workers))
	for _, w := range s.Workers {
		status := w.Status
		if status == "" {
			status = model.WorkerActive
		}
		out = append(out, model.Worker{
			ID: w.ID, Name: w.Name, DepartmentID: w.DepartmentID, Status: status, Password: w.Password,
		})
	}
	return out
}
