package localcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/session"
)

func openTestCache(t *testing.T, dir string) *Cache {
	t.Helper()
	c, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestLoadEmpty(t *testing.T) {
	c := openTestCache(t, "")
	defer c.Close()

	d, err := c.Load()
	require.NoError(t, err)
	assert.False(t, d.Session.LoggedIn())
	assert.Nil(t, d.Snapshot.Departments)
	assert.Nil(t, d.Snapshot.Workers)
	assert.Nil(t, d.Snapshot.Items)
	assert.Nil(t, d.Snapshot.Logs)
}

func TestSaveAndLoadSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	c := openTestCache(t, dir)

	var st session.State
	st.LoginWorker(model.Worker{ID: "1", Name: "Ahmed"})

	ts := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	snap := &model.Snapshot{
		Departments: []model.Department{{ID: "1", Name: "Maintenance"}},
		Workers:     []model.Worker{{ID: "1", Name: "Ahmed", Status: model.WorkerActive}},
		Items:       []model.Item{{SerialNumber: "5", Status: model.StatusAssigned, WorkerID: "1"}},
		Logs:        []model.Log{{ID: "l", SerialNumber: "5", WorkerID: "1", Status: model.StatusAssigned, Timestamp: ts}},
	}
	require.NoError(t, c.Save(st, snap))
	require.NoError(t, c.Close())

	c = openTestCache(t, dir)
	defer c.Close()

	d, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, model.RoleWorker, d.Session.Role)
	assert.Equal(t, session.TabWorkerPortal, d.Session.Tab)
	require.NotNil(t, d.Session.User)
	assert.Equal(t, "Ahmed", d.Session.User.Name)
	assert.Equal(t, snap.Departments, d.Snapshot.Departments)
	assert.Equal(t, snap.Items, d.Snapshot.Items)
	require.Len(t, d.Snapshot.Logs, 1)
	assert.True(t, ts.Equal(d.Snapshot.Logs[0].Timestamp))
}

func TestSaveEmptyCollectionsAreNotMissing(t *testing.T) {
	c := openTestCache(t, "")
	defer c.Close()

	require.NoError(t, c.Save(session.State{}, &model.Snapshot{}))

	d, err := c.Load()
	require.NoError(t, err)
	assert.NotNil(t, d.Snapshot.Workers)
	assert.Empty(t, d.Snapshot.Workers)
}

func TestLogoutRemovesSessionKeys(t *testing.T) {
	c := openTestCache(t, "")
	defer c.Close()

	var st session.State
	st.LoginAdmin()
	require.NoError(t, c.Save(st, &model.Snapshot{}))

	st.Logout()
	require.NoError(t, c.Save(st, &model.Snapshot{}))

	d, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, session.State{}, d.Session)
}

func TestClear(t *testing.T) {
	c := openTestCache(t, "")
	defer c.Close()

	require.NoError(t, c.Save(session.State{}, &model.Snapshot{Items: []model.Item{{SerialNumber: "1", Status: model.StatusAvailable}}}))
	require.NoError(t, c.Clear())

	d, err := c.Load()
	require.NoError(t, err)
	assert.Nil(t, d.Snapshot.Items)
}

func TestLoadSeed(t *testing.T) {
	s, err := LoadSeed("")
	require.NoError(t, err)
	assert.Len(t, s.DepartmentList(), 2)
	assert.Len(t, s.WorkerList(), 2)

	s, err = LoadSeed(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSeed(), s)

	path := filepath.Join(t.TempDir(), "seed.toml")
	content := `
[[departments]]
id = "10"
name = "Meters"

[[workers]]
id = "7"
name = "Omar"
department_id = "10"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err = LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, []model.Department{{ID: "10", Name: "Meters"}}, s.DepartmentList())
	assert.Equal(t, []model.Worker{{ID: "7", Name: "Omar", DepartmentID: "10", Status: model.WorkerActive}}, s.WorkerList())

	require.NoError(t, os.WriteFile(path, []byte("[[departments]\n"), 0o644))
	_, err = LoadSeed(path)
	assert.Error(t, err)
}
