// Package client is the client-side state manager: an in-memory copy of the
// four collections that applies mutations locally, persists every change to a
// local cache and pushes the full snapshot to the state store after a quiet
// period.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/auth"
	"github.com/erazemk/custody/internal/localcache"
	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/session"
)

// Cache is the durable local copy.
type Cache interface {
	Load() (*localcache.Data, error)
	Save(st session.State, snap *model.Snapshot) error
}

// DefaultSyncDelay is the quiet period before a push.
const DefaultSyncDelay = time.Second

const pushTimeout = 30 * time.Second

// Options configures a Manager. Remote, Cache and Credentials are required.
type Options struct {
	Remote      Remote
	Cache       Cache
	Credentials *auth.Credentials
	Confirmer   Confirmer
	Seed        localcache.Seed
	SyncDelay   time.Duration
	Now         func() time.Time
	NewID       func() string
	Log         *zap.Logger
}

// Manager owns the client's copy of the state.
type Manager struct {
	remote  Remote
	cache   Cache
	creds   *auth.Credentials
	confirm Confirmer
	seed    localcache.Seed
	now     func() time.Time
	newID   func() string
	log     *zap.Logger
	syncer  *Debouncer

	mu      sync.Mutex
	state   *model.Snapshot
	sess    session.State
	loading bool
}

// New creates a manager with an empty state. Call Load before use.
func New(opts Options) *Manager {
	m := &Manager{
		remote:  opts.Remote,
		cache:   opts.Cache,
		creds:   opts.Credentials,
		confirm: opts.Confirmer,
		seed:    opts.Seed,
		now:     opts.Now,
		newID:   opts.NewID,
		log:     opts.Log,
		state:   &model.Snapshot{},
	}
	m.state.Normalize()

	if m.confirm == nil {
		m.confirm = AlwaysConfirm
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	delay := opts.SyncDelay
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	m.syncer = NewDebouncer(delay, m.push)
	return m
}

// Load restores the cached state, seeding departments and workers when the
// cache has none, then adopts every collection the server reports as
// non-empty. A fetch error is returned after the cached state is in place.
// One push is scheduled afterwards so the server catches up with the merge.
func (m *Manager) Load(ctx context.Context) error {
	data, err := m.cache.Load()
	if err != nil {
		m.log.Warn("reading local cache", zap.Error(err))
		data = &localcache.Data{}
	}

	snap := data.Snapshot
	if snap.Departments == nil {
		snap.Departments = m.seed.DepartmentList()
	}
	if snap.Workers == nil {
		snap.Workers = m.seed.WorkerList()
	}
	snap.Normalize()

	m.mu.Lock()
	m.state = &snap
	m.sess = data.Session
	m.loading = true
	m.mu.Unlock()

	server, fetchErr := m.remote.FetchAll(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false

	if fetchErr != nil {
		m.log.Warn("fetching server state, using local cache", zap.Error(fetchErr))
	} else {
		if len(server.Departments) > 0 {
			m.state.Departments = server.Departments
		}
		if len(server.Workers) > 0 {
			m.state.Workers = server.Workers
		}
		if len(server.Items) > 0 {
			m.state.Items = server.Items
		}
		if len(server.Logs) > 0 {
			m.state.Logs = server.Logs
		}
	}

	m.changedLocked()
	if fetchErr != nil {
		return fmt.Errorf("loading server state: %w", fetchErr)
	}
	return nil
}

// saveLocked writes the state and session to the local cache.
func (m *Manager) saveLocked() {
	if err := m.cache.Save(m.sess, m.state); err != nil {
		m.log.Error("writing local cache", zap.Error(err))
	}
}

// changedLocked persists a data change and schedules a push.
func (m *Manager) changedLocked() {
	m.saveLocked()
	if !m.loading {
		m.syncer.Trigger()
	}
}

// push sends the current snapshot. Failures are logged only; the local cache
// stays the copy of record.
func (m *Manager) push() {
	m.mu.Lock()
	snap := m.state.Clone()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := m.remote.ReplaceAll(ctx, snap); err != nil {
		m.log.Warn("background sync failed", zap.Error(err))
		return
	}
	m.log.Debug("state synced", zap.Int("items", len(snap.Items)), zap.Int("logs", len(snap.Logs)))
}

// Flush cancels a pending push and pushes now, returning the result.
func (m *Manager) Flush(ctx context.Context) error {
	m.syncer.Stop()

	m.mu.Lock()
	snap := m.state.Clone()
	m.mu.Unlock()

	return m.remote.ReplaceAll(ctx, snap)
}

// Close stops scheduling pushes. A push already running is left to finish.
func (m *Manager) Close() {
	m.syncer.Close()
}

// Login checks credentials against the local copy and starts a session. When
// the remote issues tokens, one is requested; failing to get it is logged.
func (m *Manager) Login(ctx context.Context, role, id, password string) error {
	m.mu.Lock()
	switch role {
	case model.RoleAdmin:
		if !m.creds.CheckAdmin(id, password) {
			m.mu.Unlock()
			return model.ErrInvalidCredentials
		}
		m.sess.LoginAdmin()
	case model.RoleWorker:
		w, err := m.creds.FindWorker(m.state.Workers, id, password)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.sess.LoginWorker(w)
	default:
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown role %q", model.ErrInvalidInput, role)
	}
	m.saveLocked()
	m.mu.Unlock()

	if ti, ok := m.remote.(tokenIssuer); ok {
		if err := ti.Login(ctx, role, id, password); err != nil {
			m.log.Warn("requesting server token", zap.Error(err))
		}
	}
	return nil
}

// Logout clears the session.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.sess.Logout()
	m.saveLocked()
	m.mu.Unlock()

	if ti, ok := m.remote.(tokenIssuer); ok {
		if err := ti.Logout(ctx); err != nil {
			m.log.Warn("revoking server token", zap.Error(err))
		}
	}
}

// SetTab switches the current tab.
func (m *Manager) SetTab(tab string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sess.SetTab(tab); err != nil {
		return err
	}
	m.saveLocked()
	return nil
}

// Session returns a copy of the session.
func (m *Manager) Session() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Snapshot returns a copy of the state.
func (m *Manager) Snapshot() *model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}
