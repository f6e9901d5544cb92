package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/custody/internal/model"
)

// Credentials checks logins. The admin account is a single configured pair;
// workers log in with the plaintext password stored on their record.
type Credentials struct {
	adminUsername         string
	adminHash             []byte
	defaultWorkerPassword string
}

// NewCredentials hashes the admin password once so it is not kept in memory.
func NewCredentials(adminUsername, adminPassword, defaultWorkerPassword string) (*Credentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}
	return &Credentials{
		adminUsername:         strings.ToLower(strings.TrimSpace(adminUsername)),
		adminHash:             hash,
		defaultWorkerPassword: defaultWorkerPassword,
	}, nil
}

// AdminUsername returns the normalized admin username.
func (c *Credentials) AdminUsername() string {
	return c.adminUsername
}

// CheckAdmin reports whether the pair matches the admin account. The username
// is compared trimmed and case-insensitively.
func (c *Credentials) CheckAdmin(username, password string) bool {
	if strings.ToLower(strings.TrimSpace(username)) != c.adminUsername {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.adminHash, []byte(password)) == nil
}

// CheckWorker reports whether password unlocks w. A worker without a stored
// password accepts the default password.
func (c *Credentials) CheckWorker(w model.Worker, password string) bool {
	want := w.Password
	if want == "" {
		want = c.defaultWorkerPassword
	}
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}

// FindWorker looks up a worker by id and checks the password.
func (c *Credentials) FindWorker(workers []model.Worker, id, password string) (model.Worker, error) {
	id = strings.TrimSpace(id)
	for _, w := range workers {
		if w.ID != id {
			continue
		}
		if !c.CheckWorker(w, password) {
			break
		}
		return w, nil
	}
	return model.Worker{}, model.ErrInvalidCredentials
}
