// Package accounts implements the username -> hashed-password registry
// (spec §4.H): a single JSON file, rewritten in full on every change, no
// log. A nil password marks a username that has been claimed by the first
// phase of login but not yet bound to a password.
//
// Persistence is grounded on the teacher's store.Snapshot (write to a
// temp file, then atomic rename) applied here to the whole accounts map
// instead of the message set. Hashing uses golang.org/x/crypto/bcrypt,
// matching original_source/common/utils.py's bcrypt.hashpw/checkpw exactly.
package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Registry is the account map. Not replicated across peers — spec.md
// leaves cross-node account sync as an open question rather than
// prescribing a design, so this repository keeps accounts node-local, as
// the original source does.
type Registry struct {
	mu       sync.Mutex
	path     string
	accounts map[string]*string // username -> hashed password, nil = claimed/unbound
}

// Open loads path (a JSON object mapping username to hashed password or
// null) if it exists; a missing file yields an empty registry.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, accounts: make(map[string]*string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r.accounts); err != nil {
		return nil, fmt.Errorf("accounts: malformed %s: %w", path, err)
	}
	return r, nil
}

// Exists reports whether username has been claimed (bound or not).
func (r *Registry) Exists(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accounts[username]
	return ok
}

// Claim inserts username with a null password (first login phase).
func (r *Registry) Claim(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[username] = nil
	return r.persistLocked()
}

// IsUnbound reports whether username exists but has no password yet.
func (r *Registry) IsUnbound(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	hash, ok := r.accounts[username]
	return ok && hash == nil
}

// BindPassword hashes password and binds it to username (second login
// phase, account-creation branch).
func (r *Registry) BindPassword(username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("accounts: hash password: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := string(hashed)
	r.accounts[username] = &h
	return r.persistLocked()
}

// VerifyPassword checks password against the bound hash for username. It
// returns false if the account does not exist or is still unbound.
func (r *Registry) VerifyPassword(username, password string) bool {
	r.mu.Lock()
	hash := r.accounts[username]
	r.mu.Unlock()
	if hash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}

// Usernames returns every claimed username, in no particular order.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.accounts))
	for u := range r.accounts {
		out = append(out, u)
	}
	return out
}

// Delete removes username from the registry.
func (r *Registry) Delete(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[username]; !ok {
		return nil
	}
	delete(r.accounts, username)
	return r.persistLocked()
}

// persistLocked rewrites the whole file. Caller must hold r.mu.
func (r *Registry) persistLocked() error {
	data, err := json.MarshalIndent(r.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("accounts: marshal: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("accounts: write temp: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("accounts: rename: %w", err)
	}
	return nil
}
