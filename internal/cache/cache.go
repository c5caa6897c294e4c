// Package cache persists resolved identities between runs so repeated runs
// do not spend search and API budget on people already resolved, and keeps
// the last run's findings for the baseline command.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redactyl/leaktrace/internal/types"
)

// DefaultName is the cache file created in the work directory.
const DefaultName = ".leaktrace_cache.json"

type resolution struct {
	Tier  string `json:"tier"`
	Value string `json:"value,omitempty"`
}

// Entry is the cached state of one entity.
type Entry struct {
	Name     string      `json:"name"`
	Homepage *resolution `json:"homepage,omitempty"`
	Account  *resolution `json:"account,omitempty"`
	Updated  time.Time   `json:"updated"`
}

// DB maps entity ids to cached resolutions. It is safe for concurrent use.
type DB struct {
	mu      sync.Mutex
	path    string
	Entries map[string]Entry `json:"entries"`
}

// Load reads the cache at path. A missing file yields an empty cache and no
// error.
func Load(path string) (*DB, error) {
	db := &DB{path: path, Entries: map[string]Entry{}}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return db, err
	}
	if err := json.Unmarshal(b, db); err != nil {
		return &DB{path: path, Entries: map[string]Entry{}}, fmt.Errorf("decoding cache %s: %w", path, err)
	}
	if db.Entries == nil {
		db.Entries = map[string]Entry{}
	}
	return db, nil
}

// Save writes the cache back to its path.
func (db *DB) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	b, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(db.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(db.path, b, 0o600)
}

// Restore copies cached resolutions onto e. Failed resolutions are never
// cached, so they are always retried.
func (db *DB) Restore(e *types.Entity) bool {
	db.mu.Lock()
	ent, ok := db.Entries[e.ID]
	db.mu.Unlock()
	if !ok {
		return false
	}
	restored := false
	if r, ok := decode(ent.Homepage); ok {
		restored = e.SetHomepage(r) || restored
	}
	if r, ok := decode(ent.Account); ok {
		restored = e.SetAccount(r) || restored
	}
	return restored
}

// Store records e's resolutions.
func (db *DB) Store(e types.Entity) {
	ent := Entry{Name: e.Name, Homepage: encode(e.Homepage), Account: encode(e.Account), Updated: time.Now().UTC()}
	if ent.Homepage == nil && ent.Account == nil {
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Entries[e.ID] = ent
}

func encode(r types.Resolution[string]) *resolution {
	switch r.Tier() {
	case types.TierHighConfidence, types.TierBestGuess:
		v, _ := r.Get()
		return &resolution{Tier: r.Tier().String(), Value: v}
	case types.TierNotFound:
		return &resolution{Tier: r.Tier().String()}
	default:
		return nil
	}
}

func decode(r *resolution) (types.Resolution[string], bool) {
	if r == nil {
		return types.Resolution[string]{}, false
	}
	switch r.Tier {
	case types.TierHighConfidence.String():
		return types.HighConfidence(r.Value), r.Value != ""
	case types.TierBestGuess.String():
		return types.BestGuess(r.Value), r.Value != ""
	case types.TierNotFound.String():
		return types.NotFound[string](), true
	default:
		return types.Resolution[string]{}, false
	}
}
