package service

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/circles/internal/auth"
	"github.com/mmynk/circles/internal/directory"
	"github.com/mmynk/circles/internal/directory/sqlite"
	"github.com/mmynk/circles/internal/passcode"
)

// newTestStore opens a SQLite directory in a temp dir.
func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newGroupService(t *testing.T, store directory.Store) *GroupService {
	t.Helper()

	svc := NewGroupService(store, passcode.NewGenerator())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return svc
}

func newUserService(t *testing.T, store directory.Store) *UserService {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewUserService(store, auth.NewBcryptHasher(bcrypt.MinCost), logger)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return svc
}

// seededCodes returns a generator that repeats the same sequence every time.
func seededCodes() *passcode.Generator {
	return passcode.NewGeneratorWithSource(rand.New(rand.NewPCG(1, 2)))
}

// recordingStore wraps a directory.Store and counts calls. Hooks, when set,
// replace the wrapped behavior.
type recordingStore struct {
	directory.Store

	mu      sync.Mutex
	inserts int
	appends int
	updates int

	insertHook func(ctx context.Context, collection string, doc any) (string, error)
	queryHook  func(ctx context.Context, collection, field string, value any) ([]directory.Record, error)
}

func (r *recordingStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	r.mu.Lock()
	r.inserts++
	r.mu.Unlock()
	if r.insertHook != nil {
		return r.insertHook(ctx, collection, doc)
	}
	return r.Store.Insert(ctx, collection, doc)
}

func (r *recordingStore) QueryEquals(ctx context.Context, collection, field string, value any) ([]directory.Record, error) {
	if r.queryHook != nil {
		return r.queryHook(ctx, collection, field, value)
	}
	return r.Store.QueryEquals(ctx, collection, field, value)
}

func (r *recordingStore) AppendUnique(ctx context.Context, collection, id, field string, value any) (bool, error) {
	r.mu.Lock()
	r.appends++
	r.mu.Unlock()
	return r.Store.AppendUnique(ctx, collection, id, field, value)
}

func (r *recordingStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
	return r.Store.Update(ctx, collection, id, fields)
}

func (r *recordingStore) counts() (inserts, appends, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts, r.appends, r.updates
}
