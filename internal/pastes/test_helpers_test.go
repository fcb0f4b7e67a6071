package pastes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/blobstore"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/hits"
	sqlite "github.com/glebarez/sqlite"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testReferenceTime = time.Date(2022, 6, 24, 12, 0, 0, 0, time.UTC)

var (
	alice = Viewer{UserID: "user-alice", Username: "alice"}
	bob   = Viewer{UserID: "user-bob", Username: "bob"}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(delta)
}

type mapDirectory map[string]string

func (d mapDirectory) UserIDForUsername(_ context.Context, username string) (string, bool, error) {
	userID, ok := d[username]
	return userID, ok, nil
}

type failingBlobStore struct{}

func (failingBlobStore) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}

func (failingBlobStore) Get(context.Context, string) ([]byte, error) {
	return nil, blobstore.ErrNotFound
}

func (failingBlobStore) Delete(context.Context, string) error {
	return nil
}

type testEnv struct {
	service *Service
	db      *gorm.DB
	clock   *testClock
	blobs   *blobstore.FileStore
	fs      afero.Fs
}

type testOption func(*ServiceConfig)

func withBlobs(store blobstore.Store) testOption {
	return func(cfg *ServiceConfig) { cfg.Blobs = store }
}

func withLogger(logger *zap.Logger) testOption {
	return func(cfg *ServiceConfig) { cfg.Logger = logger }
}

func withPageSize(size int) testOption {
	return func(cfg *ServiceConfig) { cfg.PageSize = size }
}

func withArchiveLength(length int) testOption {
	return func(cfg *ServiceConfig) { cfg.ArchiveLength = length }
}

func withHits(counter hits.Counter) testOption {
	return func(cfg *ServiceConfig) { cfg.Hits = counter }
}

func newTestEnv(t *testing.T, options ...testOption) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:pastemate_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := &testClock{now: testReferenceTime}
	memory := afero.NewMemMapFs()
	blobs := blobstore.NewFileStoreFs(memory)

	cfg := ServiceConfig{
		Database:    db,
		Clock:       clock.Now,
		IDProvider:  NewUUIDProvider(),
		Highlighter: highlight.New(highlight.Config{}),
		Blobs:       blobs,
		Directory:   mapDirectory{"alice": alice.UserID, "bob": bob.UserID},
		Password:    PasswordParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
	}
	for _, option := range options {
		option(&cfg)
	}

	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("failed to construct pastes service: %v", err)
	}
	return &testEnv{service: service, db: db, clock: clock, blobs: blobs, fs: memory}
}

func (env *testEnv) create(t *testing.T, draft Draft, viewer Viewer) *Paste {
	t.Helper()
	paste, err := env.service.CreatePaste(context.Background(), draft, viewer)
	if err != nil {
		t.Fatalf("create paste failed: %v", err)
	}
	env.clock.Advance(time.Second)
	return paste
}

func (env *testEnv) reload(t *testing.T, id string) (*Paste, bool) {
	t.Helper()
	var paste Paste
	err := env.db.Where("id = ?", id).Take(&paste).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	return &paste, true
}

func (env *testEnv) blobExists(t *testing.T, key string) bool {
	t.Helper()
	_, err := env.blobs.Get(context.Background(), key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("blob lookup failed: %v", err)
	}
	return true
}

func requireNotFound(t *testing.T, err error, context string) {
	t.Helper()
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("%s: expected ErrNotFound, got %v", context, err)
	}
}

func requireValidation(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr
}

func publicDraft(content string) Draft {
	return Draft{Content: content, Syntax: highlight.PlainText, Exposure: ExposurePublic}
}
