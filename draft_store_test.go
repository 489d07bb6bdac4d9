package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "learnhub.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := autoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormDB
}

func draftStores(t *testing.T, clock *fakeClock, ttl time.Duration) map[string]DraftStore {
	t.Helper()

	mem := NewMemoryDraftStore(ttl)
	mem.now = clock.Now

	pg := NewGormDraftStore(newTestDB(t), ttl)
	pg.now = clock.Now

	return map[string]DraftStore{
		"memory": mem,
		"gorm":   pg,
	}
}

func TestDraftStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}

	for name, store := range draftStores(t, clock, time.Hour) {
		t.Run(name, func(t *testing.T) {
			d, err := store.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if d.ID == "" || d.OwnerID != "user-1" {
				t.Fatalf("created draft: got %+v", d)
			}

			got, err := store.Get(ctx, d.ID, "user-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if len(got.Tree.Modules) != 1 || len(got.Tree.Modules[0].Lessons) != 1 {
				t.Fatalf("fresh draft tree: got %+v", got.Tree)
			}
			if got.Meta.DurationWeeks != 8 {
				t.Fatalf("fresh draft meta: got %+v", got.Meta)
			}

			// без Save изменения в хранилище не попадают
			got.Tree.AddModule()
			again, err := store.Get(ctx, d.ID, "user-1")
			if err != nil {
				t.Fatalf("get again: %v", err)
			}
			if len(again.Tree.Modules) != 1 {
				t.Fatalf("unsaved change leaked into store: %d modules", len(again.Tree.Modules))
			}

			got.Meta.SetTitle("Intro to Go")
			if err := store.Save(ctx, got); err != nil {
				t.Fatalf("save: %v", err)
			}
			saved, err := store.Get(ctx, d.ID, "user-1")
			if err != nil {
				t.Fatalf("get saved: %v", err)
			}
			if len(saved.Tree.Modules) != 2 || saved.Meta.Slug != "intro-to-go" {
				t.Fatalf("saved draft: got modules=%d slug=%q", len(saved.Tree.Modules), saved.Meta.Slug)
			}

			if err := store.Delete(ctx, d.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := store.Get(ctx, d.ID, "user-1"); !errors.Is(err, ErrDraftNotFound) {
				t.Fatalf("get deleted: got err=%v want ErrDraftNotFound", err)
			}
		})
	}
}

func TestDraftStoreOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}

	for name, store := range draftStores(t, clock, time.Hour) {
		t.Run(name, func(t *testing.T) {
			mine, err := store.Create(ctx, "alice")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			theirs, err := store.Create(ctx, "bob")
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			if _, err := store.Get(ctx, mine.ID, "bob"); !errors.Is(err, ErrDraftNotFound) {
				t.Fatalf("foreign get: got err=%v want ErrDraftNotFound", err)
			}

			forged := *mine
			forged.OwnerID = "bob"
			if err := store.Save(ctx, &forged); !errors.Is(err, ErrDraftNotFound) {
				t.Fatalf("foreign save: got err=%v want ErrDraftNotFound", err)
			}

			if err := store.DeleteOwner(ctx, "alice"); err != nil {
				t.Fatalf("delete owner: %v", err)
			}
			if _, err := store.Get(ctx, mine.ID, "alice"); !errors.Is(err, ErrDraftNotFound) {
				t.Fatalf("alice draft survived sign-out: err=%v", err)
			}
			if _, err := store.Get(ctx, theirs.ID, "bob"); err != nil {
				t.Fatalf("bob draft should stay: %v", err)
			}
		})
	}
}

func TestDraftStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}

	for name, store := range draftStores(t, clock, time.Hour) {
		t.Run(name, func(t *testing.T) {
			start := clock.t
			defer func() { clock.t = start }()

			d, err := store.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			clock.Advance(45 * time.Minute)
			got, err := store.Get(ctx, d.ID, "user-1")
			if err != nil {
				t.Fatalf("get before ttl: %v", err)
			}
			// сохранение продлевает жизнь черновика
			if err := store.Save(ctx, got); err != nil {
				t.Fatalf("save: %v", err)
			}

			clock.Advance(45 * time.Minute)
			if _, err := store.Get(ctx, d.ID, "user-1"); err != nil {
				t.Fatalf("get after save: %v", err)
			}

			clock.Advance(2 * time.Hour)
			if _, err := store.Get(ctx, d.ID, "user-1"); !errors.Is(err, ErrDraftNotFound) {
				t.Fatalf("get expired: got err=%v want ErrDraftNotFound", err)
			}
		})
	}
}

func TestNewDraftStoreSelectsBackend(t *testing.T) {
	c := defaultConfig()
	if _, ok := newDraftStore(c, nil).(*MemoryDraftStore); !ok {
		t.Fatalf("default draft store should be in memory")
	}
	c.DraftStore = draftStorePostgres
	if _, ok := newDraftStore(c, newTestDB(t)).(*GormDraftStore); !ok {
		t.Fatalf("postgres draft store should be gorm-backed")
	}
}
