package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "gg", time.Hour), mr
}

func storesUnderTest(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStoreTest(t)
	return map[string]Store{
		"redis":  redisStore,
		"memory": NewMemoryStore(time.Hour),
	}
}

func newLoggedIn(t *testing.T, userID int64) *State {
	t.Helper()
	st, err := NewState(time.Now())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	st.Bind(userID, true)
	st.Set(FlagLoginFailed)
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newLoggedIn(t, 42)

			if err := store.Save(ctx, st); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := store.Load(ctx, st.ID)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.ID != st.ID || !got.LoggedIn || got.UserID != 42 || !got.Remember || !got.Has(FlagLoginFailed) {
				t.Fatalf("unexpected state %+v", got)
			}
		})
	}
}

func TestLoadUnknownIsNotFound(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(context.Background(), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRotateMovesStateAndDropsOldKey(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newLoggedIn(t, 7)
			if err := store.Save(ctx, st); err != nil {
				t.Fatalf("save: %v", err)
			}
			old := st.ID

			if err := store.Rotate(ctx, st); err != nil {
				t.Fatalf("rotate: %v", err)
			}
			if st.ID == old {
				t.Fatal("rotate must assign a fresh id")
			}
			if _, err := store.Load(ctx, old); !errors.Is(err, ErrNotFound) {
				t.Fatalf("old id must be gone, got %v", err)
			}
			got, err := store.Load(ctx, st.ID)
			if err != nil {
				t.Fatalf("load rotated: %v", err)
			}
			if got.UserID != 7 {
				t.Fatalf("rotated state lost user binding: %+v", got)
			}
		})
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newLoggedIn(t, 3)
			if err := store.Save(ctx, st); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := store.Delete(ctx, st.ID); err != nil {
				t.Fatalf("first delete: %v", err)
			}
			if err := store.Delete(ctx, st.ID); err != nil {
				t.Fatalf("second delete: %v", err)
			}
			if _, err := store.Load(ctx, st.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestDeleteUserDropsAllSessions(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := newLoggedIn(t, 9)
			b := newLoggedIn(t, 9)
			other := newLoggedIn(t, 10)
			for _, st := range []*State{a, b, other} {
				if err := store.Save(ctx, st); err != nil {
					t.Fatalf("save: %v", err)
				}
			}

			if err := store.DeleteUser(ctx, 9); err != nil {
				t.Fatalf("delete user: %v", err)
			}
			for _, st := range []*State{a, b} {
				if _, err := store.Load(ctx, st.ID); !errors.Is(err, ErrNotFound) {
					t.Fatalf("session %s survived DeleteUser: %v", st.ID, err)
				}
			}
			if _, err := store.Load(ctx, other.ID); err != nil {
				t.Fatalf("unrelated session removed: %v", err)
			}
		})
	}
}

func TestRedisSaveAppliesTTL(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()
	st := newLoggedIn(t, 1)
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(time.Hour + time.Second)
	if _, err := store.Load(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry after TTL, got %v", err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	mr.Close()

	_, err := store.Load(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ping to fail, got %v", err)
	}
}

func TestRedisCorruptBlob(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	if err := mr.Set(store.key("bad"), "\x63garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := store.Load(context.Background(), "bad")
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if err := store.Delete(context.Background(), "bad"); err != nil {
		t.Fatalf("delete corrupt: %v", err)
	}
	if mr.Exists(store.key("bad")) {
		t.Fatal("corrupt key must be removed")
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()
	st := newLoggedIn(t, 5)
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := store.Load(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expired entry must be evicted, len=%d", store.Len())
	}
}

func TestLoadOrNew(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	fresh, err := LoadOrNew(ctx, store, "not-base64!", now)
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	if !fresh.IsGuest() || ValidID(fresh.ID) != nil {
		t.Fatalf("expected fresh guest state, got %+v", fresh)
	}

	fresh.Bind(8, false)
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := LoadOrNew(ctx, store, fresh.ID, now)
	if err != nil {
		t.Fatalf("LoadOrNew existing: %v", err)
	}
	if again.UserID != 8 {
		t.Fatalf("expected stored state, got %+v", again)
	}
}
