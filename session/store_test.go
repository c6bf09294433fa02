package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestPersistence(t *testing.T) (*miniredis.Miniredis, *RedisPersistence) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisPersistence(rdb, "aftest")
}

func testIdentity() Identity {
	return Identity{
		ID:            "u1",
		Phone:         "+919876543210",
		Name:          "Asha",
		Role:          RoleCustomer,
		LoyaltyPoints: 60,
		PerSalonPoints: map[string]int{
			"salon-9": 25,
		},
		FavoriteSalons: map[string]struct{}{
			"salon-9": {},
		},
	}
}

func TestStoreSetGetClear(t *testing.T) {
	_, p := newTestPersistence(t)
	store := NewStore(p)
	ctx := context.Background()

	if _, ok := store.Get(ctx); ok {
		t.Fatal("expected empty store at cold start")
	}

	if err := store.Set(ctx, testIdentity(), "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := store.Get(ctx)
	if !ok {
		t.Fatal("expected session after Set")
	}
	if got.Token != "tok-1" || got.Identity.ID != "u1" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if store.Rehydrated(ctx) {
		t.Fatal("fresh session must not report rehydrated")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := store.Get(ctx); ok {
		t.Fatal("expected empty store after Clear")
	}
}

func TestStoreRehydratesFromPersistence(t *testing.T) {
	_, p := newTestPersistence(t)
	ctx := context.Background()

	first := NewStore(p)
	if err := first.Set(ctx, testIdentity(), "tok-reload"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A second store over the same persistence simulates a reload.
	second := NewStore(p)
	got, ok := second.Get(ctx)
	if !ok {
		t.Fatal("expected rehydrated session")
	}
	if got.Token != "tok-reload" {
		t.Fatalf("token = %q, want tok-reload", got.Token)
	}
	if got.Identity.PointsFor("salon-9") != 25 {
		t.Fatalf("per-salon points lost across reload: %+v", got.Identity)
	}
	if !second.Rehydrated(ctx) {
		t.Fatal("restored session must report rehydrated")
	}
}

func TestStoreCorruptRecordIsAbsent(t *testing.T) {
	mr, p := newTestPersistence(t)
	ctx := context.Background()

	mr.Set("aftest:session", "not a session blob")

	store := NewStore(p)
	if _, ok := store.Get(ctx); ok {
		t.Fatal("corrupt record must read as absent")
	}
	if mr.Exists("aftest:session") {
		t.Fatal("corrupt record should be dropped on load")
	}
}

func TestStoreUpdatePreservesToken(t *testing.T) {
	_, p := newTestPersistence(t)
	store := NewStore(p)
	ctx := context.Background()

	if err := store.Set(ctx, Identity{ID: "u1", Phone: "+919876543210", Role: RoleCustomer}, "tok-keep"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	updated := testIdentity()
	updated.Name = "Asha Rao"
	if err := store.Update(ctx, updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := store.Get(ctx)
	if got.Token != "tok-keep" {
		t.Fatalf("Update must preserve token, got %q", got.Token)
	}
	if got.Identity.Name != "Asha Rao" {
		t.Fatalf("Update must replace identity, got %+v", got.Identity)
	}
}

func TestStoreUpdateWithoutSessionIsNoop(t *testing.T) {
	_, p := newTestPersistence(t)
	store := NewStore(p)
	ctx := context.Background()

	if err := store.Update(ctx, testIdentity()); err != nil {
		t.Fatalf("Update on empty store: %v", err)
	}
	if _, ok := store.Get(ctx); ok {
		t.Fatal("Update must not create a session")
	}
}

func TestCompletePredicate(t *testing.T) {
	cases := []struct {
		name    string
		session Session
		want    bool
	}{
		{"name and phone", Session{Identity: Identity{Name: "A", Phone: "+919876543210"}}, true},
		{"name and email", Session{Identity: Identity{Name: "A", Email: "a@b.c"}}, true},
		{"name only", Session{Identity: Identity{Name: "A"}}, false},
		{"contact only", Session{Identity: Identity{Phone: "+919876543210"}}, false},
		{"neither", Session{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.session.Complete(); got != tc.want {
				t.Fatalf("Complete() = %v, want %v", got, tc.want)
			}
		})
	}
}
