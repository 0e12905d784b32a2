package userstore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// runStoreSuite exercises the Store contract against any implementation.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create and lookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &User{Username: "9876543210", Email: "Asha@Example.com", Name: "Asha", PasswordHash: "h", ReferralCode: "ASHX1Y2"}
		if err := s.Create(ctx, u); err != nil {
			t.Fatalf("create: %v", err)
		}
		if u.ID == 0 || u.CreatedAt.IsZero() {
			t.Fatalf("create must assign id and timestamp: %+v", u)
		}

		byName, err := s.ByUsername(ctx, "9876543210")
		if err != nil || byName.ID != u.ID {
			t.Fatalf("by username: %+v %v", byName, err)
		}
		byEmail, err := s.ByEmail(ctx, "asha@example.com")
		if err != nil || byEmail.ID != u.ID {
			t.Fatalf("by email should be case-insensitive: %+v %v", byEmail, err)
		}
		byID, err := s.ByID(ctx, u.ID)
		if err != nil || byID.ReferralCode != "ASHX1Y2" || byID.Name != "Asha" {
			t.Fatalf("by id: %+v %v", byID, err)
		}

		if _, err := s.ByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Create(ctx, &User{Username: "dup", Email: "a@x.io", PasswordHash: "h"}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Create(ctx, &User{Username: "dup", Email: "b@x.io", PasswordHash: "h"}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected duplicate username error, got %v", err)
		}
		if err := s.Create(ctx, &User{Username: "other", Email: "A@x.io", PasswordHash: "h"}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected duplicate email error, got %v", err)
		}
	})

	t.Run("coins and password", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := &User{Username: "coins", Email: "c@x.io", PasswordHash: "old"}
		if err := s.Create(ctx, u); err != nil {
			t.Fatalf("create: %v", err)
		}

		if err := s.AddCoins(ctx, u.ID, 30); err != nil {
			t.Fatalf("add coins: %v", err)
		}
		if err := s.AddCoins(ctx, u.ID, 20); err != nil {
			t.Fatalf("add coins: %v", err)
		}
		coins, err := s.Coins(ctx, u.ID)
		if err != nil || coins != 50 {
			t.Fatalf("expected 50 coins, got %d %v", coins, err)
		}
		if err := s.AddCoins(ctx, 999999, 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		if err := s.UpdatePasswordHash(ctx, u.ID, "new"); err != nil {
			t.Fatalf("update hash: %v", err)
		}
		got, _ := s.ByID(ctx, u.ID)
		if got.PasswordHash != "new" {
			t.Fatalf("hash not updated: %q", got.PasswordHash)
		}
	})

	t.Run("list ordered", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, name := range []string{"a", "b", "c"} {
			if err := s.Create(ctx, &User{Username: name, Email: name + "@x.io", PasswordHash: "h"}); err != nil {
				t.Fatalf("create %s: %v", name, err)
			}
		}
		users, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(users) != 3 || users[0].Username != "a" || users[2].Username != "c" {
			t.Fatalf("unexpected list: %+v", users)
		}
	})

	t.Run("referral redemption", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		owner := &User{Username: "owner", Email: "o@x.io", PasswordHash: "h"}
		guest := &User{Username: "guest", Email: "g@x.io", PasswordHash: "h"}
		late := &User{Username: "late", Email: "l@x.io", PasswordHash: "h"}
		for _, u := range []*User{owner, guest, late} {
			if err := s.Create(ctx, u); err != nil {
				t.Fatalf("create: %v", err)
			}
		}

		if err := s.CreateReferral(ctx, owner.ID, "OWNAB12"); err != nil {
			t.Fatalf("create referral: %v", err)
		}
		if err := s.CreateReferral(ctx, owner.ID, "OWNAB12"); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected duplicate referral, got %v", err)
		}

		if _, err := s.RedeemReferral(ctx, "OWNAB12", owner.ID, Reward{Referrer: 100, NewUser: 50}); !errors.Is(err, ErrReferralUnavailable) {
			t.Fatalf("self redemption must fail, got %v", err)
		}

		ownerID, err := s.RedeemReferral(ctx, "OWNAB12", guest.ID, Reward{Referrer: 100, NewUser: 50})
		if err != nil {
			t.Fatalf("redeem: %v", err)
		}
		if ownerID != owner.ID {
			t.Fatalf("expected owner %d, got %d", owner.ID, ownerID)
		}

		if c, _ := s.Coins(ctx, owner.ID); c != 100 {
			t.Fatalf("owner coins = %d, want 100", c)
		}
		if c, _ := s.Coins(ctx, guest.ID); c != 50 {
			t.Fatalf("guest coins = %d, want 50", c)
		}
		g, _ := s.ByID(ctx, guest.ID)
		if g.ReferredBy == nil || *g.ReferredBy != owner.ID {
			t.Fatalf("guest should be referred by owner: %+v", g.ReferredBy)
		}

		if _, err := s.RedeemReferral(ctx, "OWNAB12", late.ID, Reward{Referrer: 100, NewUser: 50}); !errors.Is(err, ErrReferralUnavailable) {
			t.Fatalf("used code must be unavailable, got %v", err)
		}
		if _, err := s.RedeemReferral(ctx, "NOPE", late.ID, Reward{Referrer: 100, NewUser: 50}); !errors.Is(err, ErrReferralUnavailable) {
			t.Fatalf("unknown code must be unavailable, got %v", err)
		}
	})

	t.Run("concurrent redemption grants once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		owner := &User{Username: "owner2", Email: "o2@x.io", PasswordHash: "h"}
		if err := s.Create(ctx, owner); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.CreateReferral(ctx, owner.ID, "RACE001"); err != nil {
			t.Fatalf("create referral: %v", err)
		}

		const n = 8
		guests := make([]*User, n)
		for i := range guests {
			guests[i] = &User{Username: "g" + string(rune('a'+i)), Email: string(rune('a'+i)) + "@race.io", PasswordHash: "h"}
			if err := s.Create(ctx, guests[i]); err != nil {
				t.Fatalf("create guest: %v", err)
			}
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for _, g := range guests {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if _, err := s.RedeemReferral(ctx, "RACE001", id, Reward{Referrer: 100, NewUser: 50}); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(g.ID)
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one redemption, got %d", wins)
		}
		if c, _ := s.Coins(ctx, owner.ID); c != 100 {
			t.Fatalf("owner coins = %d, want 100", c)
		}
	})
}
