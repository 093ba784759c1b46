package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Resilience tests exercise the refresh token invariants under concurrent
// requests. They use the TestResilience_ prefix for easy filtering:
//
//	go test -run TestResilience -race ./internal/auth/...

func concurrentStores(t *testing.T) map[string]func() (RefreshTokenStore, UserLookup, Identity) {
	return map[string]func() (RefreshTokenStore, UserLookup, Identity){
		"memory": func() (RefreshTokenStore, UserLookup, Identity) {
			user := activeUser("u-1", ViewOwnUser)
			return NewMemoryTokenRepository(), newStubUsers(user), user.ToIdentity()
		},
		"sqlite": func() (RefreshTokenStore, UserLookup, Identity) {
			db := testDB(t)
			user := seedTestUser(t, db, "race@example.com", ViewOwnUser)
			return NewTokenRepository(db), NewUserRepository(db), user.ToIdentity()
		},
	}
}

// TestResilience_ConcurrentGenerate verifies that simultaneous logins for one
// identity converge to a single live record.
func TestResilience_ConcurrentGenerate(t *testing.T) {
	const workers = 16

	for name, setup := range concurrentStores(t) {
		t.Run(name, func(t *testing.T) {
			store, users, identity := setup()
			_, refresh := testServices(t, store, users, newTestClock())
			ctx := context.Background()

			var wg sync.WaitGroup
			issued := make(chan string, workers)
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					pair, err := refresh.Generate(ctx, identity, "")
					if err != nil {
						t.Errorf("Generate() error = %v", err)
						return
					}
					issued <- pair.RefreshToken
				}()
			}
			wg.Wait()
			close(issued)

			rec, err := store.FindByUser(ctx, identity.ID)
			if err != nil {
				t.Fatalf("FindByUser() error = %v", err)
			}

			live := 0
			for value := range issued {
				if _, err := store.FindByValue(ctx, value); err == nil {
					live++
					if value != rec.Token {
						t.Errorf("live value %q is not the user's record", value)
					}
				}
			}
			if live != 1 {
				t.Errorf("live refresh tokens = %d, want 1", live)
			}
		})
	}
}

// TestResilience_ConcurrentRefresh verifies that when the same refresh token
// is presented twice at once, exactly one exchange succeeds.
func TestResilience_ConcurrentRefresh(t *testing.T) {
	const workers = 8

	for name, setup := range concurrentStores(t) {
		t.Run(name, func(t *testing.T) {
			store, users, identity := setup()
			_, refresh := testServices(t, store, users, newTestClock())
			ctx := context.Background()

			pair, err := refresh.Generate(ctx, identity, "")
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			var wg sync.WaitGroup
			results := make(chan error, workers)
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := refresh.Refresh(ctx, pair.RefreshToken)
					results <- err
				}()
			}
			wg.Wait()
			close(results)

			var successes int
			for err := range results {
				switch {
				case err == nil:
					successes++
				case !errors.Is(err, ErrUnauthorized):
					t.Errorf("Refresh() error = %v, want ErrUnauthorized", err)
				}
			}
			if successes != 1 {
				t.Errorf("successful refreshes = %d, want 1", successes)
			}
		})
	}
}
