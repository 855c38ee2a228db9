package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_Incr_CountsWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(MemoryStoreConfig{Now: func() time.Time { return now }})

	for i := int64(1); i <= 6; i++ {
		count, ttl, err := store.Incr(context.Background(), "rl:test:user:42", time.Minute)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if count != i {
			t.Errorf("Incr() count = %d, want %d", count, i)
		}
		if ttl != time.Minute {
			t.Errorf("Incr() ttl = %v, want %v", ttl, time.Minute)
		}
	}
}

func TestMemoryStore_Incr_ExpiryNotRefreshedBySubsequentIncrements(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(MemoryStoreConfig{Now: func() time.Time { return now }})

	if _, _, err := store.Incr(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("Incr() error = %v", err)
	}

	// A steady stream of increments must not postpone the window reset.
	now = now.Add(30 * time.Second)
	_, ttl, err := store.Incr(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if ttl != 30*time.Second {
		t.Errorf("ttl after half window = %v, want %v", ttl, 30*time.Second)
	}
}

func TestMemoryStore_Incr_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(MemoryStoreConfig{Now: func() time.Time { return now }})

	for i := 0; i < 6; i++ {
		if _, _, err := store.Incr(context.Background(), "k", time.Minute); err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
	}

	// After the window fully elapses the counter starts over.
	now = now.Add(time.Minute)
	count, ttl, err := store.Incr(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count after window elapsed = %d, want 1", count)
	}
	if ttl != time.Minute {
		t.Errorf("ttl after window elapsed = %v, want %v", ttl, time.Minute)
	}
}

func TestMemoryStore_Incr_KeysAreIndependent(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{})

	if _, _, err := store.Incr(context.Background(), "a", time.Minute); err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	count, _, err := store.Incr(context.Background(), "b", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count for fresh key = %d, want 1", count)
	}
}

func TestMemoryStore_Incr_ConcurrentNoLostUpdates(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{})

	const n = 64
	var wg sync.WaitGroup
	counts := make(chan int64, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, _, err := store.Incr(context.Background(), "shared", time.Minute)
			if err != nil {
				t.Errorf("Incr() error = %v", err)
				return
			}
			counts <- count
		}()
	}
	wg.Wait()
	close(counts)

	// Every increment must be observed exactly once: the post-increment
	// counts form a permutation of 1..n.
	seen := make(map[int64]bool, n)
	for c := range counts {
		if c < 1 || c > n {
			t.Errorf("count %d out of range [1,%d]", c, n)
		}
		if seen[c] {
			t.Errorf("count %d observed twice", c)
		}
		seen[c] = true
	}
	if len(seen) != n {
		t.Errorf("observed %d distinct counts, want %d", len(seen), n)
	}
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{
			name:    "valid user profile",
			profile: Profile{Name: "create_training", WindowMS: 600000, Max: 5, KeyType: KeyTypeUser},
			wantErr: false,
		},
		{
			name:    "valid ip profile",
			profile: Profile{Name: "login", WindowMS: 900000, Max: 5, KeyType: KeyTypeIP},
			wantErr: false,
		},
		{
			name:    "zero window",
			profile: Profile{Name: "p", WindowMS: 0, Max: 5, KeyType: KeyTypeIP},
			wantErr: true,
		},
		{
			name:    "zero max",
			profile: Profile{Name: "p", WindowMS: 1000, Max: 0, KeyType: KeyTypeIP},
			wantErr: true,
		},
		{
			name:    "unknown key type",
			profile: Profile{Name: "p", WindowMS: 1000, Max: 5, KeyType: "session"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.profile.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
