package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pacetrack/gateway/internal/errors"
	"github.com/pacetrack/gateway/internal/ratelimit"
	"github.com/pacetrack/gateway/internal/trust"
)

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, context.DeadlineExceeded
}

func (failingStore) Close() error { return nil }

func ipProfile(max int) ratelimit.Profile {
	return ratelimit.Profile{
		Name:     "login",
		WindowMS: int64(15 * time.Minute / time.Millisecond),
		Max:      max,
		KeyType:  ratelimit.KeyTypeIP,
		Message:  "Too many login attempts, please try again later",
	}
}

func userProfile(max int) ratelimit.Profile {
	return ratelimit.Profile{
		Name:     "create_training",
		WindowMS: int64(time.Minute / time.Millisecond),
		Max:      max,
		KeyType:  ratelimit.KeyTypeUser,
		Message:  "Too many trainings created, slow down",
	}
}

func limiterHandler(t *testing.T, l *Limiter, profile ratelimit.Profile, authenticated bool) http.Handler {
	t.Helper()
	mw, err := l.Middleware(profile, authenticated)
	if err != nil {
		t.Fatalf("Middleware() error = %v", err)
	}
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestLimiter_DeniesAboveMax(t *testing.T) {
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{})
	l := NewLimiter(store, testLogger(), nil)
	handler := limiterHandler(t, l, ipProfile(5), false)

	for i := 1; i <= 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if code := decodeErrorCode(t, rec); code != string(errors.CodeRateLimited) {
		t.Errorf("code = %q, want %q", code, errors.CodeRateLimited)
	}

	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("Retry-After header missing on a denial")
	}
	secs, err := strconv.Atoi(retryAfter)
	if err != nil || secs < 1 || secs > 15*60 {
		t.Errorf("Retry-After = %q, want whole seconds within the window", retryAfter)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	now := time.Now()
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{
		Now: func() time.Time { return now },
	})
	l := NewLimiter(store, testLogger(), nil)
	handler := limiterHandler(t, l, ipProfile(1), false)

	serve := func() int {
		req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve(); code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", code, http.StatusOK)
	}
	if code := serve(); code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// The denied increment stood, but once the window lapses the counter
	// starts fresh.
	now = now.Add(15*time.Minute + time.Millisecond)
	if code := serve(); code != http.StatusOK {
		t.Fatalf("request after reset: status = %d, want %d", code, http.StatusOK)
	}
}

func TestLimiter_IPKeysAreIndependent(t *testing.T) {
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{})
	l := NewLimiter(store, testLogger(), nil)
	handler := limiterHandler(t, l, ipProfile(1), false)

	serve := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("first caller: status = %d, want %d", code, http.StatusOK)
	}
	if code := serve("10.0.0.1:6000"); code != http.StatusTooManyRequests {
		t.Errorf("same address, new port: status = %d, want %d (keyed by host, not port)", code, http.StatusTooManyRequests)
	}
	if code := serve("10.0.0.2:5000"); code != http.StatusOK {
		t.Errorf("different address: status = %d, want %d", code, http.StatusOK)
	}
}

func TestLimiter_UserKeysAreIndependent(t *testing.T) {
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{})
	l := NewLimiter(store, testLogger(), nil)
	handler := limiterHandler(t, l, userProfile(1), true)

	serve := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/trainings", nil)
		ctx := trust.NewContext(req.Context(), trust.Context{CallerID: userID, Token: "t"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		return rec.Code
	}

	if code := serve("42"); code != http.StatusOK {
		t.Fatalf("user 42 first request: status = %d, want %d", code, http.StatusOK)
	}
	if code := serve("42"); code != http.StatusTooManyRequests {
		t.Errorf("user 42 second request: status = %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := serve("43"); code != http.StatusOK {
		t.Errorf("user 43 first request: status = %d, want %d", code, http.StatusOK)
	}
}

func TestLimiter_UserKeyedRequiresAuthenticatedRoute(t *testing.T) {
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{})
	l := NewLimiter(store, testLogger(), nil)

	if _, err := l.Middleware(userProfile(10), false); err == nil {
		t.Error("Middleware() accepted a user-keyed profile on an unauthenticated route")
	}
}

func TestLimiter_RejectsInvalidProfile(t *testing.T) {
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{})
	l := NewLimiter(store, testLogger(), nil)

	bad := ratelimit.Profile{Name: "broken", WindowMS: 0, Max: 10, KeyType: ratelimit.KeyTypeIP}
	if _, err := l.Middleware(bad, false); err == nil {
		t.Error("Middleware() accepted a profile with a zero window")
	}
}

func TestLimiter_FailsClosedOnStoreError(t *testing.T) {
	l := NewLimiter(failingStore{}, testLogger(), nil)
	handler := limiterHandler(t, l, ipProfile(100), false)

	req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d (deny when the counter store is unreachable)", rec.Code, http.StatusTooManyRequests)
	}
	if code := decodeErrorCode(t, rec); code != string(errors.CodeRateLimited) {
		t.Errorf("code = %q, want %q", code, errors.CodeRateLimited)
	}
	if rec.Header().Get("Retry-After") != "900" {
		t.Errorf("Retry-After = %q, want full window %q", rec.Header().Get("Retry-After"), "900")
	}
}

func TestLimiter_DenialCarriesProfileMessage(t *testing.T) {
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{})
	l := NewLimiter(store, testLogger(), nil)
	handler := limiterHandler(t, l, ipProfile(1), false)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body not JSON: %v", err)
	}
	if body.Message != "Too many login attempts, please try again later" {
		t.Errorf("message = %q, want the profile message", body.Message)
	}
}
