package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oakdental/frontdesk/internal/config"
	"github.com/oakdental/frontdesk/internal/notify"
	"github.com/oakdental/frontdesk/internal/store"
)

const testSecret = "test-secret-key-for-jwt"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type testEnv struct {
	store    *store.Store
	auth     *AuthService
	desk     *FrontDesk
	tokens   *TokenVerifier
	notifier *notify.Recorder
	clock    *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewStore("sqlite", "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &notify.Recorder{}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	cfg := config.Default().Auth

	tokens := NewTokenVerifier(testSecret).WithClock(clock.Now)
	return &testEnv{
		store:    st,
		auth:     NewAuthService(st, tokens, rec, rec, cfg, logger).WithClock(clock.Now),
		desk:     NewFrontDesk(st, rec, rec, logger),
		tokens:   tokens,
		notifier: rec,
		clock:    clock,
	}
}

func (e *testEnv) seedAdmin(t *testing.T, email, password, phone string) {
	t.Helper()
	_, err := e.auth.Register(context.Background(), RegisterInput{
		Name:     "Dr. Oak",
		Email:    email,
		Password: password,
		Phone:    phone,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
}

// fixedCodes returns a generator yielding codes in order.
func fixedCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("error kind: got %s, want %s (%v)", got, want, err)
	}
}
