package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// apiStub simulates the backend: a protected endpoint that accepts only the
// current access token, and a refresh endpoint that rotates it.
type apiStub struct {
	mu           sync.Mutex
	validAccess  string
	validRefresh string
	refreshCalls int32
	failRefresh  bool
	holdRefresh  chan struct{}
}

func newAPIStub(access, refresh string) *apiStub {
	return &apiStub{validAccess: access, validRefresh: refresh}
}

func (s *apiStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", s.refresh)
	mux.HandleFunc("/api/orders/seller-orders", s.protected)
	return mux
}

func (s *apiStub) refresh(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.refreshCalls, 1)

	if s.holdRefresh != nil {
		<-s.holdRefresh
	}

	if s.failRefresh {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if req.RefreshToken != s.validRefresh {
		s.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	s.validAccess = "access-" + time.Now().Format("150405.000000000")
	s.validRefresh = "refresh-" + s.validAccess
	access, refresh := s.validAccess, s.validRefresh
	s.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *apiStub) protected(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	valid := "Bearer " + s.validAccess
	s.mu.Unlock()

	if r.Header.Get("Authorization") != valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestClient(t *testing.T, stub *apiStub, creds Credentials) (*Client, *MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	if creds != (Credentials{}) {
		if err := store.Save(creds); err != nil {
			t.Fatal(err)
		}
	}
	return New(srv.URL, store), store
}

func TestAttachesBearerCredential(t *testing.T) {
	stub := newAPIStub("good-access", "good-refresh")
	client, _ := newTestClient(t, stub, Credentials{Access: "good-access", Refresh: "good-refresh"})

	resp, err := client.Get(context.Background(), "/api/orders/seller-orders")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if calls := atomic.LoadInt32(&stub.refreshCalls); calls != 0 {
		t.Fatalf("refresh calls = %d, want 0", calls)
	}
}

func TestDoesNotMutateExistingAuthorization(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	store := NewMemoryStore()
	store.Save(Credentials{Access: "store-access", Refresh: "store-refresh"})
	client := New(srv.URL, store)

	req, _ := client.NewRequest(context.Background(), http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer preset")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if seen != "Bearer preset" {
		t.Fatalf("Authorization = %q, want the preset header untouched", seen)
	}
}

// waitForWaiters blocks until the client has a refresh in flight with want
// requests queued behind it.
func waitForWaiters(t *testing.T, client *Client, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client.state.mu.Lock()
		queued := len(client.state.waiters)
		refreshing := client.state.refreshing
		client.state.mu.Unlock()
		if refreshing && queued == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for requests to queue behind the refresh")
}

func TestConcurrent401sTriggerSingleRefresh(t *testing.T) {
	stub := newAPIStub("fresh", "refresh-0")
	release := make(chan struct{})
	stub.holdRefresh = release
	client, store := newTestClient(t, stub, Credentials{Access: "stale", Refresh: "refresh-0"})

	const n = 12
	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(context.Background(), "/api/orders/seller-orders")
			if err != nil {
				errs[i] = err
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}

	// Hold the refresh response until every other request is queued, so all
	// twelve 401s land inside one refresh cycle.
	waitForWaiters(t, client, n-1)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if statuses[i] != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, statuses[i])
		}
	}

	if calls := atomic.LoadInt32(&stub.refreshCalls); calls != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", calls)
	}

	creds, ok := store.Load()
	if !ok || creds.Access == "stale" {
		t.Fatalf("credentials not rotated: %+v", creds)
	}
}

func TestRetriedRequestIsNotInterceptedTwice(t *testing.T) {
	var protectedCalls int32
	var refreshCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "still-rejected"})
	})
	mux.HandleFunc("/api/orders/seller-orders", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&protectedCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewMemoryStore()
	store.Save(Credentials{Access: "stale", Refresh: "refresh-0"})
	client := New(srv.URL, store)

	resp, err := client.Get(context.Background(), "/api/orders/seller-orders")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want the second 401 to propagate", resp.StatusCode)
	}
	if calls := atomic.LoadInt32(&refreshCalls); calls != 1 {
		t.Fatalf("refresh calls = %d, want 1", calls)
	}
	if calls := atomic.LoadInt32(&protectedCalls); calls != 2 {
		t.Fatalf("protected calls = %d, want original plus one retry", calls)
	}
}

func TestFailedRefreshRejectsAllQueuedRequests(t *testing.T) {
	stub := newAPIStub("fresh", "refresh-0")
	stub.failRefresh = true
	release := make(chan struct{})
	stub.holdRefresh = release
	client, store := newTestClient(t, stub, Credentials{Access: "stale", Refresh: "refresh-0"})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Get(context.Background(), "/api/orders/seller-orders")
		}(i)
	}

	waitForWaiters(t, client, n-1)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		var terminal *TerminalAuthError
		if !errors.As(errs[i], &terminal) {
			t.Fatalf("request %d error = %v, want *TerminalAuthError", i, errs[i])
		}
	}

	if calls := atomic.LoadInt32(&stub.refreshCalls); calls != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", calls)
	}
	if _, ok := store.Load(); ok {
		t.Fatal("credentials should be purged after a terminal refresh failure")
	}
}

func TestMissingRefreshCredentialIsTerminal(t *testing.T) {
	stub := newAPIStub("fresh", "refresh-0")
	client, store := newTestClient(t, stub, Credentials{Access: "stale"})

	_, err := client.Get(context.Background(), "/api/orders/seller-orders")

	var terminal *TerminalAuthError
	if !errors.As(err, &terminal) {
		t.Fatalf("error = %v, want *TerminalAuthError", err)
	}
	if calls := atomic.LoadInt32(&stub.refreshCalls); calls != 0 {
		t.Fatalf("refresh calls = %d, want none without a refresh credential", calls)
	}
	if _, ok := store.Load(); ok {
		t.Fatal("credentials should be purged")
	}
}

func TestRefreshKeepsOldCredentialWhenRotationOmitted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "fresh"})
	})
	mux.HandleFunc("/api/orders/seller-orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewMemoryStore()
	store.Save(Credentials{Access: "stale", Refresh: "keep-me"})
	client := New(srv.URL, store)

	resp, err := client.Get(context.Background(), "/api/orders/seller-orders")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	creds, ok := store.Load()
	if !ok {
		t.Fatal("credentials missing after refresh")
	}
	if creds.Access != "fresh" || creds.Refresh != "keep-me" {
		t.Fatalf("credentials = %+v, want rotated access and preserved refresh", creds)
	}
}

func TestQueuedWaiterHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode(map[string]string{"access_token": "fresh"})
	})
	mux.HandleFunc("/api/orders/seller-orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewMemoryStore()
	store.Save(Credentials{Access: "stale", Refresh: "refresh-0"})
	client := New(srv.URL, store)

	// Leader: blocks inside the refresh call until released.
	leaderDone := make(chan error, 1)
	go func() {
		resp, err := client.Get(context.Background(), "/api/orders/seller-orders")
		if resp != nil {
			resp.Body.Close()
		}
		leaderDone <- err
	}()

	// Give the leader time to start its refresh.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := client.Get(ctx, "/api/orders/seller-orders")
		waiterDone <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-waiterDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("waiter error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter did not return")
	}

	close(release)
	if err := <-leaderDone; err != nil {
		t.Fatalf("leader failed: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewFileStore(path)

	if _, ok := store.Load(); ok {
		t.Fatal("empty store should load nothing")
	}

	want := Credentials{Access: "a", Refresh: "r"}
	if err := store.Save(want); err != nil {
		t.Fatal(err)
	}

	got, ok := store.Load()
	if !ok || got != want {
		t.Fatalf("Load() = %+v, %v; want %+v", got, ok, want)
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Load(); ok {
		t.Fatal("cleared store should load nothing")
	}
}

func TestExpiredEntriesLoadAsAbsent(t *testing.T) {
	now := time.Now()
	stored := storedCredentials{
		Access:         "a",
		AccessExpires:  now.Add(-time.Minute),
		Refresh:        "r",
		RefreshExpires: now.Add(time.Hour),
	}

	creds, ok := stored.load(now)
	if !ok {
		t.Fatal("refresh credential should still load")
	}
	if creds.Access != "" {
		t.Fatal("expired access credential should be absent")
	}
	if creds.Refresh != "r" {
		t.Fatal("refresh credential should survive")
	}

	stored.RefreshExpires = now.Add(-time.Minute)
	if _, ok := stored.load(now); ok {
		t.Fatal("fully expired pair should load as absent")
	}
}
