package gbaw

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/atwrap/go-bluesky-api-wrapper/pkg/types"
)

// TestManagerSwapDoesNotDisruptInFlightRefresh pins down the swap contract:
// a refresh that was already dispatched keeps running against the manager it
// was bound to, returns its result normally, and its late session update is
// dropped instead of clobbering the newly installed manager's session.
func TestManagerSwapDoesNotDisruptInFlightRefresh(t *testing.T) {
	p := newFakePDS(t)
	client := newClientFor(t, p, nil)

	var notifications atomic.Int32
	client.OnSessionUpdated(func(*types.Session) { notifications.Add(1) })

	mustLogin(t, client, p)

	started := make(chan struct{})
	proceed := make(chan struct{})
	p.mu.Lock()
	p.refreshStarted = started
	p.refreshProceed = proceed
	p.mu.Unlock()

	type refreshResult struct {
		session *types.Session
		err     error
	}
	done := make(chan refreshResult, 1)
	go func() {
		session, err := client.RefreshSession(context.Background())
		done <- refreshResult{session, err}
	}()

	// The refresh request has reached the server and is now parked there.
	<-started

	// Logging in again swaps in a fresh manager and disposes the one the
	// parked refresh is bound to.
	relogin := mustLogin(t, client, p)
	if relogin.AccessJWT != "access-1" {
		t.Fatalf("relogin AccessJWT = %q, want access-1", relogin.AccessJWT)
	}

	close(proceed)
	res := <-done

	if res.err != nil {
		t.Fatalf("in-flight refresh must not fail because of the swap: %v", res.err)
	}
	if res.session.AccessJWT != "access-2" {
		t.Errorf("refresh result AccessJWT = %q, want access-2", res.session.AccessJWT)
	}

	// The client's session comes from the new manager; the retired
	// manager's late update did not leak into it.
	current := client.CurrentSession()
	if current == nil || current.AccessJWT != "access-1" {
		t.Errorf("CurrentSession = %+v, want the relogin session with access-1", current)
	}
	if !client.IsAuthenticated() {
		t.Error("client should remain authenticated across the swap")
	}

	// Two logins notified; the dropped late update did not.
	if got := notifications.Load(); got != 2 {
		t.Errorf("notifications = %d, want 2", got)
	}
}

// TestConcurrentReadsDuringSwaps hammers the read-side accessors while the
// client churns through login/logout cycles. Run with -race.
func TestConcurrentReadsDuringSwaps(t *testing.T) {
	p := newFakePDS(t)
	client := newClientFor(t, p, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if session := client.CurrentSession(); session != nil && session.DID == "" {
					t.Error("session snapshot missing DID")
					return
				}
				client.IsAuthenticated()
				client.BaseURL()
			}
		}()
	}

	for i := 0; i < 5; i++ {
		mustLogin(t, client, p)
		if err := client.Logout(context.Background()); err != nil {
			t.Fatalf("Logout: %v", err)
		}
	}

	close(stop)
	wg.Wait()

	if client.IsAuthenticated() {
		t.Error("client should end unauthenticated")
	}
}
