package session

import "sync"

// refreshResult is what every request waiting on a refresh receives.
type refreshResult struct {
	creds Credentials
	err   error
}

// refreshState owns the refresh-in-progress flag and the queue of requests
// that hit a 401 while a refresh was already running. All access goes
// through acquireOrEnqueue and settleAll, so correctness does not depend on
// a single-threaded caller.
type refreshState struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

// acquireOrEnqueue either grants refresh leadership (leader == true, and the
// caller must eventually call settleAll) or enqueues the caller behind the
// in-flight refresh and returns the channel its result will arrive on.
func (s *refreshState) acquireOrEnqueue() (wait <-chan refreshResult, leader bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.refreshing {
		s.refreshing = true
		return nil, true
	}

	ch := make(chan refreshResult, 1)
	s.waiters = append(s.waiters, ch)
	return ch, false
}

// settleAll delivers the refresh outcome to every queued waiter in enqueue
// order, empties the queue, and releases leadership. Waiter channels are
// buffered, so delivery cannot block even if a waiter already gave up.
func (s *refreshState) settleAll(res refreshResult) {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.refreshing = false
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
}
