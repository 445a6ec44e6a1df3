// Copyright (c) 2025 Cue Protocol
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@cueprotocol.io for commercial licensing options.

package passkey

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultChallengeTTL is the validity window for issued challenges.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultSweepInterval is how often the background sweeper runs.
	DefaultSweepInterval = time.Minute
)

// ChallengeStore holds pending challenges in memory. All operations take a
// single mutex, so a challenge can be consumed at most once even under
// concurrent completion attempts.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	ttl        time.Duration
	sweepEvery time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once

	// onSweep, when set, is invoked after every background sweep.
	onSweep func(removed, pending int)

	// now is replaceable in tests.
	now func() time.Time
}

// NewChallengeStore creates a challenge store. Zero values select the
// defaults. Call Start to run the background sweeper and Stop to halt it.
func NewChallengeStore(ttl, sweepInterval time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &ChallengeStore{
		challenges: make(map[string]*Challenge),
		ttl:        ttl,
		sweepEvery: sweepInterval,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Create assigns the challenge a fresh random id and validity window and
// stores it. The caller populates kind, device metadata, user handle, and the
// ceremony sessions before calling Create.
func (s *ChallengeStore) Create(ch *Challenge) *Challenge {
	now := s.now()
	ch.ID = uuid.NewString()
	ch.CreatedAt = now
	ch.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	s.challenges[ch.ID] = ch
	s.mu.Unlock()

	return ch
}

// Consume looks up and invalidates a challenge as one atomic step. A second
// consume of the same id, or a consume after expiry, returns
// ErrChallengeNotFound. Expired entries are deleted on the attempt.
func (s *ChallengeStore) Consume(id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return nil, NewError("challenge.consume", ErrChallengeNotFound)
	}
	delete(s.challenges, id)

	if ch.Expired(s.now()) {
		return nil, NewError("challenge.consume", ErrChallengeNotFound)
	}
	return ch, nil
}

// SweepExpired removes lapsed challenges and returns how many were removed.
// Entries still inside their validity window are never touched.
func (s *ChallengeStore) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ch := range s.challenges {
		if ch.Expired(now) {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of pending challenges.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// OnSweep registers a callback that receives the removed and remaining
// pending counts after every background sweep. Must be called before Start.
func (s *ChallengeStore) OnSweep(fn func(removed, pending int)) {
	s.onSweep = fn
}

// Start launches the background sweeper goroutine.
func (s *ChallengeStore) Start() {
	go s.sweepWorker()
}

// Stop halts the background sweeper. Safe to call more than once.
func (s *ChallengeStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *ChallengeStore) sweepWorker() {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.SweepExpired()
			if s.onSweep != nil {
				s.onSweep(removed, s.Len())
			}
		case <-s.stopCh:
			return
		}
	}
}
