package ledger

import (
	"context"
	"sync"

	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/types"
)

// State is an in-memory Store: the full mapping from sender to history.
// It backs tests and the server's -memory mode.
type State struct {
	mu        sync.RWMutex
	Histories map[identity.AccountID][]types.PaymentRecord
}

func NewState() *State {
	return &State{
		Histories: make(map[identity.AccountID][]types.PaymentRecord),
	}
}

// Load returns a copy of id's history; unknown ids yield an empty slice.
func (s *State) Load(_ context.Context, id identity.AccountID) ([]types.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.Histories[id]
	out := make([]types.PaymentRecord, len(h))
	copy(out, h)
	return out, nil
}

func (s *State) Append(_ context.Context, id identity.AccountID, rec types.PaymentRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Histories[id] = append(s.Histories[id], rec)
	return len(s.Histories[id]), nil
}
