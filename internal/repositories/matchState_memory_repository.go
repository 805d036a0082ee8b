package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
)

// MatchStateMemoryRepository keeps documents as serialized JSON so that
// reads go through the same decode-and-repair path as real storage.
type MatchStateMemoryRepository struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMatchStateMemoryRepository() *MatchStateMemoryRepository {
	return &MatchStateMemoryRepository{
		docs: make(map[string][]byte),
	}
}

var _ interfaces.IMatchStateRepository = (*MatchStateMemoryRepository)(nil)

func (r *MatchStateMemoryRepository) GetMatchState(_ context.Context, matchId string) (interface{}, error) {
	r.mu.RLock()
	doc, ok := r.docs[matchId]
	r.mu.RUnlock()
	if !ok {
		return nil, interfaces.ErrMatchStateNotFound
	}
	var raw interface{}
	if err := json.Unmarshal(doc, &raw); err != nil {
		// Undecodable documents are handed to repair as-is.
		return nil, nil
	}
	return raw, nil
}

func (r *MatchStateMemoryRepository) PutMatchState(_ context.Context, matchId string, state entities.MatchState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal match state: %w", err)
	}
	r.PutRaw(matchId, doc)
	return nil
}

// PutRaw stores an arbitrary document, bypassing validation.
func (r *MatchStateMemoryRepository) PutRaw(matchId string, doc []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[matchId] = doc
}

// Len returns the number of stored documents.
func (r *MatchStateMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
