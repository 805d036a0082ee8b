package client

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type Quality int

const (
	QualityUnknown Quality = iota
	QualityGood
	QualityWarning
	QualityError
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityWarning:
		return "warning"
	case QualityError:
		return "error"
	}
	return "unknown"
}

// Sample is the outcome of one query/reply round trip. Times are Unix
// milliseconds; Offset is server clock minus client clock.
type Sample struct {
	RequestSentAt    int64
	Rtt              time.Duration
	Offset           time.Duration
	ClientTimeAtSync int64
	ServerTimeAtSync int64
}

// Classify grades a sample by its round trip and absolute offset.
func Classify(s Sample) Quality {
	offset := s.Offset
	if offset < 0 {
		offset = -offset
	}
	switch {
	case s.Rtt < 500*time.Millisecond && offset < time.Second:
		return QualityGood
	case s.Rtt < time.Second && offset < 3*time.Second:
		return QualityWarning
	}
	return QualityError
}

// Synchronizer estimates the offset between the local clock and the
// authority from GET_GAME_STATE round trips. Only the latest sample is
// kept. Safe for concurrent use.
type Synchronizer struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending map[string]int64
	latest  *Sample
}

func NewSynchronizer(clock clockwork.Clock) *Synchronizer {
	return &Synchronizer{
		clock:   clock,
		pending: make(map[string]int64),
	}
}

// Begin records the send time of a new query and returns the request id
// to attach to it.
func (s *Synchronizer) Begin() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.pending[id] = s.clock.Now().UnixMilli()
	s.mu.Unlock()
	return id
}

// Complete pairs a reply with its query. Replies for unknown ids are
// ignored.
func (s *Synchronizer) Complete(requestId string, serverTime int64) (Sample, bool) {
	now := s.clock.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	sentAt, ok := s.pending[requestId]
	if !ok {
		return Sample{}, false
	}
	delete(s.pending, requestId)

	rtt := now - sentAt
	if rtt < 0 {
		rtt = 0
	}
	offset := float64(serverTime) - (float64(now) - float64(rtt)/2)
	sample := Sample{
		RequestSentAt:    sentAt,
		Rtt:              time.Duration(rtt) * time.Millisecond,
		Offset:           time.Duration(math.Round(offset)) * time.Millisecond,
		ClientTimeAtSync: now,
		ServerTimeAtSync: serverTime,
	}
	s.latest = &sample
	return sample, true
}

// Forget drops outstanding queries, e.g. after a reconnect.
func (s *Synchronizer) Forget() {
	s.mu.Lock()
	clear(s.pending)
	s.mu.Unlock()
}

func (s *Synchronizer) Latest() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Sample{}, false
	}
	return *s.latest, true
}

func (s *Synchronizer) Quality() Quality {
	sample, ok := s.Latest()
	if !ok {
		return QualityUnknown
	}
	return Classify(sample)
}
