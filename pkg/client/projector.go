package client

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/pkg/timer"
	"github.com/jonboulle/clockwork"
)

const (
	// A drift above this is always corrected at once.
	hardDrift = 300 * time.Millisecond
	// A drift that would raise the displayed second needs at least this.
	backwardDrift = 100 * time.Millisecond
)

type TimerView struct {
	Remaining     float64
	Display       int
	TotalDuration int
	IsRunning     bool
	IsPaused      bool
}

// View is what a scoreboard renders for one frame.
type View struct {
	TeamA        entities.TeamState
	TeamB        entities.TeamState
	LeftSideTeam entities.TeamKey
	Timer        TimerView
	SubTimer     TimerView
}

// projection is a countdown anchored to the local clock at receipt, so it
// never depends on agreement between the local and server clocks.
type projection struct {
	baseline float64
	anchor   time.Time
	running  bool
	paused   bool
	total    int
}

func (p projection) at(now time.Time) float64 {
	if !p.running {
		return p.baseline
	}
	return math.Max(0, p.baseline-now.Sub(p.anchor).Seconds())
}

func (p projection) view(now time.Time) TimerView {
	remaining := p.at(now)
	return TimerView{
		Remaining:     remaining,
		Display:       Display(remaining),
		TotalDuration: p.total,
		IsRunning:     p.running && remaining > 0,
		IsPaused:      p.paused,
	}
}

// Display is the whole second a countdown shows for remaining seconds.
func Display(remaining float64) int {
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining))
}

// Projector turns the latest snapshot into a live countdown between
// updates. Safe for concurrent use.
type Projector struct {
	clock clockwork.Clock

	mu       sync.Mutex
	state    *entities.MatchState
	timer    projection
	subTimer projection
}

func NewProjector(clock clockwork.Clock) *Projector {
	return &Projector{clock: clock}
}

// Apply takes in a fresh snapshot. Running countdowns are only re-anchored
// when the correction would be visible as a glitch otherwise.
func (p *Projector) Apply(state entities.MatchState) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	first := p.state == nil
	p.timer = correct(p.timer, state.Timer, state.ServerTime, now, first)
	p.subTimer = correct(p.subTimer, state.SubTimer, state.ServerTime, now, first)
	s := state.Clone()
	p.state = &s
}

func correct(cur projection, t entities.TimerState, serverTime int64, now time.Time, first bool) projection {
	live, running := timer.LiveAt(t, serverTime)
	next := projection{
		baseline: live,
		anchor:   now,
		running:  running,
		paused:   t.IsPaused,
		total:    t.TotalDuration,
	}
	if first || !running || !cur.running || cur.paused != next.paused || cur.total != next.total {
		return next
	}

	shown := cur.at(now)
	drift := time.Duration(math.Abs(live-shown) * float64(time.Second))
	switch {
	case drift > hardDrift:
		return next
	case Display(live) > Display(shown) && drift <= backwardDrift:
		return cur
	}
	return next
}

// Frame projects the latest snapshot to the local now. It reports false
// until a snapshot has been applied.
func (p *Projector) Frame() (View, bool) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return View{}, false
	}
	return View{
		TeamA:        p.state.TeamA,
		TeamB:        p.state.TeamB,
		LeftSideTeam: p.state.LeftSideTeam,
		Timer:        p.timer.view(now),
		SubTimer:     p.subTimer.view(now),
	}, true
}

// State returns a copy of the latest applied snapshot.
func (p *Projector) State() (entities.MatchState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return entities.MatchState{}, false
	}
	return p.state.Clone(), true
}

// Run calls render once per interval with the projected frame until ctx
// is done.
func (p *Projector) Run(ctx context.Context, interval time.Duration, render func(View)) error {
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if view, ok := p.Frame(); ok {
				render(view)
			}
		}
	}
}
