package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/dtos"
	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/matchstate"
	"github.com/chess-vn/courtsync/internal/repositories"
	"github.com/chess-vn/courtsync/internal/usecases"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

type testMatch struct {
	*Match
	clock *clockwork.FakeClock
	repo  *repositories.MatchStateMemoryRepository
}

func newTestMatch(t *testing.T) testMatch {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	repo := repositories.NewMatchStateMemoryRepository()
	usecase := usecases.NewMatchStateUsecase(repo, clock, usecases.PersistenceConfig{
		SaveAttempts: 1,
		MaxBackoff:   time.Millisecond,
	})
	m := newMatch("court-1", matchstate.Defaults(testNow.UnixMilli()), usecase, clock, 64, nil)
	t.Cleanup(m.stop)
	return testMatch{Match: m, clock: clock, repo: repo}
}

func newTestConn() *connection {
	return newConnection(nil, DefaultConfig().Websocket, testNow)
}

func recvFrame(t *testing.T, c *connection) dtos.Frame {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "connection was dropped")
		var frame dtos.Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return dtos.Frame{}
}

func recvState(t *testing.T, c *connection) entities.MatchState {
	t.Helper()
	frame := recvFrame(t, c)
	require.Equal(t, dtos.FrameTypeGameState, frame.Type)
	var state entities.MatchState
	require.NoError(t, json.Unmarshal(frame.Data, &state))
	return state
}

func recvError(t *testing.T, c *connection) string {
	t.Helper()
	frame := recvFrame(t, c)
	require.Equal(t, dtos.FrameTypeError, frame.Type)
	var data dtos.ErrorData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	return data.Error
}

func (m testMatch) act(t *testing.T, connId, kind string, payload interface{}) {
	t.Helper()
	req, err := dtos.NewActionRequest(kind, payload)
	require.NoError(t, err)
	m.fromClient(connId, req)
}

// sync waits until every message sent so far has been handled.
func (m testMatch) sync(t *testing.T) matchView {
	t.Helper()
	v, ok := m.view()
	require.True(t, ok)
	return v
}

func (m testMatch) joined(t *testing.T) *connection {
	t.Helper()
	c := newTestConn()
	require.True(t, m.join(c))
	recvState(t, c)
	return c
}

func TestJoinReceivesSnapshot(t *testing.T) {
	m := newTestMatch(t)
	c := newTestConn()
	require.True(t, m.join(c))

	state := recvState(t, c)
	assert.Equal(t, matchstate.Defaults(testNow.UnixMilli()), state)
	assert.Equal(t, 1, m.sync(t).NumConnections)
}

func TestGetGameStateRepliesOnlyToRequester(t *testing.T) {
	m := newTestMatch(t)
	a := m.joined(t)
	b := m.joined(t)

	req := dtos.ActionRequest{Type: dtos.ActionGetGameState, RequestId: "sync-1"}
	m.fromClient(a.id, req)
	m.sync(t)

	frame := recvFrame(t, a)
	assert.Equal(t, dtos.FrameTypeGameState, frame.Type)
	assert.Equal(t, "sync-1", frame.RequestId)
	assert.Empty(t, b.send)
	assert.Empty(t, a.send)
}

func TestMutationIsBroadcastAndPersisted(t *testing.T) {
	m := newTestMatch(t)
	a := m.joined(t)
	b := m.joined(t)

	m.act(t, a.id, dtos.ActionScoreUpdate, dtos.ScoreUpdatePayload{Team: entities.TeamA, Points: 3})

	for _, c := range []*connection{a, b} {
		frame := recvFrame(t, c)
		assert.Empty(t, frame.RequestId)
		var state entities.MatchState
		require.NoError(t, json.Unmarshal(frame.Data, &state))
		assert.Equal(t, 3, state.TeamA.Score)
	}

	assert.Eventually(t, func() bool {
		raw, err := m.repo.GetMatchState(context.Background(), "court-1")
		if err != nil {
			return false
		}
		return matchstate.Repair(raw).TeamA.Score == 3
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentScoreUpdatesSum(t *testing.T) {
	m := newTestMatch(t)

	var wg sync.WaitGroup
	want := 0
	for i := 1; i <= 5; i++ {
		want += i * 20
		wg.Add(1)
		go func(points int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.act(t, fmt.Sprintf("client-%d", points), dtos.ActionScoreUpdate,
					dtos.ScoreUpdatePayload{Team: entities.TeamB, Points: points})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, want, m.sync(t).State.TeamB.Score)
}

func TestResetAllRestoresDefaults(t *testing.T) {
	m := newTestMatch(t)
	c := newTestConn().id

	m.act(t, c, dtos.ActionScoreUpdate, dtos.ScoreUpdatePayload{Team: entities.TeamA, Points: 10})
	m.act(t, c, dtos.ActionScoreUpdate, dtos.ScoreUpdatePayload{Team: entities.TeamB, Points: 7})
	m.act(t, c, dtos.ActionDoOrDieUpdate, dtos.DoOrDieUpdatePayload{Team: entities.TeamA, Delta: 2})
	m.act(t, c, dtos.ActionSetTeamName, dtos.SetTeamNamePayload{Team: entities.TeamA, Name: "Tigers"})
	m.act(t, c, dtos.ActionSetTeamName, dtos.SetTeamNamePayload{Team: entities.TeamB, Name: "Panthers"})
	m.act(t, c, dtos.ActionTimerSet, dtos.TimerSetPayload{Duration: 600})
	m.act(t, c, dtos.ActionTimerStart, nil)
	m.act(t, c, dtos.ActionSubTimerStart, nil)
	m.act(t, c, dtos.ActionCourtChange, nil)
	m.sync(t)
	m.clock.Advance(4 * time.Second)
	m.act(t, c, dtos.ActionSubTimerPause, nil)

	mutated := m.sync(t).State
	require.Equal(t, entities.TeamB, mutated.LeftSideTeam)
	require.True(t, mutated.Timer.IsRunning)
	require.True(t, mutated.SubTimer.IsPaused)

	m.act(t, c, dtos.ActionResetAll, nil)
	assert.Equal(t, matchstate.Defaults(m.clock.Now().UnixMilli()), m.sync(t).State)
}

func TestInvalidActionsAreRejected(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		payload interface{}
		status  string
	}{
		{"unknown team", dtos.ActionScoreUpdate, map[string]interface{}{"team": "teamC", "points": 1}, ErrStatusInvalidTeam},
		{"missing payload", dtos.ActionScoreUpdate, nil, ErrStatusInvalidPayload},
		{"wrong payload type", dtos.ActionScoreUpdate, map[string]interface{}{"team": "teamA", "points": "two"}, ErrStatusInvalidPayload},
		{"long name", dtos.ActionSetTeamName, dtos.SetTeamNamePayload{Team: entities.TeamA, Name: strings.Repeat("x", 21)}, ErrStatusInvalidTeamName},
		{"blank name", dtos.ActionSetTeamName, dtos.SetTeamNamePayload{Team: entities.TeamB, Name: "   "}, ErrStatusInvalidTeamName},
		{"zero duration", dtos.ActionTimerSet, dtos.TimerSetPayload{Duration: 0}, ErrStatusInvalidDuration},
		{"huge duration", dtos.ActionTimerSet, dtos.TimerSetPayload{Duration: entities.MaxTimerDuration + 1}, ErrStatusInvalidDuration},
		{"do or die team", dtos.ActionDoOrDieUpdate, map[string]interface{}{"delta": 1}, ErrStatusInvalidTeam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMatch(t)
			a := m.joined(t)
			b := m.joined(t)
			before := m.sync(t).State

			m.act(t, a.id, tt.kind, tt.payload)
			assert.Equal(t, tt.status, recvError(t, a))
			assert.Equal(t, before, m.sync(t).State)
			assert.Empty(t, b.send)
		})
	}
}

func TestUnknownActionIsIgnored(t *testing.T) {
	m := newTestMatch(t)
	a := m.joined(t)
	before := m.sync(t).State

	m.fromClient(a.id, dtos.ActionRequest{Type: "SLAM_DUNK"})

	assert.Equal(t, before, m.sync(t).State)
	assert.Empty(t, a.send)
}

func TestProtocolErrorRepliesToSender(t *testing.T) {
	m := newTestMatch(t)
	a := m.joined(t)
	b := m.joined(t)

	m.protocolError(a.id, "failed to parse message: invalid character")
	m.sync(t)

	assert.Contains(t, recvError(t, a), "parse")
	assert.Empty(t, b.send)
}

func TestSlowConnectionIsDropped(t *testing.T) {
	m := newTestMatch(t)
	fast := m.joined(t)
	slow := &connection{id: "slow", send: make(chan []byte, 1)}
	require.True(t, m.join(slow))

	m.act(t, fast.id, dtos.ActionCourtChange, nil)
	require.Equal(t, 1, m.sync(t).NumConnections)

	<-slow.send
	_, ok := <-slow.send
	assert.False(t, ok)
	assert.Equal(t, entities.TeamB, recvState(t, fast).LeftSideTeam)
}

func TestExpiredTimerIsSettled(t *testing.T) {
	m := newTestMatch(t)
	a := m.joined(t)

	m.act(t, a.id, dtos.ActionTimerSet, dtos.TimerSetPayload{Duration: 5})
	m.act(t, a.id, dtos.ActionTimerStart, nil)
	recvState(t, a)
	require.True(t, recvState(t, a).Timer.IsRunning)

	m.clock.Advance(6 * time.Second)
	m.fromClient(a.id, dtos.ActionRequest{Type: dtos.ActionGetGameState})

	state := recvState(t, a)
	assert.False(t, state.Timer.IsRunning)
	assert.Zero(t, state.Timer.RemainingSeconds)
	assert.Equal(t, m.clock.Now().UnixMilli(), state.ServerTime)
}

type failingRepo struct{}

func (failingRepo) GetMatchState(context.Context, string) (interface{}, error) {
	return nil, errors.New("unavailable")
}

func (failingRepo) PutMatchState(context.Context, string, entities.MatchState) error {
	return errors.New("unavailable")
}

func TestPersistFailureIsReported(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	usecase := usecases.NewMatchStateUsecase(failingRepo{}, clock, usecases.PersistenceConfig{SaveAttempts: 1})
	var failures atomic.Int32
	m := newMatch("court-1", matchstate.Defaults(testNow.UnixMilli()), usecase, clock, 8, func(err error) {
		if errors.Is(err, usecases.ErrPersistenceExhausted) {
			failures.Add(1)
		}
	})

	req, err := dtos.NewActionRequest(dtos.ActionResetScores, nil)
	require.NoError(t, err)
	m.fromClient("operator", req)
	m.fromClient("operator", req)
	_, ok := m.view()
	require.True(t, ok)

	m.stop()
	assert.Equal(t, int32(2), failures.Load())
}
