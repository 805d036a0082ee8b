package server

import (
	"math"
	"testing"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/dtos"
	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/matchstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceScoreIsClamped(t *testing.T) {
	state := matchstate.Defaults(0)

	require.NoError(t, reduce(&state, scoreUpdate{team: entities.TeamA, points: 5}, testNow))
	require.NoError(t, reduce(&state, scoreUpdate{team: entities.TeamA, points: -8}, testNow))
	assert.Equal(t, 0, state.TeamA.Score)

	require.NoError(t, reduce(&state, scoreUpdate{team: entities.TeamB, points: 5000}, testNow))
	assert.Equal(t, entities.MaxScore, state.TeamB.Score)

	require.NoError(t, reduce(&state, resetTeamScore{team: entities.TeamB}, testNow))
	assert.Equal(t, 0, state.TeamB.Score)
}

func TestReduceExtremeDeltasDoNotWrap(t *testing.T) {
	state := matchstate.Defaults(0)
	state.TeamA.Score = 5
	state.TeamB.DoOrDieCount = 2

	require.NoError(t, reduce(&state, scoreUpdate{team: entities.TeamA, points: math.MaxInt}, testNow))
	assert.Equal(t, entities.MaxScore, state.TeamA.Score)
	require.NoError(t, reduce(&state, scoreUpdate{team: entities.TeamA, points: math.MinInt}, testNow))
	assert.Equal(t, 0, state.TeamA.Score)

	require.NoError(t, reduce(&state, doOrDieUpdate{team: entities.TeamB, delta: math.MaxInt}, testNow))
	assert.Equal(t, entities.MaxDoOrDieCount, state.TeamB.DoOrDieCount)
	require.NoError(t, reduce(&state, doOrDieUpdate{team: entities.TeamB, delta: math.MinInt}, testNow))
	assert.Equal(t, 0, state.TeamB.DoOrDieCount)
}

func TestReduceDoOrDieIsClamped(t *testing.T) {
	state := matchstate.Defaults(0)

	for i := 0; i < 5; i++ {
		require.NoError(t, reduce(&state, doOrDieUpdate{team: entities.TeamB, delta: 1}, testNow))
	}
	assert.Equal(t, entities.MaxDoOrDieCount, state.TeamB.DoOrDieCount)

	require.NoError(t, reduce(&state, doOrDieUpdate{team: entities.TeamB, delta: -10}, testNow))
	assert.Equal(t, 0, state.TeamB.DoOrDieCount)

	state.TeamA.DoOrDieCount = 2
	require.NoError(t, reduce(&state, doOrDieReset{}, testNow))
	assert.Equal(t, 0, state.TeamA.DoOrDieCount)
}

func TestReduceCourtChangeToggles(t *testing.T) {
	state := matchstate.Defaults(0)

	require.NoError(t, reduce(&state, courtChange{}, testNow))
	assert.Equal(t, entities.TeamB, state.LeftSideTeam)
	require.NoError(t, reduce(&state, courtChange{}, testNow))
	assert.Equal(t, entities.TeamA, state.LeftSideTeam)
}

func TestReduceTeamNameIsTrimmed(t *testing.T) {
	state := matchstate.Defaults(0)

	require.NoError(t, reduce(&state, setTeamName{team: entities.TeamA, name: "  Tigers "}, testNow))
	assert.Equal(t, "Tigers", state.TeamA.Name)
}

func TestReduceStampsTimes(t *testing.T) {
	state := matchstate.Defaults(0)

	require.NoError(t, reduce(&state, resetScores{}, testNow))
	assert.Equal(t, testNow.UnixMilli(), state.ServerTime)
	assert.Equal(t, testNow.UnixMilli(), state.LastUpdated)
}

func TestReduceRejectionLeavesStateUntouched(t *testing.T) {
	state := matchstate.Defaults(0)
	state.TeamA.Score = 4
	before := state.Clone()

	err := reduce(&state, timerSet{duration: -1}, testNow)
	assert.Equal(t, validationError{status: ErrStatusInvalidDuration}, err)
	assert.Equal(t, before, state)

	assert.ErrorIs(t, reduce(&state, getGameState{}, testNow), ErrUnsupportedAction)
	assert.Equal(t, before, state)
}

func TestReduceTimersAreIndependent(t *testing.T) {
	state := matchstate.Defaults(0)

	require.NoError(t, reduce(&state, subTimerStart{}, testNow))
	assert.True(t, state.SubTimer.IsRunning)
	assert.False(t, state.Timer.IsRunning)

	later := testNow.Add(10 * time.Second)
	require.NoError(t, reduce(&state, subTimerPause{}, later))
	assert.True(t, state.SubTimer.IsPaused)
	assert.InDelta(t, 20.0, state.SubTimer.RemainingSeconds, 1e-9)

	require.NoError(t, reduce(&state, subTimerReset{}, later))
	assert.Equal(t, entities.NewTimerState(entities.DefaultSubTimerDuration), state.SubTimer)

	require.NoError(t, reduce(&state, timerAdjust{seconds: -60}, later))
	assert.Equal(t, float64(entities.DefaultTimerDuration-60), state.Timer.RemainingSeconds)
}

func TestDecodeAction(t *testing.T) {
	req, err := dtos.DecodeActionFrame([]byte(`{"action":{"type":"SCORE_UPDATE","payload":{"team":"teamB","points":2}}}`))
	require.NoError(t, err)
	a, err := decodeAction(req)
	require.NoError(t, err)
	assert.Equal(t, scoreUpdate{team: entities.TeamB, points: 2}, a)

	req, err = dtos.DecodeActionFrame([]byte(`{"action":{"type":"TIMER_ADJUST","seconds":-15}}`))
	require.NoError(t, err)
	a, err = decodeAction(req)
	require.NoError(t, err)
	assert.Equal(t, timerAdjust{seconds: -15}, a)

	req, err = dtos.DecodeActionFrame([]byte(`{"action":"COURT_CHANGE"}`))
	require.NoError(t, err)
	a, err = decodeAction(req)
	require.NoError(t, err)
	assert.Equal(t, courtChange{}, a)

	req, err = dtos.DecodeActionFrame([]byte(`{"action":{"type":"GET_GAME_STATE","requestId":"r-7"}}`))
	require.NoError(t, err)
	a, err = decodeAction(req)
	require.NoError(t, err)
	assert.Equal(t, getGameState{requestId: "r-7"}, a)

	_, err = decodeAction(dtos.ActionRequest{Type: "FOUL"})
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}
