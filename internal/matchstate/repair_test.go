package matchstate

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/pkg/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) interface{} {
	t.Helper()
	var raw interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

func TestRepair_DefaultsForNonObjects(t *testing.T) {
	for _, raw := range []interface{}{nil, "state", 42.0, []interface{}{1.0}} {
		state := Repair(raw)
		assert.Equal(t, Defaults(0), state)
	}
}

func TestRepair_ValidDocumentIsUnchanged(t *testing.T) {
	want := Defaults(1_700_000_000_000)
	want.TeamA.Score = 12
	want.TeamB.Name = "Bengal Warriors"
	want.TeamB.DoOrDieCount = 2
	want.LeftSideTeam = entities.TeamB
	start := int64(1_700_000_000_500)
	want.Timer.StartTime = &start
	want.Timer.IsRunning = true
	want.Timer.RemainingSeconds = 612.25

	raw, err := ToRaw(want)
	require.NoError(t, err)
	require.True(t, Validate(raw))
	assert.Equal(t, want, Repair(raw))
}

func TestRepair_FieldCoercion(t *testing.T) {
	raw := decode(t, `{
		"teamA": {"name": "   ", "score": "12", "doOrDieCount": 999},
		"teamB": {"name": "An extremely long team name", "score": -4, "doOrDieCount": 1.7},
		"timer": {"totalDuration": -10, "remainingSeconds": 5000, "isRunning": "yes", "isPaused": false, "startTime": null},
		"leftSideTeam": "teamC",
		"serverTime": "now"
	}`)

	state := Repair(raw)

	assert.Equal(t, entities.DefaultTeamAName, state.TeamA.Name)
	assert.Equal(t, 0, state.TeamA.Score)
	assert.Equal(t, entities.MaxDoOrDieCount, state.TeamA.DoOrDieCount)
	assert.Equal(t, entities.DefaultTeamBName, state.TeamB.Name)
	assert.Equal(t, 0, state.TeamB.Score)
	assert.Equal(t, 1, state.TeamB.DoOrDieCount)

	assert.Equal(t, entities.DefaultTimerDuration, state.Timer.TotalDuration)
	assert.Equal(t, float64(entities.DefaultTimerDuration), state.Timer.RemainingSeconds)
	assert.False(t, state.Timer.IsRunning)

	assert.Equal(t, entities.NewTimerState(entities.DefaultSubTimerDuration), state.SubTimer)
	assert.Equal(t, entities.TeamA, state.LeftSideTeam)
	assert.Zero(t, state.ServerTime)
	assert.True(t, Validate(mustRaw(t, state)))
}

func TestRepair_TimerFlagConsistency(t *testing.T) {
	cases := []struct {
		name        string
		doc         string
		wantRunning bool
		wantPaused  bool
	}{
		{
			name:        "running without start time",
			doc:         `{"timer": {"totalDuration": 60, "remainingSeconds": 30, "isRunning": true, "isPaused": false}}`,
			wantRunning: false,
		},
		{
			name:       "running and paused prefers paused",
			doc:        `{"timer": {"totalDuration": 60, "remainingSeconds": 30, "isRunning": true, "isPaused": true, "startTime": 1000, "pausedAt": 2000}}`,
			wantPaused: true,
		},
		{
			name: "paused without pausedAt",
			doc:  `{"timer": {"totalDuration": 60, "remainingSeconds": 30, "isRunning": false, "isPaused": true, "startTime": 1000}}`,
		},
		{
			name:        "running with a start time",
			doc:         `{"timer": {"totalDuration": 60, "remainingSeconds": 30, "isRunning": true, "isPaused": false, "startTime": 1000}}`,
			wantRunning: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := Repair(decode(t, tc.doc))
			assert.Equal(t, tc.wantRunning, state.Timer.IsRunning)
			assert.Equal(t, tc.wantPaused, state.Timer.IsPaused)
			assert.Equal(t, tc.wantPaused, state.Timer.PausedAt != nil)
			assert.True(t, Validate(mustRaw(t, state)))
		})
	}
}

func TestRepair_SubTimerIsFixedLength(t *testing.T) {
	state := Repair(decode(t, `{"subTimer": {"totalDuration": 90, "remainingSeconds": 75, "isRunning": false, "isPaused": false}}`))
	assert.Equal(t, entities.DefaultSubTimerDuration, state.SubTimer.TotalDuration)
	assert.Equal(t, float64(entities.DefaultSubTimerDuration), state.SubTimer.RemainingSeconds)
}

func TestRepair_Idempotent(t *testing.T) {
	docs := []string{
		`{}`,
		`null`,
		`{"teamA": 5, "timer": "x"}`,
		`{"teamA": {"name": " Pirates ", "score": 1e9}, "timer": {"totalDuration": 999999, "remainingSeconds": -1}}`,
		`{"timer": {"totalDuration": 60, "remainingSeconds": 30.5, "isRunning": true, "isPaused": true, "startTime": 1000.9, "pausedAt": 2000}}`,
		`{"subTimer": {"totalDuration": 10, "remainingSeconds": 3, "isRunning": true, "startTime": 5}, "leftSideTeam": "teamB", "lastUpdated": 77}`,
	}

	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			once := Repair(decode(t, doc))
			raw := mustRaw(t, once)
			assert.True(t, Validate(raw))
			assert.Equal(t, once, Repair(raw))
		})
	}
}

func TestValidate_RejectsBrokenShapes(t *testing.T) {
	valid := mustRaw(t, Defaults(10))
	require.True(t, Validate(valid))

	mutations := map[string]func(m map[string]interface{}){
		"missing subTimer": func(m map[string]interface{}) { delete(m, "subTimer") },
		"score out of range": func(m map[string]interface{}) {
			m["teamA"].(map[string]interface{})["score"] = 1000.0
		},
		"string flag": func(m map[string]interface{}) {
			m["timer"].(map[string]interface{})["isRunning"] = "false"
		},
		"paused without pausedAt": func(m map[string]interface{}) {
			m["timer"].(map[string]interface{})["isPaused"] = true
		},
		"bad side": func(m map[string]interface{}) { m["leftSideTeam"] = "left" },
		"serverTime beyond range": func(m map[string]interface{}) {
			m["serverTime"] = float64(math.MaxInt64)
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			raw := mustRaw(t, Defaults(10))
			mutate(raw)
			assert.False(t, Validate(raw))
		})
	}
}

func TestRepair_AdjustedRunningTimerSurvivesReload(t *testing.T) {
	start := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	state := entities.NewMatchState(start)
	timer.Start(&state.Timer, start)

	now := start.Add(20 * time.Second)
	timer.Adjust(&state.Timer, 30, now)
	live, running := timer.Live(state.Timer, now)
	require.True(t, running)
	require.InDelta(t, float64(entities.DefaultTimerDuration), live, 1e-9)

	raw := mustRaw(t, state)
	assert.True(t, Validate(raw))
	repaired := Repair(raw)
	assert.Equal(t, state, repaired)
	reloaded, _ := timer.Live(repaired.Timer, now.Add(5*time.Second))
	assert.InDelta(t, float64(entities.DefaultTimerDuration-5), reloaded, 1e-9)
}

func mustRaw(t *testing.T, state entities.MatchState) map[string]interface{} {
	t.Helper()
	raw, err := ToRaw(state)
	require.NoError(t, err)
	return raw
}
