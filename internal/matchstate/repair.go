// Package matchstate guards the boundary between untrusted persisted JSON
// and the strictly typed in-memory MatchState.
//
// Repair policy: a missing or non-object sub-tree is replaced wholesale by
// its default; a non-numeric or negative number takes its type default; a
// well-typed number above its upper bound is clamped to that bound.
package matchstate

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/chess-vn/courtsync/internal/domains/entities"
)

// Repair coerces an arbitrary decoded value into a valid MatchState. It
// never fails. Missing times repair to zero so that Repair is deterministic.
func Repair(raw interface{}) entities.MatchState {
	root, ok := asObject(raw)
	if !ok {
		return Defaults(0)
	}

	state := entities.MatchState{
		TeamA:        repairTeam(root["teamA"], entities.DefaultTeamAName),
		TeamB:        repairTeam(root["teamB"], entities.DefaultTeamBName),
		Timer:        repairTimer(root["timer"], entities.DefaultTimerDuration),
		SubTimer:     repairTimer(root["subTimer"], entities.DefaultSubTimerDuration),
		LeftSideTeam: entities.TeamA,
		ServerTime:   repairMillis(root["serverTime"]),
		LastUpdated:  repairMillis(root["lastUpdated"]),
	}
	if side, ok := root["leftSideTeam"].(string); ok && entities.TeamKey(side).Valid() {
		state.LeftSideTeam = entities.TeamKey(side)
	}
	// The sub-timer length is fixed.
	if state.SubTimer.TotalDuration != entities.DefaultSubTimerDuration {
		state.SubTimer.TotalDuration = entities.DefaultSubTimerDuration
		state.SubTimer.RemainingSeconds = math.Min(state.SubTimer.RemainingSeconds, entities.DefaultSubTimerDuration)
	}
	return state
}

// Defaults returns the state of a never-seen match stamped with nowMs.
func Defaults(nowMs int64) entities.MatchState {
	state := entities.NewMatchState(timeFromMillis(nowMs))
	state.ServerTime = nowMs
	state.LastUpdated = nowMs
	return state
}

// ToRaw converts a typed state back into the loosely typed form Repair
// accepts, as if it had been read from storage.
func ToRaw(state entities.MatchState) (map[string]interface{}, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func repairTeam(raw interface{}, defaultName string) entities.TeamState {
	team := entities.TeamState{Name: defaultName}
	obj, ok := asObject(raw)
	if !ok {
		return team
	}
	if name, ok := ValidTeamName(obj["name"]); ok {
		team.Name = name
	}
	team.Score = repairInt(obj["score"], 0, 0, entities.MaxScore)
	team.DoOrDieCount = repairInt(obj["doOrDieCount"], 0, 0, entities.MaxDoOrDieCount)
	return team
}

func repairTimer(raw interface{}, defaultDuration int) entities.TimerState {
	obj, ok := asObject(raw)
	if !ok {
		return entities.NewTimerState(defaultDuration)
	}

	total := repairInt(obj["totalDuration"], defaultDuration, 0, entities.MaxTimerDuration)
	if total == 0 {
		total = defaultDuration
	}
	t := entities.TimerState{TotalDuration: total}

	if v, ok := asNumber(obj["remainingSeconds"]); ok {
		t.RemainingSeconds = math.Min(math.Max(v, 0), float64(total))
	} else {
		t.RemainingSeconds = float64(total)
	}

	t.StartTime = repairOptionalMillis(obj["startTime"])
	running, _ := obj["isRunning"].(bool)
	paused, _ := obj["isPaused"].(bool)
	pausedAt := repairOptionalMillis(obj["pausedAt"])

	switch {
	case paused && pausedAt != nil && t.StartTime != nil:
		// Paused wins over a simultaneous running flag.
		t.IsPaused = true
		t.PausedAt = pausedAt
	case running && t.StartTime != nil && t.RemainingSeconds > 0:
		t.IsRunning = true
	}
	return t
}

func repairInt(raw interface{}, def, lo, hi int) int {
	v, ok := asNumber(raw)
	if !ok || v < 0 {
		return def
	}
	v = math.Trunc(v)
	if v < float64(lo) {
		return lo
	}
	if v > float64(hi) {
		return hi
	}
	return int(v)
}

// maxMillis bounds stored timestamps well inside int64.
const maxMillis = math.MaxInt64 / 2

func repairMillis(raw interface{}) int64 {
	v, ok := asNumber(raw)
	if !ok || v < 0 || v > maxMillis {
		return 0
	}
	return int64(v)
}

func repairOptionalMillis(raw interface{}) *int64 {
	v, ok := asNumber(raw)
	if !ok || v < 0 || v > maxMillis {
		return nil
	}
	ms := int64(v)
	return &ms
}

// ValidTeamName trims raw and reports whether it is an acceptable team name.
func ValidTeamName(raw interface{}) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 || n > entities.MaxTeamNameLength {
		return "", false
	}
	return s, true
}

func asObject(raw interface{}) (map[string]interface{}, bool) {
	obj, ok := raw.(map[string]interface{})
	return obj, ok && obj != nil
}

func asNumber(raw interface{}) (float64, bool) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
