package matchstate

import (
	"math"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/entities"
)

// Validate reports whether raw already has the full MatchState shape with
// in-range values and consistent timer flags.
func Validate(raw interface{}) bool {
	root, ok := asObject(raw)
	if !ok {
		return false
	}
	if !validTeam(root["teamA"]) || !validTeam(root["teamB"]) {
		return false
	}
	if !validTimer(root["timer"]) || !validTimer(root["subTimer"]) {
		return false
	}
	side, ok := root["leftSideTeam"].(string)
	if !ok || !entities.TeamKey(side).Valid() {
		return false
	}
	return validMillis(root["serverTime"]) && validMillis(root["lastUpdated"])
}

func validTeam(raw interface{}) bool {
	obj, ok := asObject(raw)
	if !ok {
		return false
	}
	name, ok := obj["name"].(string)
	if !ok {
		return false
	}
	if trimmed, ok := ValidTeamName(name); !ok || trimmed != name {
		return false
	}
	return validInt(obj["score"], 0, entities.MaxScore) &&
		validInt(obj["doOrDieCount"], 0, entities.MaxDoOrDieCount)
}

func validTimer(raw interface{}) bool {
	obj, ok := asObject(raw)
	if !ok {
		return false
	}
	if !validInt(obj["totalDuration"], 1, entities.MaxTimerDuration) {
		return false
	}
	total, _ := asNumber(obj["totalDuration"])
	remaining, ok := asNumber(obj["remainingSeconds"])
	if !ok || remaining < 0 || remaining > total {
		return false
	}
	running, ok := obj["isRunning"].(bool)
	if !ok {
		return false
	}
	paused, ok := obj["isPaused"].(bool)
	if !ok || (running && paused) {
		return false
	}
	startSet, ok := validOptionalMillis(obj["startTime"])
	if !ok {
		return false
	}
	pausedSet, ok := validOptionalMillis(obj["pausedAt"])
	if !ok || pausedSet != paused {
		return false
	}
	if (running || paused) && !startSet {
		return false
	}
	return true
}

func validInt(raw interface{}, lo, hi int) bool {
	v, ok := asNumber(raw)
	return ok && v == math.Trunc(v) && v >= float64(lo) && v <= float64(hi)
}

func validMillis(raw interface{}) bool {
	v, ok := asNumber(raw)
	return ok && v >= 0 && v <= maxMillis && v == math.Trunc(v)
}

// validOptionalMillis reports (present, ok).
func validOptionalMillis(raw interface{}) (bool, bool) {
	if raw == nil {
		return false, true
	}
	return true, validMillis(raw)
}

func timeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
