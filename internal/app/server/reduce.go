package server

import (
	"time"

	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/matchstate"
	"github.com/chess-vn/courtsync/pkg/timer"
)

// reduce applies a mutating action to state in one step. On error the
// state is left exactly as it was.
func reduce(state *entities.MatchState, a action, now time.Time) error {
	switch a := a.(type) {
	case scoreUpdate:
		team := state.Team(a.team)
		if team == nil {
			return validationError{status: ErrStatusInvalidTeam}
		}
		points := clampInt(a.points, -entities.MaxScore, entities.MaxScore)
		team.Score = clampInt(team.Score+points, 0, entities.MaxScore)
	case resetScores:
		state.TeamA.Score = 0
		state.TeamB.Score = 0
	case resetTeamScore:
		team := state.Team(a.team)
		if team == nil {
			return validationError{status: ErrStatusInvalidTeam}
		}
		team.Score = 0
	case setTeamName:
		team := state.Team(a.team)
		if team == nil {
			return validationError{status: ErrStatusInvalidTeam}
		}
		name, ok := matchstate.ValidTeamName(a.name)
		if !ok {
			return validationError{status: ErrStatusInvalidTeamName}
		}
		team.Name = name
	case timerStart:
		timer.Start(&state.Timer, now)
	case timerPause:
		timer.Pause(&state.Timer, now)
	case timerReset:
		timer.Reset(&state.Timer)
	case timerSet:
		if a.duration < 1 || a.duration > entities.MaxTimerDuration {
			return validationError{status: ErrStatusInvalidDuration}
		}
		timer.Set(&state.Timer, a.duration)
	case timerAdjust:
		timer.Adjust(&state.Timer, a.seconds, now)
	case subTimerStart:
		timer.Start(&state.SubTimer, now)
	case subTimerPause:
		timer.Pause(&state.SubTimer, now)
	case subTimerReset:
		timer.Reset(&state.SubTimer)
	case doOrDieUpdate:
		team := state.Team(a.team)
		if team == nil {
			return validationError{status: ErrStatusInvalidTeam}
		}
		delta := clampInt(a.delta, -entities.MaxDoOrDieCount, entities.MaxDoOrDieCount)
		team.DoOrDieCount = clampInt(team.DoOrDieCount+delta, 0, entities.MaxDoOrDieCount)
	case doOrDieReset:
		state.TeamA.DoOrDieCount = 0
		state.TeamB.DoOrDieCount = 0
	case courtChange:
		state.LeftSideTeam = state.LeftSideTeam.Other()
	case resetAll:
		*state = entities.NewMatchState(now)
	default:
		return ErrUnsupportedAction
	}

	ms := now.UnixMilli()
	state.ServerTime = ms
	state.LastUpdated = ms
	return nil
}

// settle stops any timer whose countdown has reached zero.
func settle(state *entities.MatchState, now time.Time) {
	timer.Settle(&state.Timer, now)
	timer.Settle(&state.SubTimer, now)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
