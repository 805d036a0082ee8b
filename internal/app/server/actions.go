package server

import (
	"encoding/json"
	"fmt"

	"github.com/chess-vn/courtsync/internal/domains/dtos"
	"github.com/chess-vn/courtsync/internal/domains/entities"
)

// action is the closed set of operations a client may request.
type action interface{ isAction() }

type scoreUpdate struct {
	team   entities.TeamKey
	points int
}

type setTeamName struct {
	team entities.TeamKey
	name string
}

type doOrDieUpdate struct {
	team  entities.TeamKey
	delta int
}

type (
	resetScores    struct{}
	resetTeamScore struct{ team entities.TeamKey }
	timerStart     struct{}
	timerPause     struct{}
	timerReset     struct{}
	timerSet       struct{ duration int }
	timerAdjust    struct{ seconds int }
	subTimerStart  struct{}
	subTimerPause  struct{}
	subTimerReset  struct{}
	doOrDieReset   struct{}
	courtChange    struct{}
	resetAll       struct{}
)

// getGameState is the only read-only action; its reply goes to the
// requester alone.
type getGameState struct{ requestId string }

func (scoreUpdate) isAction()    {}
func (resetScores) isAction()    {}
func (resetTeamScore) isAction() {}
func (setTeamName) isAction()    {}
func (timerStart) isAction()     {}
func (timerPause) isAction()     {}
func (timerReset) isAction()     {}
func (timerSet) isAction()       {}
func (timerAdjust) isAction()    {}
func (subTimerStart) isAction()  {}
func (subTimerPause) isAction()  {}
func (subTimerReset) isAction()  {}
func (doOrDieUpdate) isAction()  {}
func (doOrDieReset) isAction()   {}
func (courtChange) isAction()    {}
func (resetAll) isAction()       {}
func (getGameState) isAction()   {}

// decodeAction turns a wire action into its typed form. Unknown kinds
// return ErrUnsupportedAction; malformed payloads return a validationError.
func decodeAction(req dtos.ActionRequest) (action, error) {
	switch req.Type {
	case dtos.ActionScoreUpdate:
		var p dtos.ScoreUpdatePayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		return scoreUpdate{team: p.Team, points: p.Points}, nil
	case dtos.ActionResetScores:
		return resetScores{}, nil
	case dtos.ActionResetTeamScore:
		var p dtos.TeamPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		return resetTeamScore{team: p.Team}, nil
	case dtos.ActionSetTeamName:
		var p dtos.SetTeamNamePayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		return setTeamName{team: p.Team, name: p.Name}, nil
	case dtos.ActionTimerStart:
		return timerStart{}, nil
	case dtos.ActionTimerPause:
		return timerPause{}, nil
	case dtos.ActionTimerReset:
		return timerReset{}, nil
	case dtos.ActionTimerSet:
		var p dtos.TimerSetPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		return timerSet{duration: p.Duration}, nil
	case dtos.ActionTimerAdjust:
		var p dtos.TimerAdjustPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		return timerAdjust{seconds: p.Seconds}, nil
	case dtos.ActionSubTimerStart:
		return subTimerStart{}, nil
	case dtos.ActionSubTimerPause:
		return subTimerPause{}, nil
	case dtos.ActionSubTimerReset:
		return subTimerReset{}, nil
	case dtos.ActionDoOrDieUpdate:
		var p dtos.DoOrDieUpdatePayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		return doOrDieUpdate{team: p.Team, delta: p.Delta}, nil
	case dtos.ActionDoOrDieReset:
		return doOrDieReset{}, nil
	case dtos.ActionCourtChange:
		return courtChange{}, nil
	case dtos.ActionResetAll:
		return resetAll{}, nil
	case dtos.ActionGetGameState:
		return getGameState{requestId: req.RequestId}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, req.Type)
}

func decodePayload(req dtos.ActionRequest, v interface{}) error {
	if len(req.Payload) == 0 {
		return validationError{status: ErrStatusInvalidPayload}
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return validationError{status: ErrStatusInvalidPayload}
	}
	return nil
}
