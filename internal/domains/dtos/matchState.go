package dtos

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/chess-vn/courtsync/internal/domains/entities"
)

const (
	ActionScoreUpdate    = "SCORE_UPDATE"
	ActionResetScores    = "RESET_SCORES"
	ActionResetTeamScore = "RESET_TEAM_SCORE"
	ActionSetTeamName    = "SET_TEAM_NAME"
	ActionTimerStart     = "TIMER_START"
	ActionTimerPause     = "TIMER_PAUSE"
	ActionTimerReset     = "TIMER_RESET"
	ActionTimerSet       = "TIMER_SET"
	ActionTimerAdjust    = "TIMER_ADJUST"
	ActionSubTimerStart  = "SUB_TIMER_START"
	ActionSubTimerPause  = "SUB_TIMER_PAUSE"
	ActionSubTimerReset  = "SUB_TIMER_RESET"
	ActionDoOrDieUpdate  = "DO_OR_DIE_UPDATE"
	ActionDoOrDieReset   = "DO_OR_DIE_RESET"
	ActionCourtChange    = "COURT_CHANGE"
	ActionResetAll       = "RESET_ALL"
	ActionGetGameState   = "GET_GAME_STATE"
)

const (
	FrameTypeGameState = "game_state"
	FrameTypeError     = "error"
)

var (
	ErrMissingAction     = errors.New("message is missing the action field")
	ErrMissingActionType = errors.New("action is missing its type")
)

// ActionRequest is the action object of an inbound frame. On the wire it
// is either a bare kind string or an object with a type and an optional
// payload; payload fields may also sit directly on the object.
type ActionRequest struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestId string          `json:"requestId,omitempty"`
}

func (a *ActionRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var kind string
		if err := json.Unmarshal(data, &kind); err != nil {
			return err
		}
		*a = ActionRequest{Type: kind}
	} else {
		type plain ActionRequest
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*a = ActionRequest(p)
		if len(a.Payload) == 0 || bytes.Equal(a.Payload, []byte("null")) {
			a.Payload = append(json.RawMessage(nil), data...)
		}
	}
	if a.Type == "" {
		return ErrMissingActionType
	}
	return nil
}

type ActionFrame struct {
	Action ActionRequest `json:"action"`
}

// DecodeActionFrame parses an inbound text frame. The returned error is
// suitable for an error reply to the sender.
func DecodeActionFrame(message []byte) (ActionRequest, error) {
	var frame struct {
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return ActionRequest{}, err
	}
	if len(frame.Action) == 0 || bytes.Equal(frame.Action, []byte("null")) {
		return ActionRequest{}, ErrMissingAction
	}
	var req ActionRequest
	if err := json.Unmarshal(frame.Action, &req); err != nil {
		return ActionRequest{}, err
	}
	return req, nil
}

// NewActionRequest builds an action with an optional payload. A nil
// payload produces a payload-less action.
func NewActionRequest(kind string, payload interface{}) (ActionRequest, error) {
	req := ActionRequest{Type: kind}
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ActionRequest{}, err
	}
	req.Payload = data
	return req, nil
}

type TeamPayload struct {
	Team entities.TeamKey `json:"team"`
}

type ScoreUpdatePayload struct {
	Team   entities.TeamKey `json:"team"`
	Points int              `json:"points"`
}

type SetTeamNamePayload struct {
	Team entities.TeamKey `json:"team"`
	Name string           `json:"name"`
}

type TimerSetPayload struct {
	Duration int `json:"duration"`
}

type TimerAdjustPayload struct {
	Seconds int `json:"seconds"`
}

type DoOrDieUpdatePayload struct {
	Team  entities.TeamKey `json:"team"`
	Delta int              `json:"delta"`
}

type GameStateResponse struct {
	Type      string              `json:"type"`
	Data      entities.MatchState `json:"data"`
	Timestamp int64               `json:"timestamp"`
	RequestId string              `json:"requestId,omitempty"`
}

type ErrorData struct {
	Error string `json:"error"`
}

type ErrorResponse struct {
	Type      string    `json:"type"`
	Data      ErrorData `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

// Frame is the union of outbound frames as seen by a client.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	RequestId string          `json:"requestId,omitempty"`
}
