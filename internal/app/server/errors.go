package server

import "errors"

// Statuses carried in error frames sent back to a client.
var (
	ErrStatusParse           string = "failed to parse message"
	ErrStatusInvalidPayload  string = "INVALID_PAYLOAD"
	ErrStatusInvalidTeam     string = "INVALID_TEAM"
	ErrStatusInvalidTeamName string = "INVALID_TEAM_NAME"
	ErrStatusInvalidDuration string = "INVALID_DURATION"
)

var (
	ErrFailedToLoadMatch = errors.New("failed to load match")
	ErrInvalidMatchId    = errors.New("invalid match id")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrServerClosed      = errors.New("server closed")
)

// validationError rejects an action without touching the state.
type validationError struct {
	status string
}

func (e validationError) Error() string {
	return e.status
}
