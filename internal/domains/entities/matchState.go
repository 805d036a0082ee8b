package entities

import "time"

type TeamKey string

const (
	TeamA TeamKey = "teamA"
	TeamB TeamKey = "teamB"
)

func (k TeamKey) Valid() bool {
	return k == TeamA || k == TeamB
}

// Other returns the opposing team key.
func (k TeamKey) Other() TeamKey {
	if k == TeamA {
		return TeamB
	}
	return TeamA
}

const (
	DefaultTeamAName = "Team A"
	DefaultTeamBName = "Team B"

	MaxTeamNameLength = 20
	MaxScore          = 999
	MaxDoOrDieCount   = 3

	DefaultTimerDuration    = 15 * 60
	DefaultSubTimerDuration = 30
	MaxTimerDuration        = 99*60 + 59
)

type TeamState struct {
	Name         string `json:"name" dynamodbav:"name"`
	Score        int    `json:"score" dynamodbav:"score"`
	DoOrDieCount int    `json:"doOrDieCount" dynamodbav:"doOrDieCount"`
}

// TimerState is shared by the main timer and the sub-timer. RemainingSeconds
// is the baseline valid as of StartTime, not a live value. Times are Unix
// epoch milliseconds.
type TimerState struct {
	TotalDuration    int     `json:"totalDuration" dynamodbav:"totalDuration"`
	StartTime        *int64  `json:"startTime" dynamodbav:"startTime"`
	IsRunning        bool    `json:"isRunning" dynamodbav:"isRunning"`
	IsPaused         bool    `json:"isPaused" dynamodbav:"isPaused"`
	PausedAt         *int64  `json:"pausedAt" dynamodbav:"pausedAt"`
	RemainingSeconds float64 `json:"remainingSeconds" dynamodbav:"remainingSeconds"`
}

type MatchState struct {
	TeamA        TeamState  `json:"teamA" dynamodbav:"teamA"`
	TeamB        TeamState  `json:"teamB" dynamodbav:"teamB"`
	Timer        TimerState `json:"timer" dynamodbav:"timer"`
	SubTimer     TimerState `json:"subTimer" dynamodbav:"subTimer"`
	LeftSideTeam TeamKey    `json:"leftSideTeam" dynamodbav:"leftSideTeam"`
	ServerTime   int64      `json:"serverTime" dynamodbav:"serverTime"`
	LastUpdated  int64      `json:"lastUpdated" dynamodbav:"lastUpdated"`
}

// Team returns a pointer to the team stored under key, or nil for an unknown key.
func (m *MatchState) Team(key TeamKey) *TeamState {
	switch key {
	case TeamA:
		return &m.TeamA
	case TeamB:
		return &m.TeamB
	}
	return nil
}

func NewTimerState(duration int) TimerState {
	return TimerState{
		TotalDuration:    duration,
		RemainingSeconds: float64(duration),
	}
}

// NewMatchState returns the hard-coded defaults of a never-seen match.
func NewMatchState(now time.Time) MatchState {
	ms := now.UnixMilli()
	return MatchState{
		TeamA:        TeamState{Name: DefaultTeamAName},
		TeamB:        TeamState{Name: DefaultTeamBName},
		Timer:        NewTimerState(DefaultTimerDuration),
		SubTimer:     NewTimerState(DefaultSubTimerDuration),
		LeftSideTeam: TeamA,
		ServerTime:   ms,
		LastUpdated:  ms,
	}
}

// Clone returns a deep copy; the timer pointers are not shared.
func (m MatchState) Clone() MatchState {
	m.Timer = m.Timer.clone()
	m.SubTimer = m.SubTimer.clone()
	return m
}

func (t TimerState) clone() TimerState {
	if t.StartTime != nil {
		v := *t.StartTime
		t.StartTime = &v
	}
	if t.PausedAt != nil {
		v := *t.PausedAt
		t.PausedAt = &v
	}
	return t
}
