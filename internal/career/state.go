package career

// SessionState is the bot's belief about the current run. It is owned by the
// session loop: the policy only reads it, and the loop mutates it after an
// action has been executed and verified.
type SessionState struct {
	fanGoal    int
	goalFrozen bool

	RacesRun            int
	LastAction          Action
	ConsecutiveFailures int
	Iterations          int

	LastTurn   Turn
	LastMood   Mood
	LastEnergy int
	LastFans   int
}

// NewSessionState creates the state for a run. A goal of zero means the goal
// is adopted from the first snapshot that shows one.
func NewSessionState(fanGoal int) *SessionState {
	return &SessionState{
		fanGoal:    fanGoal,
		goalFrozen: fanGoal > 0,
		LastEnergy: EnergyUnknown,
	}
}

// FanGoal returns the fan-count goal for this run.
func (s *SessionState) FanGoal() int {
	return s.fanGoal
}

// AdoptGoal sets the goal once when none was configured. Later calls are
// ignored so the goal stays fixed for the rest of the run.
func (s *SessionState) AdoptGoal(goal int) bool {
	if s.goalFrozen || goal <= 0 {
		return false
	}
	s.fanGoal = goal
	s.goalFrozen = true
	return true
}

// RecordFailure bumps the consecutive-failure counter and returns the new value.
func (s *SessionState) RecordFailure() int {
	s.ConsecutiveFailures++
	return s.ConsecutiveFailures
}

// ResetFailures clears the consecutive-failure counter.
func (s *SessionState) ResetFailures() {
	s.ConsecutiveFailures = 0
}

// Commit applies the effects of a verified action.
func (s *SessionState) Commit(action Action, after Snapshot) {
	if action.Kind == ActionRace {
		s.RacesRun++
	}
	s.LastAction = action
	s.ConsecutiveFailures = 0
	if after.Turn.Index > 0 {
		s.LastTurn = after.Turn
	}
	if after.Mood != MoodUnknown {
		s.LastMood = after.Mood
	}
	if after.EnergyKnown() {
		s.LastEnergy = after.Energy
	}
	if after.Fans.Current > s.LastFans {
		s.LastFans = after.Fans.Current
	}
}
