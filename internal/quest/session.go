package quest

import (
	"golang.org/x/text/unicode/norm"

	"github.com/banglabot/quest-service/internal/progress"
)

// State is the phase of a quest session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Feedback is shown after an answer and before the session advances.
type Feedback struct {
	Option        string `json:"option"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
}

// Session is the quest state machine for one player. Transitions are pure; the zero value is
// NotStarted.
//
// Within a session the challenge index only moves forward, and the score never exceeds the
// number of challenges answered.
type Session struct {
	state   State
	region  string
	quest   Quest
	index   int
	score   int
	pending *Feedback
}

// Begin enters InProgress for the region's quest. Allowed only from NotStarted.
func (s *Session) Begin(regionID string, q Quest) error {
	if s.state != StateNotStarted {
		return &ValidationError{Op: "start", State: s.state, Reason: "a quest is already running"}
	}
	if len(q.Challenges) == 0 {
		return &ValidationError{Op: "start", State: s.state, Reason: "quest has no challenges"}
	}
	*s = Session{state: StateInProgress, region: regionID, quest: q}
	return nil
}

// Answer scores the selected option against the current challenge. The feedback stays pending
// until Advance is called.
func (s *Session) Answer(option string) (Feedback, error) {
	if s.state != StateInProgress {
		return Feedback{}, &ValidationError{Op: "answer", State: s.state, Reason: "no quest in progress"}
	}
	if s.pending != nil {
		return Feedback{}, &ValidationError{Op: "answer", State: s.state, Reason: "challenge already answered"}
	}
	c := s.quest.Challenges[s.index]
	option = norm.NFC.String(option)
	fb := Feedback{Option: option, Correct: option == c.CorrectAnswer, CorrectAnswer: c.CorrectAnswer}
	if fb.Correct {
		s.score++
	}
	s.pending = &fb
	return fb, nil
}

// Advance moves past an answered challenge. After the last challenge the session is Completed.
func (s *Session) Advance() error {
	if s.state != StateInProgress || s.pending == nil {
		return &ValidationError{Op: "advance", State: s.state, Reason: "no answered challenge"}
	}
	s.pending = nil
	if s.index == len(s.quest.Challenges)-1 {
		s.state = StateCompleted
		return nil
	}
	s.index++
	return nil
}

// Reset returns the session to NotStarted, discarding any score.
func (s *Session) Reset() {
	*s = Session{}
}

func (s *Session) State() State   { return s.state }
func (s *Session) Region() string { return s.region }
func (s *Session) Score() int     { return s.score }
func (s *Session) Index() int     { return s.index }
func (s *Session) Total() int     { return len(s.quest.Challenges) }

// Result is the report sent to the progress collaborator. Only valid once Completed.
func (s *Session) Result() (progress.Result, error) {
	if s.state != StateCompleted {
		return progress.Result{}, &ValidationError{Op: "complete", State: s.state, Reason: "quest is not finished"}
	}
	return progress.Result{Region: s.region, Score: s.score, TotalQuestions: s.Total()}, nil
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State          State          `json:"state"`
	Region         string         `json:"region,omitempty"`
	Title          string         `json:"title,omitempty"`
	Index          int            `json:"challengeIndex"`
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	Challenge      *ChallengeView `json:"challenge,omitempty"`
	Feedback       *Feedback      `json:"feedback,omitempty"`
	Busy           bool           `json:"busy,omitempty"`
}

// Snapshot returns the current view; the challenge is present only while InProgress.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:          s.state,
		Region:         s.region,
		Title:          s.quest.Title,
		Index:          s.index,
		Score:          s.score,
		TotalQuestions: s.Total(),
	}
	if s.state == StateInProgress {
		view := s.quest.Challenges[s.index].View()
		snap.Challenge = &view
	}
	if s.pending != nil {
		fb := *s.pending
		snap.Feedback = &fb
	}
	return snap
}
