// Package quest runs language quests: the content model, the per-user session state machine and
// the engine that drives sessions against the content and progress collaborators.
package quest

import (
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/banglabot/quest-service/internal/platform/envconfig"
)

// ChallengeType identifies how a challenge is presented.
type ChallengeType string

const (
	TypeVocabulary   ChallengeType = "vocabulary"
	TypeConversation ChallengeType = "conversation"
	TypeCultural     ChallengeType = "cultural"
)

// ErrInvalidQuest indicates quest content that cannot be played.
var ErrInvalidQuest = errors.New("invalid quest content")

// DialogueLine is one utterance in a conversation challenge.
type DialogueLine struct {
	Speaker string `json:"speaker" yaml:"speaker" validate:"required"`
	Text    string `json:"text" yaml:"text" validate:"required"`
}

// Challenge is a single multiple-choice question.
type Challenge struct {
	Type          ChallengeType  `json:"type" yaml:"type" validate:"oneof=vocabulary conversation cultural"`
	Word          string         `json:"word,omitempty" yaml:"word"`
	Context       string         `json:"context,omitempty" yaml:"context"`
	Dialogue      []DialogueLine `json:"dialogue,omitempty" yaml:"dialogue" validate:"omitempty,dive"`
	Title         string         `json:"title,omitempty" yaml:"title"`
	Story         string         `json:"story,omitempty" yaml:"story"`
	Question      string         `json:"question,omitempty" yaml:"question"`
	Options       []string       `json:"options" yaml:"options" validate:"min=2,dive,required"`
	CorrectAnswer string         `json:"correctAnswer" yaml:"correct_answer" validate:"required"`
}

// Validate checks the type specific fields and that exactly one option is correct.
func (c Challenge) Validate() error {
	if err := envconfig.Validate(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQuest, err.Error())
	}
	switch c.Type {
	case TypeVocabulary:
		if c.Word == "" {
			return fmt.Errorf("%w: vocabulary challenge without word", ErrInvalidQuest)
		}
	case TypeConversation:
		if len(c.Dialogue) == 0 || c.Question == "" {
			return fmt.Errorf("%w: conversation challenge needs dialogue and question", ErrInvalidQuest)
		}
	case TypeCultural:
		if c.Story == "" || c.Question == "" {
			return fmt.Errorf("%w: cultural challenge needs story and question", ErrInvalidQuest)
		}
	}
	matches := 0
	for _, opt := range c.Options {
		if opt == c.CorrectAnswer {
			matches++
		}
	}
	if matches != 1 {
		return fmt.Errorf("%w: %d options match the correct answer", ErrInvalidQuest, matches)
	}
	return nil
}

// View strips the correct answer so the challenge can be shown to a player.
func (c Challenge) View() ChallengeView {
	return ChallengeView{
		Type:     c.Type,
		Word:     c.Word,
		Context:  c.Context,
		Dialogue: c.Dialogue,
		Title:    c.Title,
		Story:    c.Story,
		Question: c.Question,
		Options:  c.Options,
	}
}

// ChallengeView is a challenge as presented to the player.
type ChallengeView struct {
	Type     ChallengeType  `json:"type"`
	Word     string         `json:"word,omitempty"`
	Context  string         `json:"context,omitempty"`
	Dialogue []DialogueLine `json:"dialogue,omitempty"`
	Title    string         `json:"title,omitempty"`
	Story    string         `json:"story,omitempty"`
	Question string         `json:"question,omitempty"`
	Options  []string       `json:"options"`
}

// Quest is the ordered challenge list for one region.
type Quest struct {
	Title      string      `json:"title" yaml:"title" validate:"required"`
	Region     string      `json:"region" yaml:"region"`
	Challenges []Challenge `json:"challenges" yaml:"challenges" validate:"min=1"`
}

// Validate checks the quest and every challenge in it.
func (q Quest) Validate() error {
	if err := envconfig.Validate(q); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQuest, err.Error())
	}
	for i, c := range q.Challenges {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("challenge %d: %w", i, err)
		}
	}
	return nil
}

// Normalized returns a copy with every player-visible string in Unicode NFC. Bengali vowel signs
// have composed and decomposed spellings, and answers are compared byte for byte.
func (q Quest) Normalized() Quest {
	out := q
	out.Title = norm.NFC.String(q.Title)
	out.Challenges = make([]Challenge, len(q.Challenges))
	for i, c := range q.Challenges {
		c.Word = norm.NFC.String(c.Word)
		c.Context = norm.NFC.String(c.Context)
		c.Title = norm.NFC.String(c.Title)
		c.Story = norm.NFC.String(c.Story)
		c.Question = norm.NFC.String(c.Question)
		c.CorrectAnswer = norm.NFC.String(c.CorrectAnswer)
		if c.Dialogue != nil {
			lines := make([]DialogueLine, len(c.Dialogue))
			for j, l := range c.Dialogue {
				lines[j] = DialogueLine{Speaker: norm.NFC.String(l.Speaker), Text: norm.NFC.String(l.Text)}
			}
			c.Dialogue = lines
		}
		if c.Options != nil {
			opts := make([]string, len(c.Options))
			for j, o := range c.Options {
				opts[j] = norm.NFC.String(o)
			}
			c.Options = opts
		}
		out.Challenges[i] = c
	}
	return out
}
