// Package intake implements the per-patient questionnaire state machine.
package intake

import (
	"context"
	"errors"
	"time"

	"github.com/Skufu/medintake/internal/llm"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrEmptyAnswer      = errors.New("answer is empty")
	ErrInvalidReference = errors.New("invalid reference index")
	ErrEmptyDocument    = errors.New("document is empty")
	ErrSessionReset     = errors.New("session was reset")
)

// Session is one patient's questionnaire run. len(Answers) always equals
// QuestionIndex. Epoch counts resets.
type Session struct {
	ID            string        `json:"id"`
	Epoch         int           `json:"epoch"`
	QuestionIndex int           `json:"question_index"`
	Answers       []Answer      `json:"answers"`
	History       []llm.Message `json:"history,omitempty"`
	Document      *Document     `json:"document,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type Answer struct {
	QuestionIndex int       `json:"question_index"`
	Question      string    `json:"question"`
	Text          string    `json:"text"`
	AnsweredAt    time.Time `json:"answered_at"`
}

type Document struct {
	Name       string    `json:"name"`
	Text       string    `json:"text"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Answers = append([]Answer(nil), s.Answers...)
	c.History = append([]llm.Message(nil), s.History...)
	if s.Document != nil {
		d := *s.Document
		c.Document = &d
	}
	return &c
}

// AnswerTexts returns the answer strings in question order.
func (s *Session) AnswerTexts() []string {
	out := make([]string, len(s.Answers))
	for i, a := range s.Answers {
		out[i] = a.Text
	}
	return out
}

// QuestionTexts returns the question text recorded with each answer.
func (s *Session) QuestionTexts() []string {
	out := make([]string, len(s.Answers))
	for i, a := range s.Answers {
		out[i] = a.Question
	}
	return out
}

// Store persists sessions. Update must apply fn atomically with respect
// to other updates of the same session and must not persist the change
// when fn returns an error.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
	Ping(ctx context.Context) error
}
