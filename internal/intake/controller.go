package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/medintake/internal/llm"
	"github.com/Skufu/medintake/internal/logger"
	"github.com/Skufu/medintake/internal/metrics"
	"github.com/Skufu/medintake/internal/questions"
)

const (
	WelcomeMessage    = "Welcome to the Patient Intake Chat. Let's get started!"
	CompletionMessage = "Thank you! You've completed the full intake questionnaire."

	defaultFollowUp = "Please elaborate on this."

	// maxHistory bounds the follow-up conversation kept per session.
	maxHistory = 20
)

// Progress describes how far a session has advanced through the bank.
type Progress struct {
	Answered int  `json:"answered"`
	Total    int  `json:"total"`
	Done     bool `json:"done"`
}

// Turn is the controller's reply to a session step.
type Turn struct {
	SessionID string              `json:"session_id"`
	Message   string              `json:"response"`
	Question  *questions.Question `json:"question,omitempty"`
	Done      bool                `json:"done"`
	Progress  Progress            `json:"progress"`
}

// FollowUpRef points a follow-up at a recorded answer (Index) or at
// free text the patient selected (Text). Index wins when both are set.
type FollowUpRef struct {
	Index *int
	Text  string
}

type Controller struct {
	bank  *questions.Bank
	store Store
	llm   llm.Client
	now   func() time.Time
}

func NewController(bank *questions.Bank, store Store, client llm.Client) *Controller {
	return &Controller{bank: bank, store: store, llm: client, now: time.Now}
}

func (c *Controller) Bank() *questions.Bank { return c.bank }

// Start creates a session and returns the first question.
func (c *Controller) Start(ctx context.Context) (*Turn, error) {
	now := c.now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if err := c.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	metrics.SessionsStarted.Inc()
	logger.Log.WithField("session", s.ID).Info("intake session started")

	turn := c.turnFor(s)
	turn.Message = WelcomeMessage + " " + turn.Message
	return turn, nil
}

func (c *Controller) Get(ctx context.Context, id string) (*Session, Progress, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, Progress{}, err
	}
	return s, c.progress(s), nil
}

// Answer records text as the answer to the current question and advances
// to the next one. A completed session is left unchanged.
func (c *Controller) Answer(ctx context.Context, id, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAnswer
	}

	var recorded, completed bool
	s, err := c.store.Update(ctx, id, func(s *Session) error {
		q, ok := c.bank.At(s.QuestionIndex)
		if !ok {
			return nil
		}
		now := c.now()
		s.Answers = append(s.Answers, Answer{
			QuestionIndex: q.Index,
			Question:      q.Text,
			Text:          text,
			AnsweredAt:    now,
		})
		s.QuestionIndex++
		s.UpdatedAt = now
		recorded = true
		completed = s.QuestionIndex == c.bank.Len()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if recorded {
		metrics.AnswersRecorded.Inc()
	}
	if completed {
		metrics.SessionsCompleted.Inc()
		logger.Log.WithField("session", id).Info("intake questionnaire completed")
	}
	return c.turnFor(s), nil
}

// Reset clears answers, history and document and rewinds to the first
// question.
func (c *Controller) Reset(ctx context.Context, id string) (*Turn, error) {
	s, err := c.store.Update(ctx, id, func(s *Session) error {
		s.Epoch++
		s.QuestionIndex = 0
		s.Answers = nil
		s.History = nil
		s.Document = nil
		s.UpdatedAt = c.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("session", id).Info("intake session reset")
	return c.turnFor(s), nil
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// FollowUp answers a clarifying question about the intake with the LLM
// and appends the exchange to the session history. If the session is
// reset while the model is answering, nothing is recorded and
// ErrSessionReset is returned.
func (c *Controller) FollowUp(ctx context.Context, id string, ref FollowUpRef, question string) (string, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	reference, err := resolveReference(s, ref)
	if err != nil {
		return "", err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		question = defaultFollowUp
	}

	system := "You are a medical assistant answering follow-up questions patients may have about their intake form."
	if reference != "" {
		system += fmt.Sprintf(" The patient is referring to:\n\n%s", reference)
	}
	messages := make([]llm.Message, 0, len(s.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, s.History...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	reply, err := c.llm.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("follow-up: %w", err)
	}

	epoch := s.Epoch
	_, err = c.store.Update(ctx, id, func(s *Session) error {
		if s.Epoch != epoch {
			return ErrSessionReset
		}
		if ref.Index != nil && *ref.Index >= len(s.Answers) {
			return fmt.Errorf("%w: %d", ErrInvalidReference, *ref.Index)
		}
		s.History = append(s.History,
			llm.Message{Role: llm.RoleUser, Content: question},
			llm.Message{Role: llm.RoleAssistant, Content: reply},
		)
		if len(s.History) > maxHistory {
			s.History = append([]llm.Message(nil), s.History[len(s.History)-maxHistory:]...)
		}
		s.UpdatedAt = c.now()
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// AttachDocument stores an uploaded document on the session, replacing
// any previous one.
func (c *Controller) AttachDocument(ctx context.Context, id, name, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyDocument
	}
	_, err := c.store.Update(ctx, id, func(s *Session) error {
		now := c.now()
		s.Document = &Document{Name: name, Text: text, UploadedAt: now}
		s.UpdatedAt = now
		return nil
	})
	if err == nil {
		logger.Log.WithFields(logrus.Fields{"session": id, "bytes": len(text)}).Info("document attached")
	}
	return err
}

func resolveReference(s *Session, ref FollowUpRef) (string, error) {
	if ref.Index != nil {
		i := *ref.Index
		if i < 0 || i >= len(s.Answers) {
			return "", fmt.Errorf("%w: %d", ErrInvalidReference, i)
		}
		a := s.Answers[i]
		return fmt.Sprintf("Question: %s\nAnswer: %s", a.Question, a.Text), nil
	}
	return strings.TrimSpace(ref.Text), nil
}

func (c *Controller) progress(s *Session) Progress {
	return Progress{
		Answered: len(s.Answers),
		Total:    c.bank.Len(),
		Done:     s.QuestionIndex >= c.bank.Len(),
	}
}

func (c *Controller) turnFor(s *Session) *Turn {
	t := &Turn{SessionID: s.ID, Progress: c.progress(s)}
	if q, ok := c.bank.At(s.QuestionIndex); ok {
		t.Question = &q
		t.Message = q.Text
		return t
	}
	t.Done = true
	t.Message = CompletionMessage
	return t
}
