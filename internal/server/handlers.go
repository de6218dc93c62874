package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/medintake/internal/analysis"
	"github.com/Skufu/medintake/internal/docqa"
	"github.com/Skufu/medintake/internal/intake"
	"github.com/Skufu/medintake/internal/questions"
	"github.com/Skufu/medintake/internal/report"
	"github.com/Skufu/medintake/internal/screening"
)

type handlers struct {
	deps Deps
}

type chatRequest struct {
	UserMessage string `json:"user_message" validate:"max=4000"`
	FollowUp    bool   `json:"follow_up"`
	FollowUpRef string `json:"follow_up_ref" validate:"max=4000"`
}

type followUpRequest struct {
	RefIndex *int   `json:"ref_index" validate:"required,gte=0"`
	Question string `json:"question" validate:"max=4000"`
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type analysisRequest struct {
	Symptoms   string `json:"symptoms" validate:"required,max=4000"`
	Sym        string `json:"sym,omitempty" validate:"-"`
	PainRating *int   `json:"pain_rating" validate:"omitempty,gte=0,lte=10"`
}

type documentView struct {
	Name       string    `json:"name"`
	Length     int       `json:"length"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type sessionView struct {
	ID        string              `json:"id"`
	Answers   []intake.Answer     `json:"answers"`
	Current   *questions.Question `json:"current_question,omitempty"`
	Progress  intake.Progress     `json:"progress"`
	Document  *documentView       `json:"document,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (h *handlers) listQuestions(c *gin.Context) {
	bank := h.deps.Intake.Bank()
	c.JSON(http.StatusOK, gin.H{
		"questions": bank.All(),
		"sections":  bank.Sections(),
		"total":     bank.Len(),
	})
}

func (h *handlers) startSession(c *gin.Context) {
	turn, err := h.deps.Intake.Start(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, turn)
}

func (h *handlers) getSession(c *gin.Context) {
	s, progress, err := h.deps.Intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	view := sessionView{
		ID:        s.ID,
		Answers:   s.Answers,
		Progress:  progress,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if view.Answers == nil {
		view.Answers = []intake.Answer{}
	}
	if q, ok := h.deps.Intake.Bank().At(s.QuestionIndex); ok {
		view.Current = &q
	}
	if s.Document != nil {
		view.Document = &documentView{
			Name:       s.Document.Name,
			Length:     utf8.RuneCountInString(s.Document.Text),
			UploadedAt: s.Document.UploadedAt,
		}
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) deleteSession(c *gin.Context) {
	if err := h.deps.Intake.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) resetSession(c *gin.Context) {
	turn, err := h.deps.Intake.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

// chat records an answer, or with follow_up set asks a clarifying
// question about follow_up_ref.
func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")

	if req.FollowUp {
		reply, err := h.deps.Intake.FollowUp(c.Request.Context(), id, intake.FollowUpRef{Text: req.FollowUpRef}, req.UserMessage)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": id, "response": reply, "follow_up": true})
		return
	}

	turn, err := h.deps.Intake.Answer(c.Request.Context(), id, req.UserMessage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

func (h *handlers) followUp(c *gin.Context) {
	var req followUpRequest
	if !bindJSON(c, &req) {
		return
	}
	reply, err := h.deps.Intake.FollowUp(c.Request.Context(), c.Param("id"), intake.FollowUpRef{Index: req.RefIndex}, req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *handlers) summary(c *gin.Context) {
	s, _, err := h.deps.Intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	text, err := h.deps.Summary.Generate(c.Request.Context(), s.AnswerTexts())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": text})
}

func (h *handlers) report(c *gin.Context) {
	s, _, err := h.deps.Intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	bank := h.deps.Intake.Bank()
	answers := s.AnswerTexts()
	flags := screening.EvaluateAnswers(bank, answers).Flags

	var buf bytes.Buffer
	err = report.RenderForm(&buf, report.Form{
		Bank:      bank,
		Answers:   answers,
		Questions: s.QuestionTexts(),
		Flags:     flags,
		Generated: time.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}

func (h *handlers) uploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, err)
			return
		}
		abort(c, http.StatusBadRequest, CodeInvalidPayload, "multipart field \"file\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, err)
		return
	}
	text, err := docqa.Extract(fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		abort(c, http.StatusUnprocessableEntity, CodeValidationFailed, err.Error())
		return
	}
	if err := h.deps.Intake.AttachDocument(c.Request.Context(), c.Param("id"), fh.Filename, text); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "uploaded", "length": utf8.RuneCountInString(text)})
}

func (h *handlers) askDocument(c *gin.Context) {
	var req askRequest
	if !bindJSON(c, &req) {
		return
	}
	s, _, err := h.deps.Intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if s.Document == nil {
		respondError(c, docqa.ErrNoDocument)
		return
	}
	answer, err := h.deps.Docs.Ask(c.Request.Context(), s.Document.Text, req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (h *handlers) analyze(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, err)
			return
		}
		abort(c, http.StatusBadRequest, CodeInvalidPayload, "invalid payload")
		return
	}
	// "sym" is accepted for older clients.
	if req.Symptoms == "" {
		req.Symptoms = req.Sym
	}
	if !validateStruct(c, &req) {
		return
	}

	rep, err := h.deps.Analyzer.Analyze(c.Request.Context(), analysis.Request{
		Symptoms:   req.Symptoms,
		PainRating: req.PainRating,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
