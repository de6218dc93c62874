package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medintake/internal/analysis"
	"github.com/Skufu/medintake/internal/docqa"
	"github.com/Skufu/medintake/internal/intake"
	"github.com/Skufu/medintake/internal/llm"
	"github.com/Skufu/medintake/internal/questions"
	"github.com/Skufu/medintake/internal/store"
	"github.com/Skufu/medintake/internal/summary"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	return f.reply, f.err
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func newTestRouter(t *testing.T, client llm.Client, db HealthChecker, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bank := questions.Default()
	return NewRouter(Deps{
		Intake:   intake.NewController(bank, store.NewMemoryStore(), client),
		Summary:  summary.NewGenerator(client, bank),
		Analyzer: analysis.NewAnalyzer(client),
		Docs:     docqa.NewAsker(client, 0),
		DB:       db,
	}, opts)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func startSession(t *testing.T, router http.Handler) string {
	t.Helper()
	w := do(router, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["session_id"].(string)
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{}, fakeDB{}, Options{})

	w := do(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRouterReadyz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		w := do(newTestRouter(t, &fakeLLM{}, fakeDB{}, Options{}), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode(t, w)["db"])
	})

	t.Run("degraded", func(t *testing.T) {
		w := do(newTestRouter(t, &fakeLLM{}, fakeDB{err: errors.New("conn refused")}, Options{}), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "conn refused")
	})

	t.Run("no db", func(t *testing.T) {
		w := do(newTestRouter(t, &fakeLLM{}, nil, Options{}), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "disabled", decode(t, w)["db"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{}, nil, Options{})
	startSession(t, router)

	w := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "intake_sessions_started_total")
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := do(router, http.MethodPost, "/echo", "12345")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("over limit", func(t *testing.T) {
		w := do(router, http.MethodPost, "/echo", "01234567890")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestOversizedJSONIsRejected(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{}, nil, Options{MaxBodyBytes: 64})
	id := startSession(t, router)

	body := fmt.Sprintf(`{"user_message":%q}`, strings.Repeat("a", 200))
	w := do(router, http.MethodPost, "/api/sessions/"+id+"/chat", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, CodeTooLarge, decode(t, w)["code"])
}

func TestListQuestions(t *testing.T) {
	w := do(newTestRouter(t, &fakeLLM{}, nil, Options{}), http.MethodGet, "/api/questions", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, questions.Default().Len(), body["total"])
	assert.Len(t, body["questions"], questions.Default().Len())
}

func TestIntakeFlow(t *testing.T) {
	fake := &fakeLLM{reply: "- Patient: Ana Diaz"}
	router := newTestRouter(t, fake, nil, Options{})
	id := startSession(t, router)
	bank := questions.Default()

	answers := make([]string, bank.Len())
	for i := range answers {
		answers[i] = fmt.Sprintf("answer %d", i)
	}
	answers[0] = "Ana Diaz"
	answers[7] = "chest pain when climbing stairs"

	var last map[string]any
	for _, a := range answers {
		w := do(router, http.MethodPost, "/api/sessions/"+id+"/chat", fmt.Sprintf(`{"user_message":%q}`, a))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		last = decode(t, w)
	}
	assert.Equal(t, true, last["done"])
	assert.Equal(t, intake.CompletionMessage, last["response"])

	w := do(router, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode(t, w)
	assert.Len(t, view["answers"], bank.Len())
	assert.Nil(t, view["current_question"])

	w = do(router, http.MethodGet, "/api/sessions/"+id+"/summary", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "- Patient: Ana Diaz", decode(t, w)["summary"])
	assert.Contains(t, fake.lastPrompt(), "What is your full name?: Ana Diaz")

	w = do(router, http.MethodGet, "/api/sessions/"+id+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "patient_summary.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = do(router, http.MethodPost, "/api/sessions/"+id+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "What is your full name?", decode(t, w)["response"])

	w = do(router, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(router, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatValidation(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{}, nil, Options{})
	id := startSession(t, router)

	w := do(router, http.MethodPost, "/api/sessions/"+id+"/chat", `{"user_message":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeValidationFailed, decode(t, w)["code"])

	w = do(router, http.MethodPost, "/api/sessions/"+id+"/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownSession(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{}, nil, Options{})
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/sessions/nope", ""},
		{http.MethodPost, "/api/sessions/nope/chat", `{"user_message":"hi"}`},
		{http.MethodGet, "/api/sessions/nope/summary", ""},
		{http.MethodGet, "/api/sessions/nope/report", ""},
	} {
		w := do(router, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		assert.Equal(t, CodeNotFound, decode(t, w)["code"], tc.path)
	}
}

func TestChatFollowUp(t *testing.T) {
	fake := &fakeLLM{reply: "It means an allergic reaction."}
	router := newTestRouter(t, fake, nil, Options{})
	id := startSession(t, router)

	w := do(router, http.MethodPost, "/api/sessions/"+id+"/chat",
		`{"user_message":"What is anaphylaxis?","follow_up":true,"follow_up_ref":"I had anaphylaxis once"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, fake.reply, body["response"])
	assert.Equal(t, true, body["follow_up"])

	// A follow-up does not advance the questionnaire.
	w = do(router, http.MethodGet, "/api/sessions/"+id, "")
	assert.Empty(t, decode(t, w)["answers"])
}

func TestFollowUpByIndex(t *testing.T) {
	fake := &fakeLLM{reply: "ok"}
	router := newTestRouter(t, fake, nil, Options{})
	id := startSession(t, router)
	do(router, http.MethodPost, "/api/sessions/"+id+"/chat", `{"user_message":"Ana"}`)

	w := do(router, http.MethodPost, "/api/sessions/"+id+"/follow-up", `{"ref_index":0,"question":"Is my name spelled right?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ok", decode(t, w)["response"])

	w = do(router, http.MethodPost, "/api/sessions/"+id+"/follow-up", `{"ref_index":4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(router, http.MethodPost, "/api/sessions/"+id+"/follow-up", `{"question":"missing index"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ref_index is required")
}

func TestSessionResetIsConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, fmt.Errorf("follow-up: %w", intake.ErrSessionReset))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeSessionReset, decode(t, w)["code"])
}

func TestSummaryWithoutFacts(t *testing.T) {
	fake := &fakeLLM{reply: "unused"}
	router := newTestRouter(t, fake, nil, Options{})
	id := startSession(t, router)

	w := do(router, http.MethodGet, "/api/sessions/"+id+"/summary", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeNoFacts, decode(t, w)["code"])
	assert.Empty(t, fake.lastPrompt())
}

func TestLLMFailureIsBadGateway(t *testing.T) {
	fake := &fakeLLM{err: fmt.Errorf("%w: connection refused", llm.ErrBackend)}
	router := newTestRouter(t, fake, nil, Options{})
	id := startSession(t, router)
	do(router, http.MethodPost, "/api/sessions/"+id+"/chat", `{"user_message":"Ana"}`)

	w := do(router, http.MethodGet, "/api/sessions/"+id+"/summary", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, CodeLLMUnavailable, decode(t, w)["code"])
}

func uploadRequest(t *testing.T, path, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentUploadAndAsk(t *testing.T) {
	fake := &fakeLLM{reply: "Take 5mg daily."}
	router := newTestRouter(t, fake, nil, Options{})
	id := startSession(t, router)

	w := do(router, http.MethodPost, "/api/sessions/"+id+"/documents/ask", `{"question":"What dose?"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "No document uploaded yet.", decode(t, w)["error"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/sessions/"+id+"/documents", "rx.txt", "Lisinopril 5mg daily"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "uploaded", body["status"])
	assert.EqualValues(t, 20, body["length"])

	w = do(router, http.MethodPost, "/api/sessions/"+id+"/documents/ask", `{"question":"What dose?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Take 5mg daily.", decode(t, w)["answer"])
	assert.Contains(t, fake.lastPrompt(), "Lisinopril 5mg daily")

	w = do(router, http.MethodPost, "/api/sessions/"+id+"/documents/ask", `{"question":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDocumentUploadLimits(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{}, nil, Options{MaxUploadBytes: 256})
	id := startSession(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/sessions/"+id+"/documents", "big.txt", strings.Repeat("x", 1024)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/sessions/"+id+"/documents", "empty.txt", "  "))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(router, http.MethodPost, "/api/sessions/"+id+"/documents", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysis(t *testing.T) {
	fake := &fakeLLM{reply: "Potential Causes:\n- Migraine\nLife-Threatening Assessment:\nNo - benign\nRisk Rating: 3"}
	router := newTestRouter(t, fake, nil, Options{})

	w := do(router, http.MethodPost, "/api/analysis", `{"symptoms":"throbbing headache","pain_rating":6}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "low", body["status"])
	assert.EqualValues(t, 3, body["risk_rating"])
	assert.Equal(t, []any{"Migraine"}, body["reasons"])
	assert.Contains(t, fake.lastPrompt(), "(Pain level: 6/10)")

	w = do(router, http.MethodPost, "/api/analysis", `{"sym":"dizzy"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalysisValidation(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{}, nil, Options{})

	w := do(router, http.MethodPost, "/api/analysis", `{"symptoms":"","pain_rating":11}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := strings.ToLower(w.Body.String())
	assert.Contains(t, body, "validation_failed")
	assert.Contains(t, body, "symptoms is required")
	assert.Contains(t, body, "pain_rating must be at most 10")
}
