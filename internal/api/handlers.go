package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/asisten-gizi/server/internal/core"
	"github.com/asisten-gizi/server/internal/llm"
	"github.com/asisten-gizi/server/internal/rag"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (*core.Answer, error)
}

type ProgramGenerator interface {
	Generate(ctx context.Context, profile core.UserProfile) (*core.Program, error)
}

type APIHandler struct {
	answers        Answerer
	programs       ProgramGenerator
	validate       *validator.Validate
	requestTimeout time.Duration
	logger         *zap.Logger
}

type HandlerOption func(*APIHandler)

// WithRequestTimeout bounds every model-backed request. It must stay below
// the server's WriteTimeout, or the client sees a dropped connection instead
// of the 504 body.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *APIHandler) { h.requestTimeout = d }
}

func NewAPIHandler(answers Answerer, programs ProgramGenerator, logger *zap.Logger, opts ...HandlerOption) *APIHandler {
	h := &APIHandler{
		answers:  answers,
		programs: programs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// requestContext stops the pipeline once the response can no longer be
// written in time.
func (h *APIHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.requestTimeout)
}

type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type AskResponse struct {
	Answer    string         `json:"answer"`
	Documents []rag.Document `json:"documents"`
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	answer, err := h.answers.Answer(ctx, req.Question)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Answer: answer.Text, Documents: answer.Documents})
}

// GenerateDietRequest mirrors core.UserProfile with input limits.
type GenerateDietRequest struct {
	Goal              string           `json:"goal" validate:"max=200"`
	Duration          string           `json:"duration" validate:"max=50"`
	Age               int              `json:"age" validate:"gte=0,lte=150"`
	Weight            core.Measurement `json:"weight"`
	Height            core.Measurement `json:"height"`
	EatingPattern     string           `json:"eatingPattern" validate:"max=500"`
	Allergies         string           `json:"allergies" validate:"max=500"`
	Dislikes          string           `json:"dislikes" validate:"max=500"`
	ExerciseFrequency string           `json:"exerciseFrequency" validate:"max=200"`
	SleepQuality      string           `json:"sleepQuality" validate:"max=200"`
}

func (req GenerateDietRequest) profile() core.UserProfile {
	return core.UserProfile{
		Goal:              req.Goal,
		Duration:          req.Duration,
		Age:               req.Age,
		Weight:            req.Weight,
		Height:            req.Height,
		EatingPattern:     req.EatingPattern,
		Allergies:         req.Allergies,
		Dislikes:          req.Dislikes,
		ExerciseFrequency: req.ExerciseFrequency,
		SleepQuality:      req.SleepQuality,
	}
}

type GenerateDietResponse struct {
	Result string `json:"result"`
}

func (h *APIHandler) GenerateDietHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateDietRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	program, err := h.programs.Generate(ctx, req.profile())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateDietResponse{Result: program.Markdown()})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads and validates a JSON body. It writes the 400 itself and
// reports false when the request must not proceed.
func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("field '%s' failed on '%s'", fe.Field(), fe.Tag())
	}
	return "Invalid request: " + strings.Join(msgs, "; ")
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}

	msg := err.Error()
	switch status {
	case http.StatusGatewayTimeout:
		msg = "Model generation timed out"
	case http.StatusServiceUnavailable:
		msg = "Server is shutting down"
	case http.StatusBadGateway:
		msg = "Model generation failed"
	case http.StatusInternalServerError:
		msg = "Internal server error"
	}
	writeDetail(w, status, msg)
}

func statusFor(err error) int {
	var genErr *llm.GenerationError
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrGenerationTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &genErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
