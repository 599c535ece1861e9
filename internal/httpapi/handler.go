package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"bnrag/internal/domain"
	"bnrag/internal/eval"
	"bnrag/internal/service"
)

// Service is what the HTTP layer needs from the knowledge base.
type Service interface {
	Query(ctx context.Context, sessionID, question string) (string, domain.QueryResult, error)
	Clear(sessionID string) bool
	EndSession(sessionID string)
	Health(ctx context.Context) service.Health
}

// Handler serves health, query, conversation reset and evaluation endpoints.
type Handler struct {
	svc     Service
	cases   []eval.Case
	timeout time.Duration
}

// NewHandler creates a handler. cases drive GET /test; timeout bounds a single query.
func NewHandler(svc Service, cases []eval.Case, timeout time.Duration) *Handler {
	if len(cases) == 0 {
		cases = eval.DefaultCases()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Handler{svc: svc, cases: cases, timeout: timeout}
}

// NewApp builds the fiber app with recover and request logging middleware.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "bnrag",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: h.timeout + 10*time.Second,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	h.Register(app)
	return app
}

// Register sets up the routes.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Post("/query", h.Query)
	router.Post("/clear-conversation", h.Clear)
	router.Get("/test", h.Test)
}

func (h *Handler) Health(c fiber.Ctx) error {
	health := h.svc.Health(c.Context())
	if !health.Ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":          "initializing",
			"message":         "knowledge base is not ready",
			"documents_count": health.DocumentsCount,
		})
	}
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"message":         "Bengali RAG system is running",
		"documents_count": health.DocumentsCount,
	})
}

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	domain.QueryResult
	SessionID string `json:"session_id"`
}

func (h *Handler) Query(c fiber.Ctx) error {
	var body queryRequest
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question cannot be empty"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()
	id, res, err := h.svc.Query(ctx, body.SessionID, body.Question)
	if err != nil {
		return h.fail(c, "query", err)
	}
	return c.JSON(queryResponse{QueryResult: res, SessionID: id})
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) Clear(c fiber.Ctx) error {
	var body clearRequest
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_id is required"})
	}
	if !h.svc.Clear(body.SessionID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	return c.JSON(fiber.Map{"message": "Conversation history cleared successfully"})
}

func (h *Handler) Test(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout*time.Duration(len(h.cases)))
	defer cancel()
	rep, err := eval.Run(ctx, h.svc, h.cases)
	if err != nil {
		return h.fail(c, "evaluation", err)
	}
	return c.JSON(rep)
}

func (h *Handler) fail(c fiber.Ctx, what string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotReady):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyQuestion):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": what + " timed out"})
	}
	slog.Error(what+" failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to process " + what})
}
