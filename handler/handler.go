package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"chat-widget/internal/domain"
	"chat-widget/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// SessionUseCase is the stateless chat API served through API Gateway.
type SessionUseCase interface {
	Start(ctx context.Context) (usecase.StartOutput, error)
	Submit(ctx context.Context, in usecase.SubmitInput) (usecase.SubmitOutput, error)
}

type Handler struct {
	uc     SessionUseCase
	logger *slog.Logger
}

type turnRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type sessionResponse struct {
	SessionID string        `json:"sessionId"`
	Turns     []domain.Turn `json:"turns"`
}

type turnResponse struct {
	SessionID   string        `json:"sessionId"`
	DisplayName string        `json:"displayName,omitempty"`
	Turns       []domain.Turn `json:"turns"`
	Failure     string        `json:"failure,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc SessionUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

// Handle routes an API Gateway proxy request. Use-case errors become JSON
// error bodies; the returned error is always nil so API Gateway never sees
// a Lambda failure for a client mistake.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)
	logger := h.logger.With("correlation_id", corrID, "path", event.Path)

	if event.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusNotFound, corrID, errorResponse{Error: "NOT_FOUND", Reason: "unknown_route"}), nil
	}

	switch strings.TrimSuffix(event.Path, "/") {
	case "/session":
		out, err := h.uc.Start(ctx)
		if err != nil {
			return h.errorResponse(logger, corrID, err), nil
		}
		logger.Info("session started", "session_id", out.SessionID)
		return jsonResponse(http.StatusOK, corrID, sessionResponse{SessionID: out.SessionID, Turns: nonNil(out.Turns)}), nil

	case "/turn":
		var req turnRequest
		if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
			logger.Warn("invalid request body", "err", err)
			return jsonResponse(http.StatusBadRequest, corrID, errorResponse{
				Error:  string(usecase.ErrorInvalidInput),
				Reason: "invalid_json",
			}), nil
		}
		out, err := h.uc.Submit(ctx, usecase.SubmitInput{SessionID: req.SessionID, Text: req.Text})
		if err != nil {
			return h.errorResponse(logger, corrID, err), nil
		}
		logger.Info("turn completed",
			"session_id", out.SessionID,
			"appended", len(out.Turns),
			"failure", string(out.Failure),
		)
		return jsonResponse(http.StatusOK, corrID, turnResponse{
			SessionID:   out.SessionID,
			DisplayName: out.DisplayName,
			Turns:       nonNil(out.Turns),
			Failure:     string(out.Failure),
		}), nil
	}

	return jsonResponse(http.StatusNotFound, corrID, errorResponse{Error: "NOT_FOUND", Reason: "unknown_route"}), nil
}

func (h *Handler) errorResponse(logger *slog.Logger, corrID string, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: string(usecase.ErrorInternal)})
	}

	status := statusFor(ucErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	} else {
		logger.Warn("request rejected", "code", ucErr.Code, "reason", ucErr.Reason)
	}
	return jsonResponse(status, corrID, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorSessionNotFound:
		return http.StatusNotFound
	case usecase.ErrorBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}

// correlationID returns the caller's X-Correlation-Id (any header casing)
// or a fresh one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func nonNil(turns []domain.Turn) []domain.Turn {
	if turns == nil {
		return []domain.Turn{}
	}
	return turns
}
