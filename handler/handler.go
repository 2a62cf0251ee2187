package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"eternyx-relay/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 1 << 20

	msgNoMessage   = "No message provided"
	msgInvalidBody = "Invalid JSON body"
)

// Relayer is the use case behind POST /chat.
type Relayer interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

type Handler struct {
	relay  Relayer
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(r Relayer, opts ...Option) (*Handler, error) {
	if r == nil {
		return nil, errors.New("handler: relayer must not be nil")
	}
	h := &Handler{relay: r, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// chatRequest keeps message raw so falsy JSON values can be told apart from
// values of the wrong type.
type chatRequest struct {
	Message json.RawMessage `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// chat runs one relay call and returns the status code and JSON payload to
// send back. It never returns an error: every failure becomes a response.
func (h *Handler) chat(ctx context.Context, correlationID string, body []byte) (int, any) {
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, errorResponse{Error: msgInvalidBody}
	}
	message, err := messageText(req.Message)
	if err != nil {
		return http.StatusBadRequest, errorResponse{Error: msgInvalidBody}
	}

	out, err := h.relay.Relay(ctx, usecase.RelayInput{Message: message})
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "error calling provider", "err", err, "correlation_id", correlationID)
		}
		return status, errorResponse{Error: msg}
	}
	return http.StatusOK, chatResponse{Response: out.Response}
}

// messageText extracts the message string. Absent and falsy values (null,
// false, 0, "", [] and {}) yield "" so they are reported as a missing message;
// any other non-string value is an error.
func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch m := v.(type) {
	case nil:
		return "", nil
	case string:
		return m, nil
	case bool:
		if !m {
			return "", nil
		}
	case float64:
		if m == 0 {
			return "", nil
		}
	case []any:
		if len(m) == 0 {
			return "", nil
		}
	case map[string]any:
		if len(m) == 0 {
			return "", nil
		}
	}
	return "", errors.New("handler: message must be a string")
}

// errorStatus maps a relay failure to its HTTP status and the text shown to
// the caller. Provider failures are passed through verbatim.
func errorStatus(err error) (int, string) {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		switch ue.Code {
		case usecase.ErrorInvalidInput:
			return http.StatusBadRequest, msgNoMessage
		case usecase.ErrorUpstream:
			if ue.Err != nil {
				return http.StatusInternalServerError, ue.Err.Error()
			}
		}
	}
	return http.StatusInternalServerError, err.Error()
}

func correlationIDOrNew(id string) string {
	if id != "" {
		return id
	}
	return newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}
