package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type, x-correlation-id"

// HandleAPIGateway serves the relay behind an API Gateway proxy integration.
// Errors are always reported through the response, never the second return.
func (h *Handler) HandleAPIGateway(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := correlationIDOrNew(headerValue(event.Headers, correlationHeader))

	switch {
	case event.HTTPMethod == http.MethodOptions:
		resp := h.apiResponse(id, http.StatusNoContent, nil)
		resp.Headers["Access-Control-Allow-Methods"] = "GET, POST, OPTIONS"
		resp.Headers["Access-Control-Allow-Headers"] = corsAllowHeaders
		return resp, nil
	case event.HTTPMethod == http.MethodGet && strings.HasSuffix(event.Path, "/health"):
		return h.apiResponse(id, http.StatusOK, healthResponse{Status: "ok"}), nil
	case !strings.HasSuffix(event.Path, "/chat"):
		return h.apiResponse(id, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)}), nil
	case event.HTTPMethod != http.MethodPost:
		return h.apiResponse(id, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)}), nil
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return h.apiResponse(id, http.StatusBadRequest, errorResponse{Error: msgInvalidBody}), nil
		}
		body = decoded
	}
	if len(body) > maxBodyBytes {
		return h.apiResponse(id, http.StatusBadRequest, errorResponse{Error: msgInvalidBody}), nil
	}

	status, payload := h.chat(ctx, id, body)
	return h.apiResponse(id, status, payload), nil
}

func (h *Handler) apiResponse(correlationID string, status int, payload any) events.APIGatewayProxyResponse {
	resp := events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Access-Control-Allow-Origin": "*",
			correlationHeader:             correlationID,
		},
	}
	if payload == nil {
		return resp
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode response", "err", err, "correlation_id", correlationID)
		resp.StatusCode = http.StatusInternalServerError
		buf = []byte(`{"error":"internal error"}`)
	}
	resp.Headers["Content-Type"] = "application/json"
	resp.Body = string(buf)
	return resp
}

// headerValue looks up key ignoring case; API Gateway forwards headers as sent.
func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
