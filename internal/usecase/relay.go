package usecase

import (
	"context"
	"errors"
	"strings"

	"eternyx-relay/internal/domain"
)

const DefaultModel = "gemini-2.5-flash"

// Completer is the provider-side contract: one prompt in, one completion out.
type Completer interface {
	Complete(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// RelayService forwards a single user message to the provider. It holds no
// per-request state and is safe for concurrent use.
type RelayService struct {
	provider Completer
	model    string
}

type RelayInput struct {
	Message string
}

type RelayOutput struct {
	Response string
}

func NewRelayService(provider Completer, model string) (*RelayService, error) {
	if provider == nil {
		return nil, errors.New("usecase: provider must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &RelayService{provider: provider, model: model}, nil
}

// Model reports the model identifier sent with every prompt.
func (s *RelayService) Model() string {
	return s.model
}

func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	if in.Message == "" {
		return RelayOutput{}, newError(ErrorInvalidInput, ReasonEmptyMessage, nil)
	}

	text, err := s.provider.Complete(ctx, s.model, buildPromptMessages(in.Message))
	if err != nil {
		return RelayOutput{}, newError(ErrorUpstream, ReasonProviderError, err)
	}
	return RelayOutput{Response: text}, nil
}
