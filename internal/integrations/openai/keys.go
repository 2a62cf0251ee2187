package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// KeySource yields the bearer credential for the provider.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a credential taken verbatim from the environment.
type StaticKey string

func (k StaticKey) APIKey(_ context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", errors.New("openai: API token is empty")
	}
	return key, nil
}

// Getter is the interface that wraps GetParameter. *paramstore.Client
// satisfies it.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParamStoreKey reads the credential from an SSM parameter holding
// {"token": "..."}.
type ParamStoreKey struct {
	Getter Getter
	Name   string
}

// NewParamStoreKey derives the parameter name from prefix.
func NewParamStoreKey(g Getter, prefix string) (ParamStoreKey, error) {
	if g == nil {
		return ParamStoreKey{}, errors.New("openai: paramstore getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ParamStoreKey{}, errors.New("openai: parameter prefix must not be empty")
	}
	return ParamStoreKey{Getter: g, Name: prefix + "/open-ai-token"}, nil
}

func (k ParamStoreKey) APIKey(ctx context.Context) (string, error) {
	return fetchAPIKeyFromParamStore(ctx, k.Getter, k.Name)
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
