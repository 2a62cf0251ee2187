package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"eternyx-relay/handler"
	"eternyx-relay/internal/config"
	"eternyx-relay/internal/integrations/gemini"
	"eternyx-relay/internal/integrations/openai"
	"eternyx-relay/internal/integrations/paramstore"
	"eternyx-relay/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// ---- Provider ----
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		slog.Error("failed to create provider client", "provider", cfg.Provider, "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	relay, err := usecase.NewRelayService(provider, cfg.Model)
	if err != nil {
		slog.Error("failed to create relay service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(relay)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(h.HandleAPIGateway)
		return
	}

	if err := serve(cfg.Addr(), handler.NewRouter(h)); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func newProvider(ctx context.Context, cfg config.Config) (usecase.Completer, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return gemini.NewClient(ctx, cfg.GeminiAPIKey,
			gemini.WithBaseURL(cfg.GeminiBaseURL),
			gemini.WithHTTPClient(&http.Client{Timeout: cfg.ProviderTimeout}),
		)
	default:
		keys, err := openAIKeySource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts := []openai.Option{openai.WithTimeout(cfg.ProviderTimeout)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return openai.NewClient(keys, opts...)
	}
}

func openAIKeySource(ctx context.Context, cfg config.Config) (openai.KeySource, error) {
	if cfg.ParamPrefix == "" {
		return openai.StaticKey(cfg.OpenAIAPIKey), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return openai.NewParamStoreKey(ps, cfg.ParamPrefix)
}

func serve(addr string, router http.Handler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("relay stopped")
	return nil
}
