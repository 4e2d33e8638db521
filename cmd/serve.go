package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/ai/gemini"
	"github.com/rankworks/cv-ranker/internal/logger"
	"github.com/rankworks/cv-ranker/internal/matching"
	"github.com/rankworks/cv-ranker/internal/secrets"
	"github.com/rankworks/cv-ranker/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cv-ranker HTTP service",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer func() { _ = zlog.Sync() }()

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	zlog.Info("starting the cv-ranker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	zlog.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	generator, err := newGenerator(ctx, config.AI, zlog)
	if err != nil {
		zlog.Fatal("creating the gemini provider", zap.Error(err))
	}

	maxLogLen := 0
	if config.AI != nil && config.AI.Gemini != nil {
		maxLogLen = config.AI.Gemini.MaxLogLength
	}

	scorer := gemini.NewScorer(generator, zlog, maxLogLen)
	extractor := gemini.NewExtractor(generator, zlog, maxLogLen)

	ranker := matching.NewRanker(generator, scorer, zlog, rankerConfig(config))

	serverCfg := &server.Config{}
	if config.Server != nil {
		serverCfg.Address = config.Server.Address
	}
	if config.AI != nil && config.AI.Gemini != nil {
		serverCfg.ExtractTimeout = config.AI.Gemini.RequestTimeout
	}

	srv, err := server.New(ranker, extractor, zlog, serverCfg)
	if err != nil {
		zlog.Fatal("creating the http server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zlog.Info("shutting down", zap.String("reason", "signal received"))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Fatal("shutdown failed", zap.Error(err))
		}
	}
}

func rankerConfig(config *Config) matching.Config {
	cfg := matching.Config{}
	if config.Matching != nil {
		cfg.TopK = config.Matching.TopK
		cfg.MinJobTextLength = config.Matching.MinJobTextLength
	}
	if config.AI != nil && config.AI.Gemini != nil {
		cfg.ScoreTimeout = config.AI.Gemini.RequestTimeout
		cfg.EmbedTimeout = config.AI.Gemini.RequestTimeout
	}
	return cfg
}

func newGenerator(ctx context.Context, cfg *AIConfig, zlog *zap.Logger) (*gemini.Generator, error) {
	if cfg == nil {
		cfg = &AIConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	geminiCfg := cfg.Gemini
	if geminiCfg == nil {
		geminiCfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: geminiCfg.APIKey,
		File:  geminiCfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithCommonFields(zlog, "gemini", geminiCfg.Model)

	return gemini.NewGenerator(ctx, gemini.Config{
		APIKey:         apiKey,
		Model:          geminiCfg.Model,
		EmbeddingModel: geminiCfg.EmbeddingModel,
		MaxRetries:     geminiCfg.MaxRetries,
	}, genLogger)
}
