package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/waffles-copilot/server/internal/api"
	"github.com/waffles-copilot/server/internal/copilot/agent"
	"github.com/waffles-copilot/server/internal/copilot/capability"
	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/registry"
	"github.com/waffles-copilot/server/internal/copilot/responder"
	"github.com/waffles-copilot/server/internal/copilot/service"
	"github.com/waffles-copilot/server/internal/copilot/session"
	"github.com/waffles-copilot/server/internal/copilot/tabular"
	"github.com/waffles-copilot/server/internal/core"
	"github.com/waffles-copilot/server/internal/integration"
	"github.com/waffles-copilot/server/internal/knowledge"
	logx "github.com/waffles-copilot/server/pkg/logger"
	pkgredis "github.com/waffles-copilot/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the server, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Copilot configs
	Router    model.RouterModelConfig
	Response  model.ResponseModelConfig
	Assistant model.AssistantConfig
	Storage   model.StorageConfig
	Session   model.SessionConfig
	Limiter   model.LimiterConfig
	Tabular   model.TabularConfig
	Knowledge model.KnowledgeConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	models, err := capability.NewChatModels(ctx, capability.ChatModelConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		RouterConfig: &cfg.Router,
		RespConfig:   &cfg.Response,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise chat models")
	}
	routerModel := capability.NewRateLimitedModel(models.Router, cfg.Limiter)
	responseModel := capability.NewRateLimitedModel(models.Response, cfg.Limiter)

	// Redis is optional: without it sessions are in-memory and answers are
	// not knowledge-grounded.
	var sessionStore session.Store = session.NewMemoryStore()
	var provider knowledge.ContextProvider = knowledge.None{}
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise Redis client")
		}
		defer rdb.Close()

		provider = knowledge.NewRedisDocumentStore(rdb, cfg.Knowledge)
		if cfg.Session.Backend == "redis" {
			ttl, err := time.ParseDuration(cfg.Session.TTL)
			if err != nil {
				logx.Fatal().Err(err).Str("ttl", cfg.Session.TTL).Msg("invalid SESSION_TTL")
			}
			sessionStore = session.NewRedisStore(rdb, ttl)
		}
	} else if cfg.Session.Backend == "redis" {
		logx.Warn().Msg("SESSION_BACKEND=redis but no Redis URL configured, using memory store")
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logx.Fatal().Err(err).Str("dir", cfg.Storage.DataDir).Msg("failed to create data dir")
	}
	actionReg := registry.NewActionRegistry(filepath.Join(cfg.Storage.DataDir, cfg.Storage.ActionsFile))
	datasetReg := registry.NewDatasetRegistry(filepath.Join(cfg.Storage.DataDir, cfg.Storage.DatasetsFile), cfg.Storage.UploadDir)

	rsp := responder.New(routerModel, responseModel, provider, cfg.Assistant)
	engine := tabular.NewCSVEngine(responseModel, cfg.Tabular)
	dbAgent := agent.NewDBAgent(routerModel, rsp, datasetReg, engine)
	actionAgent := agent.NewActionAgent(routerModel, rsp, actionReg, dbAgent)

	executors := map[string]integration.Executor{
		service.ServiceJira:   integration.NewBreakerExecutor(service.ServiceJira, integration.NewIssueTracker()),
		service.ServiceGmail:  integration.NewBreakerExecutor(service.ServiceGmail, integration.NewEmailSender()),
		service.ServiceCustom: integration.NewBreakerExecutor(service.ServiceCustom, integration.NewWebhook()),
	}

	handlers := api.NewHandlers(
		service.NewConversationService(sessionStore, rsp, actionAgent),
		service.NewCopilotService(actionAgent),
		service.NewActionService(actionReg, routerModel, filepath.Join(cfg.Storage.DataDir, "action_items.json"), executors),
		service.NewDatasetService(datasetReg, cfg.Storage.UploadDir),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", srv.Addr).Str("router_model", models.RouterModelName).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
	logx.Info().Msg("server stopped")
}
