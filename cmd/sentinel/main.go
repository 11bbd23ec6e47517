package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sentinel-seed/sentinel/pkg/cache"
	"github.com/sentinel-seed/sentinel/pkg/config"
	"github.com/sentinel-seed/sentinel/pkg/guard"
	"github.com/sentinel-seed/sentinel/pkg/patterns"
	"github.com/sentinel-seed/sentinel/pkg/rules"
	"github.com/sentinel-seed/sentinel/pkg/semantic"
)

const Version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServer()
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: sentinel scan <text>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "version":
		fmt.Printf("sentinel v%s\n", Version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("sentinel v%s - LLM content validation service\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  sentinel serve          Start the HTTP service")
	fmt.Println("  sentinel scan <text>    Validate text on the command line")
	fmt.Println("  sentinel version        Show version")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  SENTINEL_LISTEN_ADDR      HTTP listen address (default :8080)")
	fmt.Println("  SENTINEL_PROFILE          default, high_security, high_usability")
	fmt.Println("  SENTINEL_EXEMPLARS_PATH   YAML exemplar file for semantic similarity")
	fmt.Println("  SENTINEL_JUDGE_ENDPOINT   OpenAI-compatible endpoint for the model judge")
	fmt.Println("  SENTINEL_RULES_PATH       YAML compliance rule file")
	fmt.Println("  SENTINEL_REDIS_ADDR       Redis address for the verdict cache")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func guardConfig(cfg *config.Config) guard.Config {
	var gc guard.Config
	switch cfg.Profile {
	case config.ProfileHighSecurity:
		gc = guard.HighSecurityConfig()
	case config.ProfileHighUsability:
		gc = guard.HighUsabilityConfig()
	default:
		gc = guard.DefaultConfig()
	}

	if cfg.MaxInputLength > 0 {
		gc.MaxInputLength = cfg.MaxInputLength
	}
	if cfg.BlockThreshold > 0 {
		gc.BlockThreshold = cfg.BlockThreshold
	}
	if cfg.MinDetectors > 0 {
		gc.MinDetectors = cfg.MinDetectors
	}
	if cfg.BenignReduction > 0 {
		gc.BenignReduction = cfg.BenignReduction
	}
	if cfg.HistorySize > 0 {
		gc.HistorySize = cfg.HistorySize
	}
	// Only an explicit setting overrides the profile's benign-context choice.
	if _, ok := os.LookupEnv("SENTINEL_BENIGN_CONTEXT"); ok {
		gc.BenignContext = cfg.BenignContext
	}
	return gc
}

func newStore(cfg *config.Config, logger *zap.Logger) cache.Store {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.CacheTTL)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info("verdict cache backed by redis", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedis(client, "sentinel", logger)
}

// buildValidator assembles the validator and its optional adapters. Every
// adapter degrades gracefully: a failed setup logs and is skipped.
func buildValidator(cfg *config.Config, logger *zap.Logger) *guard.Validator {
	var guardOpts []guard.Option
	guardOpts = append(guardOpts, guard.WithLogger(logger))

	if cfg.PatternsPath != "" {
		opts, err := config.LoadCustomPatterns(cfg.PatternsPath)
		if err != nil {
			logger.Warn("custom patterns disabled", zap.Error(err))
		} else if lib, err := patternsLibrary(opts); err != nil {
			logger.Warn("custom patterns disabled", zap.Error(err))
		} else {
			guardOpts = append(guardOpts, guard.WithLibrary(lib))
			logger.Info("custom patterns loaded", zap.String("path", cfg.PatternsPath))
		}
	}

	v := guard.New(guardConfig(cfg), guardOpts...)
	store := newStore(cfg, logger)

	if cfg.EnableSimilarity && cfg.ExemplarsPath != "" {
		if err := wireSimilarity(cfg, v, store, logger); err != nil {
			logger.Warn("semantic similarity disabled", zap.Error(err))
		} else {
			logger.Info("semantic similarity enabled", zap.String("exemplars", cfg.ExemplarsPath))
		}
	}

	if cfg.JudgeEndpoint != "" {
		judgeCfg := semantic.DefaultJudgeConfig()
		judgeCfg.Endpoint = cfg.JudgeEndpoint
		judgeCfg.APIKey = cfg.JudgeAPIKey
		judgeCfg.Model = cfg.JudgeModel
		judgeCfg.Timeout = cfg.JudgeTimeout
		judgeCfg.FailClosed = cfg.JudgeFailClosed
		judge := semantic.NewModelJudge(judgeCfg, store, logger)
		if err := v.Detectors().Register(judge, cfg.JudgeWeight, true); err != nil {
			logger.Warn("model judge disabled", zap.Error(err))
		} else {
			logger.Info("model judge enabled", zap.String("model", cfg.JudgeModel))
		}
	}

	if cfg.RulesPath != "" {
		if err := wireRules(cfg, v, logger); err != nil {
			logger.Warn("compliance rules disabled", zap.Error(err))
		} else {
			logger.Info("compliance rules enabled", zap.String("path", cfg.RulesPath))
		}
	}

	return v
}

func patternsLibrary(opts []patterns.Option) (*patterns.Library, error) {
	return patterns.New(opts...)
}

func wireSimilarity(cfg *config.Config, v *guard.Validator, store cache.Store, logger *zap.Logger) error {
	exemplars, err := config.LoadExemplars(cfg.ExemplarsPath)
	if err != nil {
		return err
	}

	simCfg := semantic.DefaultSimilarityConfig()
	if cfg.SimilarityThreshold > 0 {
		simCfg.Threshold = cfg.SimilarityThreshold
	}
	simCfg.FailClosed = cfg.SimilarityFailClosed
	simCfg.CacheTTL = cfg.CacheTTL

	embed := semantic.NewOllamaEmbedding(cfg.EmbedModel, cfg.EmbedBaseURL)
	sim, err := semantic.NewSimilarityDetector(simCfg, embed, store, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := sim.LoadExemplars(ctx, exemplars); err != nil {
		return err
	}
	return v.Detectors().Register(sim, cfg.SimilarityWeight, true)
}

func wireRules(cfg *config.Config, v *guard.Validator, logger *zap.Logger) error {
	data, err := config.LoadRuleBytes(cfg.RulesPath)
	if err != nil {
		return err
	}
	parsed, err := rules.Parse(data)
	if err != nil {
		return err
	}
	registry := rules.NewRegistry()
	if err := registry.Load(parsed); err != nil {
		return err
	}
	checker := rules.NewChecker(registry)
	if err := v.Checkers().Register(checker, cfg.RulesWeight, true); err != nil {
		return err
	}
	logger.Info("compliance rules loaded", zap.Int("count", len(parsed)))
	return nil
}

func runServer() {
	cfg := config.FromEnv()
	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	v := buildValidator(cfg, logger)
	app := newApp(v, logger)

	logger.Info("sentinel listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("profile", string(cfg.Profile)),
		zap.String("version", Version))
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newApp(v *guard.Validator, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "sentinel",
	})

	// Every request carries an id for log correlation.
	app.Use(func(c fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("X-Request-ID", id)
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			zap.String("id", id),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Duration("elapsed", time.Since(start)))
		return err
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})

	app.Post("/v1/validate/input", func(c fiber.Ctx) error {
		var req struct {
			Text    string   `json:"text"`
			History []string `json:"history"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		return c.JSON(v.ValidateInput(c.Context(), req.Text, req.History...))
	})

	app.Post("/v1/validate/output", func(c fiber.Ctx) error {
		var req struct {
			Text  string   `json:"text"`
			Input []string `json:"input"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		return c.JSON(v.ValidateOutput(c.Context(), req.Text, req.Input...))
	})

	app.Post("/v1/scan", func(c fiber.Ctx) error {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Text == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text field is required"})
		}
		matches := v.Scan(req.Text)
		return c.JSON(fiber.Map{"matches": matches, "count": len(matches)})
	})

	app.Post("/v1/gates", func(c fiber.Ctx) error {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Text == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text field is required"})
		}
		return c.JSON(v.EvaluateGates(req.Text))
	})

	app.Get("/v1/stats", func(c fiber.Ctx) error {
		return c.JSON(v.Stats())
	})

	app.Post("/v1/stats/reset", func(c fiber.Ctx) error {
		v.ResetStats()
		return c.JSON(fiber.Map{"status": "reset"})
	})

	app.Get("/v1/history", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"records": v.History()})
	})

	return app
}

func runCLIScan(text string) {
	cfg := config.FromEnv()
	logger := zap.NewNop()
	v := buildValidator(cfg, logger)

	res := v.ValidateInput(context.Background(), text)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	if res.Blocked {
		os.Exit(2)
	}
}
