// Package main provides the lakeguide CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lakeguide/internal/actions"
	"lakeguide/internal/analyzer"
	"lakeguide/internal/backend"
	"lakeguide/internal/config"
	"lakeguide/internal/contextstore"
	"lakeguide/internal/dialogue"
	"lakeguide/internal/engine"
	"lakeguide/internal/lexicon"
	"lakeguide/internal/llm"
	"lakeguide/internal/logging"
)

// Version is stamped at build time.
var Version = "dev"

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lakeguide",
	Short: "lakeguide - conversational nature guide for the Baikal region",
	Long: `lakeguide answers questions about the animals, plants and places of the
Lake Baikal region: descriptions, photos, maps, and nearby infrastructure.

It keeps short-lived conversation context, so elliptical follow-ups like
"and in winter?" resolve against the previous question.

Run without arguments to start the interactive chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lakeguide version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lakeguide %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lakeguide.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired pipeline plus everything that needs closing.
type app struct {
	cfg    *config.Config
	engine *engine.Engine
	store  *contextstore.Client
	lex    *lexicon.Lexicon
	audit  *logging.AuditLog
	closer func()
}

// buildApp wires the full pipeline from configuration. The context store
// ping is fatal here: starting without working context would silently
// cripple every follow-up question. Once running, store errors only
// degrade the dialogue to stateless.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lex, err := lexicon.Open(cfg.Lexicon.Path, cfg.Lexicon.FuzzyThreshold)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	if cfg.Lexicon.Watch && cfg.Lexicon.Path != "" {
		if err := lex.Watch(cfg.Lexicon.Path, logger); err != nil {
			logger.Warn("lexicon hot reload unavailable", zap.Error(err))
		}
	}

	var store contextstore.Store
	switch cfg.Store.Driver {
	case "memory":
		store = contextstore.NewMemoryStore()
	default:
		store, err = contextstore.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			lex.Close()
			return nil, fmt.Errorf("open context store: %w", err)
		}
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		lex.Close()
		return nil, fmt.Errorf("context store unreachable: %w", err)
	}
	storeClient := contextstore.NewClient(store, contextstore.TTLs{
		History:        config.Duration(cfg.Store.HistoryTTL, contextstore.DefaultTTLs().History),
		Disambiguation: config.Duration(cfg.Store.DisambiguationTTL, contextstore.DefaultTTLs().Disambiguation),
		Fallback:       config.Duration(cfg.Store.FallbackTTL, contextstore.DefaultTTLs().Fallback),
	}, logger)

	llmClient, err := llm.NewFromConfig(ctx, cfg.LLM)
	if err != nil {
		store.Close()
		lex.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	var qa *llm.QAClient
	if cfg.QA.Enabled {
		qa = llm.NewQAClient(cfg.QA.BaseURL, config.Duration(cfg.QA.Timeout, 0))
	}

	audit, err := logging.OpenAudit(cfg.Logging.AuditPath)
	if err != nil {
		logger.Warn("audit log unavailable", zap.Error(err))
		audit = nil
	}

	kb := backend.NewClient(backend.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      config.Duration(cfg.Backend.Timeout, 0),
		ProbeTimeout: config.Duration(cfg.Backend.ProbeTimeout, 0),
		PageSize:     cfg.Backend.PageSize,
	})

	an := analyzer.New(llmClient, lex, logger)
	dialog := dialogue.NewManager(storeClient, logger)
	dispatcher := actions.NewDispatcher(kb, storeClient, lex, an, qa, audit, logger)
	eng := engine.New(an, dialog, dispatcher, storeClient, audit, qa != nil, logger)

	return &app{
		cfg:    cfg,
		engine: eng,
		store:  storeClient,
		lex:    lex,
		audit:  audit,
		closer: func() {
			audit.Close()
			store.Close()
			lex.Close()
		},
	}, nil
}
