// Package servecmder provides the serve command for running the chorus API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/api"
	"github.com/choruslabs/chorus/pkg/config"
	"github.com/choruslabs/chorus/pkg/eventstream"
	eskafka "github.com/choruslabs/chorus/pkg/eventstream/kafka"
	"github.com/choruslabs/chorus/pkg/eventstream/nop"
	"github.com/choruslabs/chorus/pkg/fanout"
	"github.com/choruslabs/chorus/pkg/llm/provider"
	"github.com/choruslabs/chorus/pkg/llm/source"
	"github.com/choruslabs/chorus/pkg/logger"
	"github.com/choruslabs/chorus/pkg/storage"
	"github.com/choruslabs/chorus/pkg/storage/inmemory"
	"github.com/choruslabs/chorus/pkg/storage/postgres"
	"github.com/choruslabs/chorus/pkg/storage/sqlite"
	"github.com/choruslabs/chorus/pkg/worker"
)

// Environment variables holding provider credentials. API keys are never
// written to the config file.
const (
	envOpenRouterKey = "OPENROUTER_API_KEY"
	envAnthropicKey  = "ANTHROPIC_API_KEY"
)

// serveFlags defines the flags the serve command registers, keyed by the
// shared flag registry constants so names and viper keys stay consistent.
var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagDriver: {
		Name:        "driver",
		ViperKey:    "storage.driver",
		Description: "Storage driver (sqlite, postgres, inmemory)",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite database file",
	},
	config.FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string",
	},
	config.FlagMaxTokens: {
		Name:        "max-tokens",
		ViperKey:    "chat.max_tokens",
		Description: "Maximum completion tokens per source",
	},
	config.FlagIncrementTimeout: {
		Name:        "increment-timeout",
		ViperKey:    "chat.increment_timeout_seconds",
		Description: "Seconds to wait for each increment before failing a source",
	},
	config.FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Event stream backend for persisted turns (nop, kafka)",
	},
	config.FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
	config.FlagEventsTopic: {
		Name:        "events-topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic persisted turn events are published to",
	},
}

type serveCommander struct {
	listen           string
	driver           string
	sqlitePath       string
	postgresDSN      string
	maxTokens        uint
	incrementTimeout uint
	eventsProvider   string
	eventsBrokers    string
	eventsTopic      string
	debug            bool

	v      *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the chorus API server.

The server fans each chat message out to the configured sources concurrently
and multiplexes their streams onto a single SSE response. Completed turns are
persisted to the configured storage backend.

Provider credentials are read from the environment:
  OPENROUTER_API_KEY   OpenRouter API key
  ANTHROPIC_API_KEY    Anthropic API key

Examples:
  chorus serve
  chorus serve --listen :9000 --driver postgres --postgres postgres://localhost/chorus
  chorus serve --driver inmemory --events-provider kafka --events-brokers localhost:9092`

const serveShortDesc string = "Run the chorus API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, []string{
				config.FlagListen,
				config.FlagDriver,
				config.FlagSQLite,
				config.FlagPostgres,
				config.FlagMaxTokens,
				config.FlagIncrementTimeout,
				config.FlagEventsProvider,
				config.FlagEventsBrokers,
				config.FlagEventsTopic,
			})

			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// debug is a persistent flag on the root command; absent when
			// the serve command runs standalone.
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			cmder.resolve()
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagDriver, &cmder.driver)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddUintFlag(cmd, serveFlags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddUintFlag(cmd, serveFlags, config.FlagIncrementTimeout, &cmder.incrementTimeout)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

// resolve reads the final values from viper, which applies the full
// precedence chain: flag > env > config file > default.
func (c *serveCommander) resolve() {
	c.listen = c.v.GetString("api.listen")
	c.driver = c.v.GetString("storage.driver")
	c.sqlitePath = c.v.GetString("storage.sqlite_path")
	c.postgresDSN = c.v.GetString("storage.postgres_dsn")
	c.maxTokens = c.v.GetUint("chat.max_tokens")
	c.incrementTimeout = c.v.GetUint("chat.increment_timeout_seconds")
	c.eventsProvider = c.v.GetString("events.provider")
	c.eventsBrokers = c.v.GetString("events.brokers")
	c.eventsTopic = c.v.GetString("events.topic")
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	store, err := c.newStore()
	if err != nil {
		return err
	}
	defer store.Close()

	providers := c.newProviders()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: 2,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	aggregator, err := fanout.New(fanout.Config{
		Providers:        providers,
		Store:            store,
		Pool:             pool,
		IncrementTimeout: time.Duration(c.incrementTimeout) * time.Second,
		Logger:           c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating aggregator: %w", err)
	}

	registry := source.DefaultRegistry()

	server := api.NewServer(api.Config{
		ListenAddr: c.listen,
	}, store, registry, aggregator, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

func (c *serveCommander) newStore() (storage.Store, error) {
	switch c.driver {
	case "sqlite":
		store, err := sqlite.NewStore(c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", c.sqlitePath))
		return store, nil

	case "postgres":
		store, err := postgres.NewStore(context.Background(), c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating PostgreSQL store: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return store, nil

	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q (supported: sqlite, postgres, inmemory)", c.driver)
	}
}

// newProviders builds the streaming client for every supported provider type.
// Hosted providers with no API key set still get a client; their requests
// fail per-source at stream time, which surfaces as an error event rather
// than taking the whole turn down.
func (c *serveCommander) newProviders() map[string]provider.Streamer {
	providers := make(map[string]provider.Streamer, 3)

	for _, providerType := range provider.SupportedProviders() {
		cfg := provider.Config{
			MaxTokens: int(c.maxTokens),
		}

		switch providerType {
		case provider.OpenRouter:
			cfg.Target = c.v.GetString("provider.openrouter_target")
			cfg.APIKey = os.Getenv(envOpenRouterKey)
		case provider.Anthropic:
			cfg.Target = c.v.GetString("provider.anthropic_target")
			cfg.APIKey = os.Getenv(envAnthropicKey)
		case provider.Ollama:
			cfg.Target = c.v.GetString("provider.ollama_target")
		}

		client, err := provider.New(providerType, cfg)
		if err != nil {
			// SupportedProviders and New agree on the type set; a failure
			// here is a programming error.
			panic(err)
		}

		providers[providerType] = client
	}

	return providers
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	switch c.eventsProvider {
	case "nop", "":
		return nop.NewPublisher(), nil

	case "kafka":
		if c.eventsBrokers == "" {
			return nil, fmt.Errorf("events.brokers is required for the kafka events provider")
		}

		publisher, err := eskafka.NewPublisher(eskafka.Config{
			Brokers: strings.Split(c.eventsBrokers, ","),
			Topic:   c.eventsTopic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Kafka publisher: %w", err)
		}

		c.logger.Info("publishing turn events to Kafka",
			zap.String("brokers", c.eventsBrokers),
			zap.String("topic", c.eventsTopic),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown events provider: %q (supported: nop, kafka)", c.eventsProvider)
	}
}
