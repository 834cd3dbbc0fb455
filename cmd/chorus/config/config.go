// Package configcmder provides the config command for managing persistent
// chorus configuration stored in the .chorus/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent chorus configuration.

Configuration is stored as config.toml in the .chorus/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  api.listen, client.api_target,
  chat.max_tokens, chat.increment_timeout_seconds,
  provider.openrouter_target, provider.anthropic_target, provider.ollama_target,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  chorus config set <key> <value>    Set a configuration value
  chorus config get <key>            Get a configuration value
  chorus config list                 List all configuration values

Examples:
  chorus config set storage.driver postgres
  chorus config set api.listen :9000
  chorus config get client.api_target
  chorus config list`

const configShortDesc string = "Manage persistent chorus configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
