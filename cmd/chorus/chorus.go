// Package choruscmder provides the root chorus cobra command and wires up
// all subcommands and global flags.
package choruscmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/choruslabs/chorus/cmd/chorus/chat"
	configcmder "github.com/choruslabs/chorus/cmd/chorus/config"
	modelscmder "github.com/choruslabs/chorus/cmd/chorus/models"
	servecmder "github.com/choruslabs/chorus/cmd/chorus/serve"
	versioncmder "github.com/choruslabs/chorus/cmd/chorus/version"
)

const chorusLongDesc string = `Chorus fans one prompt out to many models at once.

Run the server using:
  chorus serve         Run the chat API server

Talk to a running server using:
  chorus chat          Interactive multi-model chat
  chorus models        List the configured sources

Manage configuration using:
  chorus config        Get, set, and list config values`

const chorusShortDesc string = "Chorus - one prompt, many models"

func NewChorusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chorus",
		Short: chorusShortDesc,
		Long:  chorusLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chorus/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
