// Package modelscmder provides the models command for listing the sources
// configured on a running chorus server.
package modelscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/choruslabs/chorus/pkg/cliui"
	"github.com/choruslabs/chorus/pkg/config"
)

type modelsCommander struct {
	apiTarget string
}

// modelsResponse mirrors the server's model list payload.
type modelsResponse struct {
	Count  int `json:"count"`
	Models []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Provider string `json:"provider"`
		Model    string `json:"model"`
	} `json:"models"`
}

const modelsLongDesc string = `List the sources configured on a running chorus server.

Each source is a provider and model pair that chat messages fan out to.
Source IDs are what --sources on "chorus chat" accepts.

Examples:
  chorus models
  chorus models --api-target http://localhost:9000`

const modelsShortDesc string = "List the configured sources"

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Chorus API server URL")

	return cmd
}

func (c *modelsCommander) run() error {
	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(c.apiTarget + "/api/models")
	if err != nil {
		return fmt.Errorf("fetching models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return fmt.Errorf("decoding models: %w", err)
	}

	fmt.Printf("\n  %s %d\n\n", cliui.KeyStyle.Render("Sources:"), models.Count)

	for i, m := range models.Models {
		fmt.Printf("  %s\n", cliui.SourceLabel(i, m.Name))
		fmt.Printf("    %s %s\n", cliui.KeyStyle.Render("id:"), cliui.ValueStyle.Render(m.ID))
		fmt.Printf("    %s %s\n\n", cliui.KeyStyle.Render("provider:"), cliui.ValueStyle.Render(m.Provider))
	}

	return nil
}
