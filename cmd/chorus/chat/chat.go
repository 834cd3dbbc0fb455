// Package chatcmder provides the chat command for interactive multi-model
// chat against a running chorus server.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/cliui"
	"github.com/choruslabs/chorus/pkg/config"
	"github.com/choruslabs/chorus/pkg/dotdir"
	"github.com/choruslabs/chorus/pkg/fanout"
	"github.com/choruslabs/chorus/pkg/logger"
	"github.com/choruslabs/chorus/pkg/sse"
	"github.com/choruslabs/chorus/pkg/storage"
)

var userPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")

type chatCommander struct {
	apiTarget string
	sourceIDs []string
	noSave    bool
	fresh     bool
	markdown  bool
	configDir string
	debug     bool

	logger *zap.Logger
	client *http.Client
}

const chatLongDesc string = `Start an interactive multi-model chat session.

Each message is fanned out to every configured source concurrently and the
responses stream back live, labeled by source. The server persists completed
turns, so re-running "chorus chat" resumes the previous session.

Use --sources to fan out to a subset of the configured sources,
--no-save for an ephemeral session that is never persisted,
and --new to abandon the previous session and start a fresh chat.

Examples:
  chorus chat
  chorus chat --sources openai/gpt-oss-20b:free,qwen/qwen3-coder:free
  chorus chat --no-save
  chorus chat --new --markdown`

const chatShortDesc string = "Interactive multi-model chat"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfger, err := config.NewConfiger(cmder.configDir)
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
		RunE: func(cmd *cobra.Command, _ []string) error {
			// debug is a persistent flag on the root command; absent when
			// the chat command runs standalone.
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Chorus API server URL")
	cmd.Flags().StringSliceVar(&cmder.sourceIDs, "sources", nil, "Comma-separated source IDs to fan out to (default: all)")
	cmd.Flags().BoolVar(&cmder.noSave, "no-save", false, "Ephemeral session: stream without persisting turns")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a fresh chat instead of resuming the previous session")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Re-render each completed response as markdown")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	c.client = &http.Client{
		// LLM responses can be slow
		Timeout: 5 * time.Minute,
	}

	chatID, err := c.resolveChat()
	if err != nil {
		return err
	}

	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.sendAndStream(chatID, input); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// resolveChat returns the chat ID to send turns against. Persistent sessions
// resume the chat recorded in .chorus/session.json, creating a new chat on
// the server when there is none. Ephemeral sessions return an empty ID.
func (c *chatCommander) resolveChat() (string, error) {
	fmt.Println()
	if c.noSave {
		fmt.Printf("  %s\n", cliui.DimStyle.Render("● Ephemeral session (turns are not saved)"))
		return "", nil
	}

	ddm := dotdir.NewManager()

	if c.fresh {
		if err := ddm.ClearSessionState(c.configDir); err != nil {
			return "", fmt.Errorf("clearing session state: %w", err)
		}
	}

	session, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading session state: %w", err)
	}

	if session != nil {
		fmt.Printf("  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(session.Title),
			cliui.DimStyle.Render(session.ChatID),
		)
		return session.ChatID, nil
	}

	created, err := c.createChat()
	if err != nil {
		return "", err
	}

	if err := ddm.SaveSessionState(c.configDir, &dotdir.SessionState{
		ChatID: created.ID,
		Title:  created.Title,
	}); err != nil {
		return "", fmt.Errorf("saving session state: %w", err)
	}

	fmt.Printf("  %s New chat %s\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(created.ID),
	)
	return created.ID, nil
}

// createChat creates a new chat on the server.
func (c *chatCommander) createChat() (*storage.Chat, error) {
	body, err := json.Marshal(map[string]string{})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.client.Post(c.apiTarget+"/api/chats", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var created storage.Chat
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding chat: %w", err)
	}

	return &created, nil
}

// streamRequest mirrors the server's chat request payload.
type streamRequest struct {
	ChatID    string   `json:"chat_id,omitempty"`
	Message   string   `json:"message"`
	SourceIDs []string `json:"source_ids,omitempty"`
}

// sendAndStream sends one turn to the server and renders the multiplexed
// SSE stream, labeling output by source.
func (c *chatCommander) sendAndStream(chatID, message string) error {
	body, err := json.Marshal(streamRequest{
		ChatID:    chatID,
		Message:   message,
		SourceIDs: c.sourceIDs,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		zap.String("api_target", c.apiTarget),
		zap.String("chat_id", chatID),
		zap.Strings("sources", c.sourceIDs),
	)

	url := c.apiTarget + "/api/chat/stream"
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return c.renderStream(resp.Body)
}

// renderStream reads SSE events from the response body and prints chunks
// live. Chunks from different sources interleave; a labeled header is
// printed whenever the active source changes.
func (c *chatCommander) renderStream(body io.Reader) error {
	reader := sse.NewReader(body)

	// labels maps source ID to its colored display label, assigned in
	// start-event order so colors are stable for the whole turn.
	labels := make(map[string]string)
	completed := make(map[string]string)
	var order []string
	lastSource := ""

	for {
		ev, err := reader.Next()
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return nil
		}

		switch ev.Type {
		case fanout.TypeStart:
			var start fanout.StartEvent
			if err := json.Unmarshal([]byte(ev.Data), &start); err != nil {
				c.logger.Debug("failed to parse start event", zap.Error(err))
				continue
			}
			for i, src := range start.Sources {
				labels[src.ID] = cliui.SourceLabel(i, src.Name)
				order = append(order, src.ID)
			}

		case fanout.TypeChunk:
			var chunk fanout.ChunkEvent
			if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
				c.logger.Debug("failed to parse chunk event", zap.Error(err))
				continue
			}
			if chunk.Source != lastSource {
				fmt.Printf("\n\n%s\n", labels[chunk.Source])
				lastSource = chunk.Source
			}
			fmt.Print(chunk.Increment)

		case fanout.TypeComplete:
			var complete fanout.CompleteEvent
			if err := json.Unmarshal([]byte(ev.Data), &complete); err != nil {
				c.logger.Debug("failed to parse complete event", zap.Error(err))
				continue
			}
			completed[complete.Source] = complete.Text

		case fanout.TypeError:
			var failure fanout.ErrorEvent
			if err := json.Unmarshal([]byte(ev.Data), &failure); err != nil {
				c.logger.Debug("failed to parse error event", zap.Error(err))
				continue
			}
			label := labels[failure.Source]
			if failure.Source == "" {
				label = cliui.ErrorStyle.Render("turn")
			}
			fmt.Printf("\n\n%s %s %s\n", label, cliui.FailMark, cliui.ErrorStyle.Render(failure.Message))
			lastSource = ""

		case fanout.TypeEnd:
			fmt.Println()
			if c.markdown {
				c.renderMarkdownPanels(order, labels, completed)
			}
			return nil
		}
	}
}

// renderMarkdownPanels re-renders each completed response as markdown,
// one panel per source in start-event order.
func (c *chatCommander) renderMarkdownPanels(order []string, labels, completed map[string]string) {
	for _, id := range order {
		text, ok := completed[id]
		if !ok || text == "" {
			continue
		}

		rendered, err := cliui.RenderMarkdown(text)
		if err != nil {
			c.logger.Debug("markdown rendering failed", zap.Error(err), zap.String("source", id))
			rendered = text
		}

		fmt.Printf("\n%s\n%s", labels[id], rendered)
	}
}
