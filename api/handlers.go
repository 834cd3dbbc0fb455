package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/chat"
	"github.com/choruslabs/chorus/pkg/llm"
	"github.com/choruslabs/chorus/pkg/storage"
)

const defaultChatTitle = "New chat"

// ModelInfo describes one source in the models listing.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ChatDetail is a chat with its reassembled turns.
type ChatDetail struct {
	Chat  *storage.Chat `json:"chat"`
	Turns []TurnDetail  `json:"turns"`
}

// TurnDetail is one turn in a chat detail response.
type TurnDetail struct {
	ID        string           `json:"id"`
	UserText  string           `json:"user_text"`
	Responses []ResponseDetail `json:"responses"`
}

// ResponseDetail is one source's persisted answer within a turn.
type ResponseDetail struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListModels returns the configured source registry.
func (s *Server) handleListModels(c *fiber.Ctx) error {
	sources := s.registry.All()

	models := make([]ModelInfo, len(sources))
	for i, src := range sources {
		models[i] = ModelInfo{
			ID:       src.ID,
			Name:     src.Name,
			Provider: src.Provider,
			Model:    src.ModelName(),
		}
	}

	return c.JSON(map[string]any{
		"count":  len(models),
		"models": models,
	})
}

func (s *Server) handleListChats(c *fiber.Ctx) error {
	chats, err := s.store.ListChats(c.Context())
	if err != nil {
		s.logger.Error("failed to list chats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list chats"})
	}

	return c.JSON(map[string]any{
		"count": len(chats),
		"chats": chats,
	})
}

func (s *Server) handleCreateChat(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultChatTitle
	}

	created, err := s.store.CreateChat(c.Context(), title)
	if err != nil {
		s.logger.Error("failed to create chat", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to create chat"})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) handleGetChat(c *fiber.Ctx) error {
	id := c.Params("id")

	chatRecord, err := s.store.GetChat(c.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "chat not found"})
	}
	if err != nil {
		s.logger.Error("failed to get chat", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get chat"})
	}

	turns, err := s.store.ListTurns(c.Context(), id)
	if err != nil {
		s.logger.Error("failed to list turns", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list turns"})
	}

	return c.JSON(ChatDetail{
		Chat:  chatRecord,
		Turns: turnDetails(turns),
	})
}

func (s *Server) handleDeleteChat(c *fiber.Ctx) error {
	id := c.Params("id")

	err := s.store.DeleteChat(c.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "chat not found"})
	}
	if err != nil {
		s.logger.Error("failed to delete chat", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to delete chat"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func turnDetails(turns []*chat.Turn) []TurnDetail {
	out := make([]TurnDetail, len(turns))
	for i, t := range turns {
		detail := TurnDetail{
			ID:        t.ID,
			UserText:  t.UserText,
			Responses: []ResponseDetail{},
		}
		for _, id := range t.SourceIDs() {
			detail.Responses = append(detail.Responses, ResponseDetail{
				Source: id,
				Text:   t.Response(id).Text,
			})
		}
		out[i] = detail
	}
	return out
}
