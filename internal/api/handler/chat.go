package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/service"
)

// ChatAnswerer is the chat capability the handler needs. *service.ChatService satisfies it.
type ChatAnswerer interface {
	Ask(ctx context.Context, ownerID uint, message string, mode domain.QueryMode) (*service.ChatResult, error)
	List(ctx context.Context, ownerID uint) ([]domain.Chat, error)
	Get(ctx context.Context, id, ownerID uint) (*domain.Chat, error)
}

// ChatHandler handles question answering over the caller's documents.
type ChatHandler struct {
	chats ChatAnswerer
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chats ChatAnswerer) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// ChatRequest is the body of POST /api/v1/chats.
type ChatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type chatResponse struct {
	*domain.Chat
	Sources []service.Source `json:"sources"`
}

// Ask handles POST /api/v1/chats.
func (h *ChatHandler) Ask(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	mode, err := domain.ParseQueryMode(req.Mode)
	if err != nil {
		respondError(c, err, "Ask")
		return
	}

	res, err := h.chats.Ask(c.Request.Context(), ownerID, req.Message, mode)
	if err != nil {
		respondError(c, err, "Ask")
		return
	}
	c.JSON(http.StatusOK, chatResponse{Chat: res.Chat, Sources: res.Sources})
}

// List handles GET /api/v1/chats.
func (h *ChatHandler) List(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	chats, err := h.chats.List(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err, "List chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// Get handles GET /api/v1/chats/:id.
func (h *ChatHandler) Get(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	chat, err := h.chats.Get(c.Request.Context(), id, ownerID)
	if err != nil {
		respondError(c, err, "Get chat")
		return
	}
	c.JSON(http.StatusOK, chat)
}
