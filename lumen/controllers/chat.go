// lumen/controllers/chat.go
package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lumen/lumen/apperrors"
	"lumen/lumen/chatsync"
	"lumen/lumen/services/llm"
	"lumen/lumen/sources/psql/dao"
	"lumen/lumen/sources/psql/models"
	"lumen/lumen/types"
	"lumen/lumen/utils/jsonutils"
	"lumen/lumen/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const provisionalTitle = "New chat"

// BlobStore is the attachment cleanup hook. Cleanup is best-effort: the
// database row is the record of truth.
type BlobStore interface {
	RemoveChatObjects(ctx context.Context, chatID uuid.UUID) error
}

type ChatController struct {
	chats *dao.ChatDAO
	llm   llm.Client
	model string
	blobs BlobStore
}

func NewChatController(chats *dao.ChatDAO, client llm.Client, model string, blobs BlobStore) *ChatController {
	return &ChatController{chats: chats, llm: client, model: model, blobs: blobs}
}

// authorizeChat is the single ownership gate. Every entry point that
// receives a chat id goes through it, even when an earlier step in the
// same call chain already validated the chat.
func (c *ChatController) authorizeChat(ctx context.Context, userID int, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := c.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, apperrors.New(apperrors.NotFound, apperrors.DomainChat, "chat not found")
	}
	if chat.UserID != userID {
		return nil, apperrors.New(apperrors.Forbidden, apperrors.DomainChat, "not your chat")
	}
	return chat, nil
}

func (c *ChatController) ListChats(ctx context.Context, userID int) ([]models.Chat, error) {
	return c.chats.ListChatsByUser(ctx, userID)
}

func (c *ChatController) CreateChat(ctx context.Context, userID int, req types.CreateChatRequest) (*models.Chat, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.New(apperrors.BadRequest, apperrors.DomainChat, "title must not be empty")
	}
	id := uuid.Nil
	if req.ID != nil {
		id = *req.ID
	}
	return c.chats.CreateChat(ctx, userID, title, id)
}

// GetChat returns the chat with its messages. Non-owners may read a chat
// only when it has been made public.
func (c *ChatController) GetChat(ctx context.Context, userID int, chatID uuid.UUID) (*types.ChatDetailResponse, error) {
	chat, err := c.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, apperrors.New(apperrors.NotFound, apperrors.DomainChat, "chat not found")
	}
	if chat.UserID != userID && chat.Visibility != models.VisibilityPublic {
		return nil, apperrors.New(apperrors.Forbidden, apperrors.DomainChat, "not your chat")
	}
	messages, err := c.chats.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return &types.ChatDetailResponse{Chat: chat, Messages: messages}, nil
}

func (c *ChatController) RenameChat(ctx context.Context, userID int, chatID uuid.UUID, title string) (*models.Chat, error) {
	if _, err := c.authorizeChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.BadRequest, apperrors.DomainChat, "title must not be empty")
	}
	return c.chats.UpdateTitle(ctx, chatID, title)
}

// TogglePin requires an explicit boolean. A nil pointer means the field
// was missing or not a JSON boolean, and that is a bad request rather
// than a default.
func (c *ChatController) TogglePin(ctx context.Context, userID int, chatID uuid.UUID, pinned *bool) (*models.Chat, error) {
	if _, err := c.authorizeChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	if pinned == nil {
		return nil, apperrors.New(apperrors.BadRequest, apperrors.DomainChat, "pinned must be a boolean")
	}
	return c.chats.SetPinned(ctx, chatID, *pinned)
}

// MakePublic is idempotent: sharing an already-public chat succeeds and
// leaves it public.
func (c *ChatController) MakePublic(ctx context.Context, userID int, chatID uuid.UUID) (*models.Chat, error) {
	if _, err := c.authorizeChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return c.chats.SetVisibility(ctx, chatID, models.VisibilityPublic)
}

func (c *ChatController) DeleteChat(ctx context.Context, userID int, chatID uuid.UUID) error {
	if _, err := c.authorizeChat(ctx, userID, chatID); err != nil {
		return err
	}
	if err := c.chats.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	if c.blobs != nil {
		if err := c.blobs.RemoveChatObjects(ctx, chatID); err != nil {
			logging.ErrorLogger.Error("attachment cleanup failed",
				zap.String("chat_id", chatID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// DeleteMessagesAfter removes the identified message and everything after
// it in the chat's order. Edit and regenerate flows call this before any
// new content is appended.
func (c *ChatController) DeleteMessagesAfter(ctx context.Context, userID int, chatID, messageID uuid.UUID) error {
	if _, err := c.authorizeChat(ctx, userID, chatID); err != nil {
		return err
	}
	err := c.chats.DeleteMessagesFrom(ctx, chatID, messageID)
	if err == gorm.ErrRecordNotFound {
		return apperrors.New(apperrors.NotFound, apperrors.DomainChat, "message not found")
	}
	return err
}

// PostMessage saves the user's message, invokes the model over the full
// history, and saves the assistant reply once it has non-empty text. The
// user message is durable before the model call begins.
func (c *ChatController) PostMessage(ctx context.Context, userID int, chatID uuid.UUID, req types.PostMessageRequest) (*types.ChatDetailResponse, error) {
	chat, err := c.authorizeChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if err := req.Parts.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.BadRequest, apperrors.DomainChat, err.Error())
	}
	customID := uuid.Nil
	if req.ID != nil {
		customID = *req.ID
	}
	if _, err := c.chats.SaveMessage(ctx, chatID, models.RoleUser, req.Parts, customID); err != nil {
		return nil, err
	}

	history, err := c.chats.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	reply, err := c.llm.Run(ctx, llm.ChatRequest{
		Model:    c.model,
		Messages: toLLMMessages(history),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, apperrors.DomainChat, "model invocation failed")
	}
	if strings.TrimSpace(reply) != "" {
		if _, err := c.chats.SaveMessage(ctx, chatID, models.RoleAssistant,
			models.PartList{models.TextPart(reply)}, uuid.Nil); err != nil {
			return nil, err
		}
	}

	if chat.Title == provisionalTitle && len(history) == 1 {
		c.generateTitle(ctx, chatID, history[0].TextContent())
	}

	return c.GetChat(ctx, userID, chatID)
}

// RegenerateFrom re-runs the model from just before messageID. The
// trailing delete is durable before anything else happens; trimming local
// state first risks a concurrent read repopulating stale messages.
func (c *ChatController) RegenerateFrom(ctx context.Context, userID int, chatID, messageID uuid.UUID) (*types.ChatDetailResponse, error) {
	if err := c.DeleteMessagesAfter(ctx, userID, chatID, messageID); err != nil {
		return nil, err
	}

	history, err := c.chats.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, apperrors.New(apperrors.BadRequest, apperrors.DomainChat, "nothing to regenerate from")
	}
	reply, err := c.llm.Run(ctx, llm.ChatRequest{
		Model:    c.model,
		Messages: toLLMMessages(history),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, apperrors.DomainChat, "model invocation failed")
	}
	if strings.TrimSpace(reply) != "" {
		if _, err := c.chats.SaveMessage(ctx, chatID, models.RoleAssistant,
			models.PartList{models.TextPart(reply)}, uuid.Nil); err != nil {
			return nil, err
		}
	}
	return c.GetChat(ctx, userID, chatID)
}

// StreamReply drives the streaming path: save the user message, stream
// model chunks to the caller, and reconcile the finished assistant reply
// into the store through a per-session reconciler.
func (c *ChatController) StreamReply(ctx context.Context, userID int, chatID uuid.UUID, req types.PostMessageRequest) (chan string, chan error) {
	ch := make(chan string)
	errCh := make(chan error, 1)

	fail := func(err error) (chan string, chan error) {
		errCh <- err
		close(ch)
		close(errCh)
		return ch, errCh
	}

	if _, err := c.authorizeChat(ctx, userID, chatID); err != nil {
		return fail(err)
	}
	if err := req.Parts.Validate(); err != nil {
		return fail(apperrors.Wrap(err, apperrors.BadRequest, apperrors.DomainChat, err.Error()))
	}
	customID := uuid.Nil
	if req.ID != nil {
		customID = *req.ID
	}
	if _, err := c.chats.SaveMessage(ctx, chatID, models.RoleUser, req.Parts, customID); err != nil {
		return fail(err)
	}
	history, err := c.chats.GetMessages(ctx, chatID)
	if err != nil {
		return fail(err)
	}
	chunks, err := c.llm.RunStream(ctx, llm.ChatRequest{
		Model:    c.model,
		Messages: toLLMMessages(history),
	})
	if err != nil {
		return fail(apperrors.Wrap(err, apperrors.Internal, apperrors.DomainChat, "model invocation failed"))
	}

	// One reconciler per streaming session; its synced set is the sole
	// source of truth for what this session has already persisted.
	reconciler := chatsync.NewReconciler(func(ctx context.Context, msg models.Message) error {
		_, err := c.chats.SaveMessage(ctx, msg.ChatID, msg.Role, msg.Parts, msg.ID)
		return err
	})
	// Everything loaded from the store is persisted by definition; only
	// what this session streams is the reconciler's to save.
	for _, msg := range history {
		reconciler.MarkSynced(msg.ID)
	}

	go func() {
		defer close(ch)
		defer close(errCh)

		assistant := models.Message{
			ID:     uuid.New(),
			ChatID: chatID,
			Role:   models.RoleAssistant,
		}
		var full strings.Builder
		for chunk := range chunks {
			full.WriteString(chunk)
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}

		// The transcript grows only once the reply is complete; a reply
		// that streamed nothing but whitespace is never persisted.
		assistant.Parts = models.PartList{models.TextPart(full.String())}
		transcript := append(history, assistant)

		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reconciler.Observe(saveCtx, transcript); err != nil {
			errCh <- err
			return
		}
		// Rescan is a no-op: the watermark and synced set have it covered.
		if err := reconciler.Observe(saveCtx, transcript); err != nil {
			errCh <- err
		}
	}()

	return ch, errCh
}

// generateTitle asks the model for a short title and overwrites the
// provisional one. Best-effort: failures are logged and the placeholder
// stays.
func (c *ChatController) generateTitle(ctx context.Context, chatID uuid.UUID, firstMessage string) {
	prompt := fmt.Sprintf(
		"Reply with JSON only: {\"title\": \"...\"}. The title is at most five words summarizing this message: %s",
		firstMessage,
	)
	raw, err := c.llm.Run(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: models.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		logging.AppLogger.Warn("title generation failed", zap.Error(err))
		return
	}
	var parsed struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(jsonutils.ExtractJSON(raw)), &parsed); err != nil {
		logging.AppLogger.Warn("title generation returned unparseable output", zap.Error(err))
		return
	}
	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		return
	}
	if _, err := c.chats.UpdateTitle(ctx, chatID, title); err != nil {
		logging.ErrorLogger.Error("title update failed",
			zap.String("chat_id", chatID.String()),
			zap.Error(err),
		)
	}
}

// toLLMMessages flattens stored messages into the model wire shape.
// Non-text parts become bracketed placeholders; the model sees that an
// attachment existed even though blobs stay out of the prompt.
func toLLMMessages(history []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		var b strings.Builder
		for _, p := range msg.Parts {
			switch p.Type {
			case models.PartText:
				b.WriteString(p.Text)
			case models.PartImage:
				b.WriteString("[image: " + p.URL + "]")
			case models.PartFile:
				b.WriteString("[file: " + p.Filename + "]")
			}
		}
		out = append(out, llm.Message{Role: msg.Role, Content: b.String()})
	}
	return out
}
