// lumen/types/chat.go
package types

import (
	"lumen/lumen/sources/psql/models"

	"github.com/google/uuid"
)

type CreateChatRequest struct {
	// ID lets the client pre-allocate the chat identity.
	ID    *uuid.UUID `json:"id,omitempty"`
	Title string     `json:"title"`
}

type RenameChatRequest struct {
	Title string `json:"title"`
}

// PinRequest decodes pinned through a pointer so an explicit false is
// distinguishable from a missing field.
type PinRequest struct {
	Pinned *bool `json:"pinned"`
}

type PostMessageRequest struct {
	ID    *uuid.UUID      `json:"id,omitempty"`
	Parts models.PartList `json:"parts"`
}

type ChatDetailResponse struct {
	Chat     *models.Chat     `json:"chat"`
	Messages []models.Message `json:"messages"`
}

type StreamInit struct {
	Token   string             `json:"token"`
	Message PostMessageRequest `json:"message"`
}
