package dao

import (
	"context"
	"time"

	"lumen/lumen/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatDAO struct {
	DB *gorm.DB
}

func NewChatDAO(db *gorm.DB) *ChatDAO {
	return &ChatDAO{DB: db}
}

// CreateChat inserts a chat owned by userID. A zero id means the server
// allocates one; a non-zero id is a client pre-allocated identity.
func (dao *ChatDAO) CreateChat(ctx context.Context, userID int, title string, id uuid.UUID) (*models.Chat, error) {
	chat := models.Chat{
		ID:         id,
		UserID:     userID,
		Title:      title,
		Visibility: models.VisibilityPrivate,
	}
	if err := dao.DB.WithContext(ctx).Create(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func (dao *ChatDAO) GetChatByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	err := dao.DB.WithContext(ctx).Where("id = ?", id).First(&chat).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChatsByUser returns the user's chats, pinned first, most recently
// updated first within each group.
func (dao *ChatDAO) ListChatsByUser(ctx context.Context, userID int) ([]models.Chat, error) {
	var chats []models.Chat
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("pinned DESC").
		Order("updated_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (dao *ChatDAO) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*models.Chat, error) {
	return dao.updateChat(ctx, id, map[string]interface{}{"title": title})
}

func (dao *ChatDAO) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (*models.Chat, error) {
	return dao.updateChat(ctx, id, map[string]interface{}{"pinned": pinned})
}

func (dao *ChatDAO) SetVisibility(ctx context.Context, id uuid.UUID, visibility string) (*models.Chat, error) {
	return dao.updateChat(ctx, id, map[string]interface{}{"visibility": visibility})
}

func (dao *ChatDAO) updateChat(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Chat, error) {
	if err := dao.DB.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return nil, err
	}
	return dao.GetChatByID(ctx, id)
}

// DeleteChat removes the chat row. Messages go with it via the foreign
// key cascade; blob cleanup is the caller's concern.
func (dao *ChatDAO) DeleteChat(ctx context.Context, id uuid.UUID) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Chat{}).Error
	})
}

// SaveMessage persists one message at the next position in the chat's
// order. customID keeps a client-generated identity; pass uuid.Nil to let
// the server allocate one.
func (dao *ChatDAO) SaveMessage(ctx context.Context, chatID uuid.UUID, role string, parts models.PartList, customID uuid.UUID) (*models.Message, error) {
	msg := models.Message{
		ID:     customID,
		ChatID: chatID,
		Role:   role,
		Parts:  parts,
	}
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPos int
		row := tx.Model(&models.Message{}).
			Where("chat_id = ?", chatID).
			Select("COALESCE(MAX(position), 0)").
			Row()
		if err := row.Scan(&maxPos); err != nil {
			return err
		}
		msg.Position = maxPos + 1
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		// Touch the chat so list ordering reflects activity.
		return tx.Model(&models.Chat{}).
			Where("id = ?", chatID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (dao *ChatDAO) GetMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := dao.DB.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("position ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteMessagesFrom removes the identified message and every message at
// a later position in the same chat, in one transaction. Returns
// gorm.ErrRecordNotFound when the message is not in the chat.
func (dao *ChatDAO) DeleteMessagesFrom(ctx context.Context, chatID, messageID uuid.UUID) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		err := tx.Where("id = ? AND chat_id = ?", messageID, chatID).First(&msg).Error
		if err != nil {
			return err
		}
		return tx.Where("chat_id = ? AND position >= ?", chatID, msg.Position).
			Delete(&models.Message{}).Error
	})
}
