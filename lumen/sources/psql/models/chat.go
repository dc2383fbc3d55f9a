package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type Chat struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     int       `json:"user_id" gorm:"not null;index"`
	User       User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Title      string    `json:"title" gorm:"type:varchar(255);not null"`
	Visibility string    `json:"visibility" gorm:"type:varchar(16);not null;default:private"`
	Pinned     bool      `json:"pinned" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Messages   []Message `json:"-" gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	// Client may pre-allocate the id so its local state and the stored row
	// share an identity from the first request.
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
