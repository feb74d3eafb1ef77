package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatrixDraft is the persisted snapshot of an open matrix edit session.
type MatrixDraft struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	Mode      string         `json:"mode" gorm:"type:varchar(20);not null"`
	ProductID *int64         `json:"productId,omitempty" gorm:"index"`
	Snapshot  datatypes.JSON `json:"snapshot" gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	ExpiresAt time.Time      `json:"expiresAt" gorm:"index"`
}

func (MatrixDraft) TableName() string {
	return "matrix_drafts"
}
