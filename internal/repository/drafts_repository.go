package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-admin-service/internal/models"
)

var ErrDraftNotFound = errors.New("draft not found")

// DraftsRepository persists matrix session snapshots so an open dialog
// survives a restart of the service
type DraftsRepository struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewDraftsRepository(db *gorm.DB, ttl time.Duration) *DraftsRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DraftsRepository{db: db, ttl: ttl}
}

// SaveDraft inserts or replaces the snapshot and pushes its expiry forward
func (r *DraftsRepository) SaveDraft(ctx context.Context, draft *models.MatrixDraft) error {
	now := time.Now()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	draft.ExpiresAt = now.Add(r.ttl)

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "product_id", "snapshot", "updated_at", "expires_at"}),
	}).Create(draft).Error
}

// GetDraft returns an unexpired draft
func (r *DraftsRepository) GetDraft(ctx context.Context, id uuid.UUID) (*models.MatrixDraft, error) {
	var draft models.MatrixDraft
	err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, time.Now()).
		First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return &draft, nil
}

func (r *DraftsRepository) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.MatrixDraft{}, "id = ?", id).Error
}

// DeleteExpired removes drafts past their expiry and returns how many were removed
func (r *DraftsRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&models.MatrixDraft{})
	return result.RowsAffected, result.Error
}
