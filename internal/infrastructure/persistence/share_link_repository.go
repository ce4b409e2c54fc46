package persistence

import (
	"context"
	"errors"

	"github.com/dealerdesk/backend/internal/domain/dealing"
	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormShareLinkRepository implements ShareLinkRepository using GORM
type GormShareLinkRepository struct {
	db *gorm.DB
}

// NewGormShareLinkRepository creates a new GormShareLinkRepository
func NewGormShareLinkRepository(db *gorm.DB) *GormShareLinkRepository {
	return &GormShareLinkRepository{db: db}
}

// Save persists a share link
func (r *GormShareLinkRepository) Save(ctx context.Context, link *dealing.DocumentShareLink) error {
	return r.db.WithContext(ctx).Save(link).Error
}

// FindByTokenHash resolves a link by the hash of a presented token.
// Deliberately not dealer-scoped: the shared endpoint has no tenant
// context, the unguessable token is the credential.
func (r *GormShareLinkRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*dealing.DocumentShareLink, error) {
	var link dealing.DocumentShareLink
	if err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// DeleteForDocument removes the links of a document
func (r *GormShareLinkRepository) DeleteForDocument(ctx context.Context, dealerID, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("dealer_id = ? AND document_id = ?", dealerID, documentID).
		Delete(&dealing.DocumentShareLink{}).Error
}
