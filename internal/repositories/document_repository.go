package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/Audatic07/collab-notes/internal/models"

	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepository is the document directory the collaboration layer
// authorizes and persists against.
type DocumentRepository struct {
	DB *gorm.DB
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	return r.DB.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) GetDocumentByID(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := r.DB.WithContext(ctx).First(&doc, "id = ?", documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindOwner reports the owner of a document and whether it exists at all.
// A missing document is not an error.
func (r *DocumentRepository) FindOwner(ctx context.Context, documentID string) (string, bool, error) {
	var doc models.Document
	err := r.DB.WithContext(ctx).Select("id", "owner_id").First(&doc, "id = ?", documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.OwnerID, true, nil
}

// WriteContent stores content, and title only when one is given. Returns
// ErrDocumentNotFound when the row vanished after the ownership check.
func (r *DocumentRepository) WriteContent(ctx context.Context, documentID, content string, title *string) error {
	updates := map[string]any{
		"content":    content,
		"updated_at": time.Now().UTC(),
	}
	if title != nil {
		updates["title"] = *title
	}

	res := r.DB.WithContext(ctx).Model(&models.Document{}).Where("id = ?", documentID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
