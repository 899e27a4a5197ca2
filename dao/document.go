package dao

import (
	"community-intelligence-backend/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

func CreateDocument(ctx context.Context, document *model.Document) error {
	return DB.WithContext(ctx).Create(document).Error
}

func GetDocumentByID(ctx context.Context, id uint) (*model.Document, error) {
	var document model.Document
	if err := DB.WithContext(ctx).First(&document, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &document, nil
}

func GetDocumentsByAssociationID(ctx context.Context, associationID uint) ([]model.Document, error) {
	var documents []model.Document
	if err := DB.WithContext(ctx).
		Where("association_id = ?", associationID).
		Order("created_at DESC").
		Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func CountDocumentsByImportJob(ctx context.Context, jobID string) (int64, error) {
	var count int64
	err := DB.WithContext(ctx).
		Model(&model.Document{}).
		Where("import_job_id = ?", jobID).
		Count(&count).Error
	return count, err
}
