package dao

import (
	"community-intelligence-backend/model"
	"context"
)

func GetPropertiesByAssociationID(ctx context.Context, associationID uint) ([]model.Property, error) {
	var properties []model.Property
	if err := DB.WithContext(ctx).
		Where("association_id = ?", associationID).
		Order("id ASC").
		Find(&properties).Error; err != nil {
		return nil, err
	}
	return properties, nil
}

func CreateProperty(ctx context.Context, property *model.Property) error {
	return DB.WithContext(ctx).Create(property).Error
}
