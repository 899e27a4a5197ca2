package dao

import (
	"community-intelligence-backend/model"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

func GetAssociationByName(ctx context.Context, name string) (*model.Association, error) {
	var association model.Association
	if err := DB.WithContext(ctx).
		Where("name = ?", name).
		First(&association).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &association, nil
}

func GetAssociationByID(ctx context.Context, id uint) (*model.Association, error) {
	var association model.Association
	if err := DB.WithContext(ctx).First(&association, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &association, nil
}

// FindOrCreateAssociation 按名称查找协会，不存在时创建
// 两个导入任务同时创建同名协会时，唯一索引冲突的一方重新查询已创建的记录
func FindOrCreateAssociation(ctx context.Context, name string) (association *model.Association, created bool, err error) {
	association, err = GetAssociationByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get association %q: %v", name, err)
	}
	if association != nil {
		return association, false, nil
	}

	association = &model.Association{
		Name:   name,
		Status: model.AssociationStatusActive,
	}
	err = DB.WithContext(ctx).Create(association).Error
	if err == nil {
		return association, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("failed to create association %q: %v", name, err)
	}

	association, err = GetAssociationByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-fetch association %q: %v", name, err)
	}
	if association == nil {
		return nil, false, fmt.Errorf("association %q conflicted on create but was not found", name)
	}
	return association, false, nil
}
