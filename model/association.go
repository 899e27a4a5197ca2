package model

import "time"

const AssociationStatusActive = "active"

// Association 租户根实体（一个业主协会），名称唯一
type Association struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	Name      string    `gorm:"not null;size:255;uniqueIndex:idx_association_name" json:"name"`
	Status    string    `gorm:"not null;default:active" json:"status"`
}

func (Association) TableName() string {
	return "associations"
}
