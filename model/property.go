package model

import "time"

const PropertyTypeUnit = "unit"

// Property 协会内的一个单元，UnitNumber 可能包含字母
type Property struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
	AssociationID uint      `gorm:"not null;index" json:"association_id"`
	UnitNumber    string    `gorm:"not null;size:64" json:"unit_number"`
	Address       string    `gorm:"size:255" json:"address"`
	PropertyType  string    `gorm:"not null;default:unit" json:"property_type"`
}

func (Property) TableName() string {
	return "properties"
}
