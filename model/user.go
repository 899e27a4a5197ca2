package model

import "time"

type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"not null;size:255;uniqueIndex" json:"email"`

	// bcrypt哈希
	Password string `gorm:"not null" json:"-"`
	Avatar   string `json:"avatar"`
}

func (User) TableName() string {
	return "user"
}
