package dao

import (
	"community-intelligence-backend/model"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库连接
var DB *gorm.DB

// Init 连接MySQL并迁移表结构
func Init(dsn string) error {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		// 将唯一键冲突转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	if err := AutoMigrate(db); err != nil {
		return err
	}

	DB = db
	return nil
}

func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Association{},
		&model.Property{},
		&model.Document{},
		&model.ImportJob{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %v", err)
	}
	return nil
}
