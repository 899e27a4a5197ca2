// Package daotest opens an isolated in-memory database for tests and installs
// it as dao.DB.
package daotest

import (
	"community-intelligence-backend/dao"
	"community-intelligence-backend/model"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open replaces dao.DB with a fresh migrated SQLite database for the duration
// of the test. Tests using it must not run in parallel.
func Open(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := dao.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}

	prev := dao.DB
	dao.DB = db
	tb.Cleanup(func() {
		dao.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func SeedAssociation(tb testing.TB, name string) *model.Association {
	tb.Helper()
	a := &model.Association{Name: name, Status: model.AssociationStatusActive}
	if err := dao.DB.WithContext(context.Background()).Create(a).Error; err != nil {
		tb.Fatalf("seed association: %v", err)
	}
	return a
}

func SeedProperty(tb testing.TB, associationID uint, unit, address string) *model.Property {
	tb.Helper()
	p := &model.Property{
		AssociationID: associationID,
		UnitNumber:    unit,
		Address:       address,
		PropertyType:  model.PropertyTypeUnit,
	}
	if err := dao.DB.WithContext(context.Background()).Create(p).Error; err != nil {
		tb.Fatalf("seed property: %v", err)
	}
	return p
}
