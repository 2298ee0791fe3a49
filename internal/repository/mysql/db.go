package mysql

import (
	"fmt"
	"time"

	"CommunityHub/internal/model"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 打开 MySQL 连接池；TranslateError 让唯一键冲突统一成 gorm.ErrDuplicatedKey
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Models 需要建表的全部模型
func Models() []any {
	return []any{
		&model.User{},
		&model.Community{},
		&model.Membership{},
		&model.Post{},
		&model.PostLike{},
		&model.Comment{},
		&model.MembershipOutbox{},
		&model.JournalEntry{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
