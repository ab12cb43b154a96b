package dao

import (
	"fmt"

	"chatbot_server/internal/config"
	"chatbot_server/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// DSN 使用TCP连接而不是Unix套接字
func DSN(conf config.MysqlConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.User, conf.Password, conf.Host, conf.Port, conf.DatabaseName)
}

// NewGormDB 连接 MySQL 并自动迁移审计表
func NewGormDB(conf config.MysqlConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(conf)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	// 自动迁移，如果没有建表，会自动创建对应的表
	if err := db.AutoMigrate(&model.ChatRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}
