package model

import "time"

// ChatRecord 一次问答的审计记录
type ChatRecord struct {
	Id          int64     `gorm:"column:id;primaryKey;comment:自增id"`
	Uuid        string    `gorm:"column:uuid;uniqueIndex;type:char(36);not null;comment:记录唯一id"`
	UserId      string    `gorm:"column:user_id;index;type:varchar(64);not null;comment:用户id"`
	Application string    `gorm:"column:application;type:varchar(64);not null;comment:对话场景"`
	Message     string    `gorm:"column:message;type:text;comment:用户消息"`
	Response    string    `gorm:"column:response;type:text;comment:机器人回复"`
	Intent      string    `gorm:"column:intent;type:varchar(64);comment:命中的intent"`
	Confidence  float64   `gorm:"column:confidence;comment:置信度"`
	Source      string    `gorm:"column:source;type:varchar(16);comment:local或upstream"`
	CreatedAt   time.Time `gorm:"column:created_at;index;not null;comment:创建时间"`
}

func (ChatRecord) TableName() string {
	return "chat_record"
}
