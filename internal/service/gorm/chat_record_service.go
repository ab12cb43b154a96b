package gorm

import (
	"context"
	"time"

	"chatbot_server/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 20

// ChatRecorder 记录问答并按用户查询
type ChatRecorder interface {
	Record(ctx context.Context, record *model.ChatRecord) error
	ListByUser(ctx context.Context, userId string, limit int) ([]model.ChatRecord, error)
}

type ChatRecordService struct {
	db *gorm.DB
}

func NewChatRecordService(db *gorm.DB) *ChatRecordService {
	return &ChatRecordService{db: db}
}

// Record 补齐 uuid 与创建时间后写入 chat_record
func (s *ChatRecordService) Record(ctx context.Context, record *model.ChatRecord) error {
	if record.Uuid == "" {
		record.Uuid = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// ListByUser 返回用户最近的记录，新的在前
func (s *ChatRecordService) ListByUser(ctx context.Context, userId string, limit int) ([]model.ChatRecord, error) {
	var records []model.ChatRecord
	if res := s.recentQuery(s.db.WithContext(ctx), userId, limit).Find(&records); res.Error != nil {
		return nil, res.Error
	}
	return records, nil
}

func (s *ChatRecordService) recentQuery(tx *gorm.DB, userId string, limit int) *gorm.DB {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return tx.Model(&model.ChatRecord{}).Where("user_id = ?", userId).Order("created_at DESC").Limit(limit)
}

// NopRecorder 未启用 MySQL 时使用
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *model.ChatRecord) error { return nil }

func (NopRecorder) ListByUser(context.Context, string, int) ([]model.ChatRecord, error) {
	return []model.ChatRecord{}, nil
}
