package localization

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Message messages 表的一行
type Message struct {
	ID     uint   `gorm:"primaryKey"`
	Bundle string `gorm:"size:128;uniqueIndex:idx_message"`
	Locale string `gorm:"size:32;uniqueIndex:idx_message"`
	Key    string `gorm:"column:message_key;size:255;uniqueIndex:idx_message"`
	Value  string `gorm:"type:text"`
}

func (Message) TableName() string { return "messages" }

// GormSource 从数据库表读取消息，根区域的 Locale 列为空串
type GormSource struct {
	DB *gorm.DB
}

// NewGormSource 创建数据源并迁移 messages 表
func NewGormSource(db *gorm.DB) (*GormSource, error) {
	if err := db.AutoMigrate(&Message{}); err != nil {
		return nil, fmt.Errorf("localization: migrate messages: %w", err)
	}
	return &GormSource{DB: db}, nil
}

func (s *GormSource) Name() string { return "database" }

func (s *GormSource) Load(ctx context.Context, name string, locale language.Tag) (map[string]string, bool, error) {
	var rows []Message
	err := s.DB.WithContext(ctx).
		Where("bundle = ? AND locale = ?", name, LocaleKey(locale)).
		Find(&rows).Error
	if err != nil {
		return nil, false, fmt.Errorf("localization: query %s/%s: %w", name, LocaleKey(locale), err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	messages := make(map[string]string, len(rows))
	for _, r := range rows {
		messages[r.Key] = r.Value
	}
	return messages, true, nil
}

// Store 写入或覆盖一层消息
func (s *GormSource) Store(ctx context.Context, name string, locale language.Tag, messages map[string]string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k, v := range messages {
			var row Message
			err := tx.Where("bundle = ? AND locale = ? AND message_key = ?", name, LocaleKey(locale), k).
				Limit(1).Find(&row).Error
			if err != nil {
				return err
			}
			if row.ID == 0 {
				row = Message{Bundle: name, Locale: LocaleKey(locale), Key: k, Value: v}
				err = tx.Create(&row).Error
			} else {
				err = tx.Model(&row).Update("value", v).Error
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
