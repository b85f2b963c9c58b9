package model

import (
	"time"
)

// Link 短链接模型
type Link struct {
	ID          uint       `gorm:"primarykey" json:"-"`
	Code        string     `gorm:"size:8;uniqueIndex;not null" json:"code"`
	TargetURL   string     `gorm:"column:url;type:text;not null" json:"target_url"`
	TotalClicks int64      `gorm:"not null;default:0" json:"total_clicks"`
	LastClicked *time.Time `json:"last_clicked"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (Link) TableName() string {
	return "links"
}
