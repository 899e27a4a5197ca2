package model

import (
	"encoding/json"
	"time"
)

type ImportStatus string

const (
	// 压缩包已上传，等待处理
	ImportStatusPending ImportStatus = "PENDING"

	ImportStatusRunning ImportStatus = "RUNNING"

	ImportStatusCompleted ImportStatus = "COMPLETED"

	// 整体失败，例如压缩包无法解压或协会无法创建
	ImportStatusFailed ImportStatus = "FAILED"

	// 被用户取消，已导入的文档保留
	ImportStatusCancelled ImportStatus = "CANCELLED"
)

// ImportJob 一次压缩包导入任务及其最终结果
// 建立联合索引 (user_email, created_at)
type ImportJob struct {
	ID          string       `gorm:"primarykey;size:36" json:"id"`
	CreatedAt   time.Time    `gorm:"not null;index:idx_job_email_created" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
	UserEmail   string       `gorm:"not null;index:idx_job_email_created" json:"user_email"`
	ArchiveName string       `gorm:"not null" json:"archive_name"`
	ObjectName  string       `gorm:"not null" json:"object_name"`
	Status      ImportStatus `gorm:"not null;default:PENDING" json:"status"`

	// 执行中的实例定期刷新，超过租约时间未刷新视为执行者已退出
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`

	AssociationID     uint   `json:"association_id"`
	AssociationName   string `json:"association_name"`
	DocumentsImported int    `json:"documents_imported"`
	DocumentsSkipped  int    `json:"documents_skipped"`
	TotalFiles        int    `json:"total_files"`

	Errors           json.RawMessage `gorm:"type:json" json:"errors"`
	Warnings         json.RawMessage `gorm:"type:json" json:"warnings"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

func (ImportJob) TableName() string {
	return "import_job"
}

// IsTerminal 任务是否已结束
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed || s == ImportStatusCancelled
}
