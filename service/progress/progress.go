package progress

import (
	"context"
	"time"
)

// KeyPrefix 进度快照在Redis中的key前缀，完整key为 documentImportProgress:<job_id>
const KeyPrefix = "documentImportProgress"

type Stage string

const (
	StageAnalyzing          Stage = "analyzing"
	StageCreatingProperties Stage = "creating_properties"
	StageUploading          Stage = "uploading"
	StageComplete           Stage = "complete"
	StageError              Stage = "error"
)

// Snapshot 导入任务的进度快照
type Snapshot struct {
	JobID          string    `json:"job_id"`
	Stage          Stage     `json:"stage"`
	Message        string    `json:"message"`
	Percent        int       `json:"percent"`
	FilesProcessed int       `json:"files_processed"`
	TotalFiles     int       `json:"total_files"`
	UnitsProcessed int       `json:"units_processed"`
	TotalUnits     int       `json:"total_units"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Done 快照是否处于终止阶段
func (s Snapshot) Done() bool {
	return s.Stage == StageComplete || s.Stage == StageError
}

// Store 保存最近一次进度并向订阅者广播
type Store interface {
	Save(ctx context.Context, snapshot Snapshot) error

	// Load 读取最近一次进度，不存在时返回nil
	Load(ctx context.Context, jobID string) (*Snapshot, error)

	// Subscribe 订阅任务的进度更新，调用返回的函数取消订阅
	Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, func(), error)
}

func Key(jobID string) string {
	return KeyPrefix + ":" + jobID
}
