package dao

import (
	"community-intelligence-backend/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

func CreateImportJob(ctx context.Context, job *model.ImportJob) error {
	return DB.WithContext(ctx).Create(job).Error
}

func GetImportJob(ctx context.Context, id string) (*model.ImportJob, error) {
	var job model.ImportJob
	if err := DB.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func GetImportJobsByEmail(ctx context.Context, email string) ([]model.ImportJob, error) {
	var jobs []model.ImportJob
	if err := DB.WithContext(ctx).
		Where("user_email = ?", email).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// TransitionImportJobStatus 仅当任务处于from状态时更新为to，返回是否更新成功
// 用于避免MQ重复投递导致同一任务被处理两次
func TransitionImportJobStatus(ctx context.Context, id string, from, to model.ImportStatus) (bool, error) {
	result := DB.WithContext(ctx).
		Model(&model.ImportJob{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UserHasAssociation 用户是否有导入到该协会的任务
func UserHasAssociation(ctx context.Context, email string, associationID uint) (bool, error) {
	var count int64
	if err := DB.WithContext(ctx).
		Model(&model.ImportJob{}).
		Where("user_email = ? AND association_id = ?", email, associationID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimImportJob 将任务标记为RUNNING并写入心跳，返回是否抢占成功
// PENDING的任务，以及心跳早于staleBefore的RUNNING任务（执行实例已退出）可以被抢占
func ClaimImportJob(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	result := DB.WithContext(ctx).
		Model(&model.ImportJob{}).
		Where("id = ?", id).
		Where(DB.Where("status = ?", model.ImportStatusPending).
			Or("status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)", model.ImportStatusRunning, staleBefore)).
		Updates(map[string]any{
			"status":       model.ImportStatusRunning,
			"heartbeat_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TouchImportJob 刷新执行中任务的心跳
func TouchImportJob(ctx context.Context, id string, now time.Time) error {
	return DB.WithContext(ctx).
		Model(&model.ImportJob{}).
		Where("id = ? AND status = ?", id, model.ImportStatusRunning).
		Update("heartbeat_at", now).Error
}

// ReleaseStaleImportJob 将心跳早于staleBefore的RUNNING任务更新为to，返回是否更新成功
func ReleaseStaleImportJob(ctx context.Context, id string, to model.ImportStatus, staleBefore time.Time) (bool, error) {
	result := DB.WithContext(ctx).
		Model(&model.ImportJob{}).
		Where("id = ? AND status = ?", id, model.ImportStatusRunning).
		Where("heartbeat_at IS NULL OR heartbeat_at < ?", staleBefore).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SaveImportJobResult 写入任务的最终结果
func SaveImportJobResult(ctx context.Context, job *model.ImportJob) error {
	return DB.WithContext(ctx).
		Model(&model.ImportJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":             job.Status,
			"association_id":     job.AssociationID,
			"association_name":   job.AssociationName,
			"documents_imported": job.DocumentsImported,
			"documents_skipped":  job.DocumentsSkipped,
			"total_files":        job.TotalFiles,
			"errors":             job.Errors,
			"warnings":           job.Warnings,
			"processing_time_ms": job.ProcessingTimeMs,
		}).Error
}
