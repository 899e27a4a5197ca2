package response

import (
	"community-intelligence-backend/model"
	"community-intelligence-backend/service/progress"
	"encoding/json"
	"time"
)

type SubmitImportResponse struct {
	JobID  string             `json:"job_id"`
	Status model.ImportStatus `json:"status"`
}

type ImportJobResponse struct {
	ID                string             `json:"id"`
	CreatedAt         time.Time          `json:"created_at"`
	ArchiveName       string             `json:"archive_name"`
	Status            model.ImportStatus `json:"status"`
	AssociationID     uint               `json:"association_id"`
	AssociationName   string             `json:"association_name"`
	DocumentsImported int                `json:"documents_imported"`
	DocumentsSkipped  int                `json:"documents_skipped"`
	TotalFiles        int                `json:"total_files"`
	Errors            json.RawMessage    `json:"errors"`
	Warnings          json.RawMessage    `json:"warnings"`
	ProcessingTimeMs  int64              `json:"processing_time_ms"`

	// 最近一次进度，过期后为空
	Progress *progress.Snapshot `json:"progress"`
}

type GetImportJobsResponse struct {
	Jobs []ImportJobResponse `json:"jobs"`
}

func NewImportJobResponse(job *model.ImportJob, snapshot *progress.Snapshot) ImportJobResponse {
	return ImportJobResponse{
		ID:                job.ID,
		CreatedAt:         job.CreatedAt,
		ArchiveName:       job.ArchiveName,
		Status:            job.Status,
		AssociationID:     job.AssociationID,
		AssociationName:   job.AssociationName,
		DocumentsImported: job.DocumentsImported,
		DocumentsSkipped:  job.DocumentsSkipped,
		TotalFiles:        job.TotalFiles,
		Errors:            job.Errors,
		Warnings:          job.Warnings,
		ProcessingTimeMs:  job.ProcessingTimeMs,
		Progress:          snapshot,
	}
}
