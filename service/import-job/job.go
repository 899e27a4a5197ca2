package importjob

import (
	"bytes"
	"community-intelligence-backend/dao"
	"community-intelligence-backend/model"
	documentstorage "community-intelligence-backend/service/document-storage"
	"community-intelligence-backend/service/progress"
	"community-intelligence-backend/service/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/google/uuid"
)

var (
	ErrJobNotFound       = errors.New("import job not found")
	ErrJobNotCancellable = errors.New("import job is not running in this instance")
	ErrJobNotResumable   = errors.New("import job can only be resumed after it failed, was cancelled or its runner stopped")
)

const DefaultRunLease = 2 * time.Minute

// ImportMessage MQ中导入任务消息体
type ImportMessage struct {
	JobID string `json:"job_id"`
}

// Service 管理导入任务：保存压缩包、处理MQ消息、取消与重新执行
type Service struct {
	store         storage.ObjectStore
	progress      progress.Store
	processor     *documentstorage.Processor
	archivePrefix string
	lease         time.Duration
	now           func() time.Time

	mu sync.Mutex
	// 本实例正在执行的任务及其取消函数
	running map[string]context.CancelFunc
}

func NewService(store storage.ObjectStore, progressStore progress.Store, processor *documentstorage.Processor, archivePrefix string) *Service {
	return &Service{
		store:         store,
		progress:      progressStore,
		processor:     processor,
		archivePrefix: archivePrefix,
		lease:         DefaultRunLease,
		now:           time.Now,
		running:       make(map[string]context.CancelFunc),
	}
}

// SetRunLease 执行中的任务每lease/3刷新一次心跳，超过lease未刷新的任务可以被重新执行
func (s *Service) SetRunLease(lease time.Duration) {
	if lease > 0 {
		s.lease = lease
	}
}

// Submit 将压缩包保存到对象存储并创建待处理任务，调用方随后发送MQ消息
func (s *Service) Submit(ctx context.Context, email, archiveName string, data []byte) (*model.ImportJob, error) {
	jobID := uuid.NewString()
	objectName := storage.ArchiveKey(s.archivePrefix, jobID)

	if err := s.store.PutObject(ctx, objectName, "application/zip", bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("failed to upload archive: %v", err)
	}

	job := &model.ImportJob{
		ID:          jobID,
		UserEmail:   email,
		ArchiveName: archiveName,
		ObjectName:  objectName,
		Status:      model.ImportStatusPending,
	}
	if err := dao.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %v", err)
	}

	s.saveProgress(ctx, progress.Snapshot{
		JobID:   jobID,
		Stage:   progress.StageAnalyzing,
		Message: "Waiting to be processed",
	})

	slog.Info("Import job submitted", "job_id", jobID, "archive", archiveName, "size", len(data))
	return job, nil
}

// HandleImportMessage 消费导入任务消息
// 只处理PENDING或心跳过期的RUNNING任务，其余重复投递的消息直接确认
func (s *Service) HandleImportMessage(ctx context.Context, msg *primitive.MessageExt) error {
	var importMessage ImportMessage
	if err := json.Unmarshal(msg.Body, &importMessage); err != nil {
		return fmt.Errorf("failed to unmarshal message body: %v", err)
	}
	return s.Run(ctx, importMessage.JobID)
}

// Run 执行一个PENDING状态的任务并保存结果
// 执行实例崩溃后任务停留在RUNNING，心跳过期后重新投递的消息会接管该任务
func (s *Service) Run(ctx context.Context, jobID string) error {
	job, err := dao.GetImportJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get import job %s: %v", jobID, err)
	}
	if job == nil {
		slog.Warn("Import job not found, dropping message", "job_id", jobID)
		return nil
	}

	if s.isRunningHere(jobID) {
		slog.Info("Import job is already running in this instance, skipping", "job_id", jobID)
		return nil
	}

	now := s.now()
	ok, err := dao.ClaimImportJob(ctx, jobID, now, s.staleBefore(now))
	if err != nil {
		return fmt.Errorf("failed to mark import job %s running: %v", jobID, err)
	}
	if !ok {
		slog.Info("Import job is not pending, skipping", "job_id", jobID, "status", job.Status)
		return nil
	}
	if job.Status == model.ImportStatusRunning {
		slog.Warn("Taking over import job with expired heartbeat", "job_id", jobID, "heartbeat_at", job.HeartbeatAt)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.register(jobID, cancel)
	defer s.unregister(jobID)

	// 取消后正在处理的文件仍会完成，心跳持续到Run返回
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHeartbeat()
	go s.heartbeat(heartbeatCtx, jobID)

	data, err := s.store.GetObject(runCtx, job.ObjectName)
	if err != nil {
		message := fmt.Sprintf("Failed to download archive: %v", err)
		s.saveProgress(ctx, progress.Snapshot{JobID: jobID, Stage: progress.StageError, Message: message})
		job.Status = model.ImportStatusFailed
		job.Errors = marshalMessages([]string{message})
		return s.saveResult(ctx, job)
	}

	result := s.processor.ProcessHierarchicalZip(runCtx, documentstorage.Archive{
		Name: job.ArchiveName,
		Data: data,
	}, documentstorage.Options{
		JobID:     job.ID,
		UserEmail: job.UserEmail,
	})

	applyResult(job, result)
	return s.saveResult(ctx, job)
}

// Cancel 取消任务：等待中的任务直接标记为取消，执行中的任务在处理下一个文件前停止
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	cancel, running := s.running[jobID]
	s.mu.Unlock()
	if running {
		cancel()
		slog.Info("Import job cancellation requested", "job_id", jobID)
		return nil
	}

	job, err := dao.GetImportJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get import job %s: %v", jobID, err)
	}
	if job == nil {
		return ErrJobNotFound
	}

	ok, err := dao.TransitionImportJobStatus(ctx, jobID, model.ImportStatusPending, model.ImportStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel import job %s: %v", jobID, err)
	}
	if ok {
		s.saveProgress(ctx, progress.Snapshot{
			JobID:   jobID,
			Stage:   progress.StageComplete,
			Message: "Import cancelled before it started",
		})
		slog.Info("Pending import job cancelled", "job_id", jobID)
		return nil
	}

	// 执行实例已退出的任务直接标记为取消
	ok, err = dao.ReleaseStaleImportJob(ctx, jobID, model.ImportStatusCancelled, s.staleBefore(s.now()))
	if err != nil {
		return fmt.Errorf("failed to cancel import job %s: %v", jobID, err)
	}
	if !ok {
		return ErrJobNotCancellable
	}
	s.saveProgress(ctx, progress.Snapshot{
		JobID:   jobID,
		Stage:   progress.StageComplete,
		Message: "Import cancelled after its runner stopped",
	})
	slog.Info("Abandoned import job cancelled", "job_id", jobID)
	return nil
}

// Fail 将等待中的任务标记为失败，用于消息发送失败等无法开始处理的情况
// 失败的任务可以通过Resume重新执行
func (s *Service) Fail(ctx context.Context, jobID, message string) error {
	ok, err := dao.TransitionImportJobStatus(ctx, jobID, model.ImportStatusPending, model.ImportStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark import job %s failed: %v", jobID, err)
	}
	if !ok {
		return nil
	}

	job, err := dao.GetImportJob(ctx, jobID)
	if err != nil || job == nil {
		return fmt.Errorf("failed to get import job %s: %v", jobID, err)
	}
	job.Errors = marshalMessages([]string{message})
	s.saveProgress(ctx, progress.Snapshot{JobID: jobID, Stage: progress.StageError, Message: message})
	return s.saveResult(ctx, job)
}

// Resume 没有断点续传，将任务重置为PENDING后从头处理整个压缩包
// 失败、已取消以及心跳过期的RUNNING任务可以重新执行，调用方随后重新发送MQ消息
func (s *Service) Resume(ctx context.Context, jobID string) (*model.ImportJob, error) {
	job, err := dao.GetImportJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import job %s: %v", jobID, err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	var ok bool
	switch job.Status {
	case model.ImportStatusFailed, model.ImportStatusCancelled:
		ok, err = dao.TransitionImportJobStatus(ctx, jobID, job.Status, model.ImportStatusPending)
	case model.ImportStatusRunning:
		if s.isRunningHere(jobID) {
			return nil, ErrJobNotResumable
		}
		ok, err = dao.ReleaseStaleImportJob(ctx, jobID, model.ImportStatusPending, s.staleBefore(s.now()))
	default:
		return nil, ErrJobNotResumable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset import job %s: %v", jobID, err)
	}
	if !ok {
		return nil, ErrJobNotResumable
	}
	job.Status = model.ImportStatusPending
	return job, nil
}

// Status 任务记录及最近一次进度
func (s *Service) Status(ctx context.Context, jobID string) (*model.ImportJob, *progress.Snapshot, error) {
	job, err := dao.GetImportJob(ctx, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get import job %s: %v", jobID, err)
	}
	if job == nil {
		return nil, nil, ErrJobNotFound
	}

	snapshot, err := s.progress.Load(ctx, jobID)
	if err != nil {
		slog.Warn("Failed to load import progress", "job_id", jobID, "err", err)
	}
	return job, snapshot, nil
}

func (s *Service) Progress() progress.Store {
	return s.progress
}

// heartbeat 任务执行期间定期刷新心跳，直到ctx结束
func (s *Service) heartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(s.lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dao.TouchImportJob(ctx, jobID, s.now()); err != nil {
				slog.Warn("Failed to refresh import job heartbeat", "job_id", jobID, "err", err)
			}
		}
	}
}

func (s *Service) staleBefore(now time.Time) time.Time {
	return now.Add(-s.lease)
}

func (s *Service) isRunningHere(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[jobID]
	return ok
}

func (s *Service) register(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[jobID] = cancel
}

func (s *Service) unregister(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, jobID)
}

func (s *Service) saveResult(ctx context.Context, job *model.ImportJob) error {
	if err := dao.SaveImportJobResult(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("failed to save import job %s result: %v", job.ID, err)
	}
	slog.Info("Import job finished", "job_id", job.ID, "status", job.Status)
	return nil
}

func (s *Service) saveProgress(ctx context.Context, snapshot progress.Snapshot) {
	if err := s.progress.Save(ctx, snapshot); err != nil {
		slog.Warn("Failed to save import progress", "job_id", snapshot.JobID, "err", err)
	}
}

func applyResult(job *model.ImportJob, result *documentstorage.Result) {
	switch {
	case !result.Success:
		job.Status = model.ImportStatusFailed
	case result.Cancelled:
		job.Status = model.ImportStatusCancelled
	default:
		job.Status = model.ImportStatusCompleted
	}
	job.AssociationID = result.AssociationID
	job.AssociationName = result.AssociationName
	job.DocumentsImported = result.DocumentsImported
	job.DocumentsSkipped = result.DocumentsSkipped
	job.TotalFiles = result.TotalFiles
	job.Errors = marshalMessages(result.Errors)
	job.Warnings = marshalMessages(result.Warnings)
	job.ProcessingTimeMs = result.ProcessingTimeMs
}

func marshalMessages(messages []string) json.RawMessage {
	if messages == nil {
		messages = []string{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}
