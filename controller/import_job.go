package controller

import (
	"community-intelligence-backend/config"
	"community-intelligence-backend/dao"
	"community-intelligence-backend/middleware"
	"community-intelligence-backend/model"
	"community-intelligence-backend/response"
	importjob "community-intelligence-backend/service/import-job"
	"community-intelligence-backend/service/mq"
	"community-intelligence-backend/service/progress"
	"community-intelligence-backend/utils"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const multipartOverhead = 1 << 20

// SubmitImport 接收压缩包并创建导入任务，由MQ消费者异步处理
func SubmitImport(c *gin.Context) {
	email := c.GetString(middleware.ContextKeyEmail)
	maxBytes := config.Cfg.Import.MaxArchiveBytes

	if maxBytes > 0 {
		// 预留multipart头部的空间
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile("archive")
	if err != nil {
		slog.Error(ErrGetArchiveFile.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrGetArchiveFile.Error(),
		})
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".zip") {
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrNotZipArchive.Error(),
		})
		return
	}
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response.Response{
			Msg: ErrArchiveTooLarge.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error(ErrGetArchiveFile.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrGetArchiveFile.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error(ErrGetArchiveFile.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrGetArchiveFile.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	job, err := importJobs.Submit(ctx, email, fileHeader.Filename, data)
	if err != nil {
		slog.Error(ErrSubmitImport.Error(), "email", email, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSubmitImport.Error(),
		})
		return
	}

	if !dispatchImport(ctx, job.ID) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSendImportMessage.Error(),
			Data: response.SubmitImportResponse{
				JobID:  job.ID,
				Status: model.ImportStatusFailed,
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, response.Response{
		Data: response.SubmitImportResponse{
			JobID:  job.ID,
			Status: job.Status,
		},
	})
}

// dispatchImport 发送导入消息，失败时将任务标记为失败
func dispatchImport(ctx context.Context, jobID string) bool {
	err := sendMessage(ctx, &mq.Message{
		Topic:   mq.TopicDocumentImport,
		Tag:     mq.TagImportArchive,
		Payload: importjob.ImportMessage{JobID: jobID},
	})
	if err == nil {
		return true
	}

	slog.Error(ErrSendImportMessage.Error(), "job_id", jobID, "err", err)
	if err := importJobs.Fail(context.WithoutCancel(ctx), jobID, ErrSendImportMessage.Error()); err != nil {
		slog.Error("Failed to mark import job failed", "job_id", jobID, "err", err)
	}
	return false
}

func GetImportJobs(c *gin.Context) {
	email := c.GetString(middleware.ContextKeyEmail)
	jobs, err := dao.GetImportJobsByEmail(c.Request.Context(), email)
	if err != nil {
		slog.Error(ErrGetImportJobs.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetImportJobs.Error(),
		})
		return
	}

	resp := response.GetImportJobsResponse{Jobs: []response.ImportJobResponse{}}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, response.NewImportJobResponse(&jobs[i], nil))
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

func GetImportJob(c *gin.Context) {
	job, ok := ownedImportJob(c)
	if !ok {
		return
	}

	snapshot, err := importJobs.Progress().Load(c.Request.Context(), job.ID)
	if err != nil {
		slog.Warn("Failed to load import progress", "job_id", job.ID, "err", err)
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.NewImportJobResponse(job, snapshot),
	})
}

func CancelImportJob(c *gin.Context) {
	job, ok := ownedImportJob(c)
	if !ok {
		return
	}

	err := importJobs.Cancel(c.Request.Context(), job.ID)
	switch {
	case errors.Is(err, importjob.ErrJobNotCancellable):
		c.AbortWithStatusJSON(http.StatusConflict, response.Response{
			Msg: ErrImportNotRunning.Error(),
		})
		return
	case err != nil:
		slog.Error(ErrCancelImportJob.Error(), "job_id", job.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrCancelImportJob.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, response.Response{})
}

// ResumeImportJob 重新执行失败或已取消的任务，整个压缩包从头处理
func ResumeImportJob(c *gin.Context) {
	job, ok := ownedImportJob(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	resumed, err := importJobs.Resume(ctx, job.ID)
	switch {
	case errors.Is(err, importjob.ErrJobNotResumable):
		c.AbortWithStatusJSON(http.StatusConflict, response.Response{
			Msg: ErrImportNotResumable.Error(),
		})
		return
	case err != nil:
		slog.Error(ErrResumeImportJob.Error(), "job_id", job.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrResumeImportJob.Error(),
		})
		return
	}

	if !dispatchImport(ctx, resumed.ID) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSendImportMessage.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, response.Response{
		Data: response.SubmitImportResponse{
			JobID:  resumed.ID,
			Status: resumed.Status,
		},
	})
}

// ImportJobEvents 以SSE推送任务进度，直到任务结束或客户端断开
func ImportJobEvents(c *gin.Context) {
	job, ok := ownedImportJob(c)
	if !ok {
		return
	}

	utils.SetSSEHeaders(c)
	err := watchProgress(c.Request.Context(), job, func(snapshot progress.Snapshot) error {
		utils.SendSSEMessage(c, utils.EventProgress, snapshot)
		return nil
	}, utils.SSEKeepAliveInterval, func() error {
		return utils.SendSSEKeepAlive(c)
	})
	if err != nil {
		slog.Error(ErrSubscribeProgress.Error(), "job_id", job.ID, "err", err)
		utils.SendSSEMessage(c, utils.EventError, ErrSubscribeProgress.Error())
	}
	utils.SendSSEMessage(c, utils.EventDone, "")
}

// ImportJobWebSocket 以WebSocket推送任务进度
func ImportJobWebSocket(c *gin.Context) {
	job, ok := ownedImportJob(c)
	if !ok {
		return
	}

	conn, err := utils.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Failed to upgrade websocket", "job_id", job.ID, "err", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 读取循环用于感知客户端关闭
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = watchProgress(ctx, job, func(snapshot progress.Snapshot) error {
		return utils.WriteWSJSON(conn, snapshot)
	}, utils.WSPingInterval, func() error {
		return utils.PingWS(conn)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Import progress websocket closed", "job_id", job.ID, "err", err)
	}
	utils.CloseWS(conn, "done")
}

// watchProgress 先发送当前进度，再转发后续更新，直到进度进入终止阶段
// 两次更新间隔超过 keepAlive 时调用 ping
func watchProgress(ctx context.Context, job *model.ImportJob, send func(progress.Snapshot) error, keepAlive time.Duration, ping func() error) error {
	store := importJobs.Progress()

	updates, unsubscribe, err := store.Subscribe(ctx, job.ID)
	if err != nil {
		return err
	}
	defer unsubscribe()

	current, err := store.Load(ctx, job.ID)
	if err != nil {
		return err
	}
	if current != nil {
		if err := send(*current); err != nil {
			return err
		}
		if current.Done() {
			return nil
		}
	}
	// 已结束且进度已过期
	if current == nil && job.Status.IsTerminal() {
		return nil
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ping(); err != nil {
				return err
			}
		case snapshot, ok := <-updates:
			if !ok {
				return nil
			}
			if err := send(snapshot); err != nil {
				return err
			}
			if snapshot.Done() {
				return nil
			}
		}
	}
}

// ownedImportJob 读取路径中的任务，只允许提交者访问
func ownedImportJob(c *gin.Context) (*model.ImportJob, bool) {
	email := c.GetString(middleware.ContextKeyEmail)
	jobID := c.Param("id")

	job, err := dao.GetImportJob(c.Request.Context(), jobID)
	if err != nil {
		slog.Error(ErrGetImportJob.Error(), "job_id", jobID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetImportJob.Error(),
		})
		return nil, false
	}
	if job == nil || job.UserEmail != email {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrImportJobNotFound.Error(),
		})
		return nil, false
	}
	return job, true
}
