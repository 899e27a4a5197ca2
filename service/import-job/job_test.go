package importjob

import (
	"community-intelligence-backend/dao"
	"community-intelligence-backend/dao/daotest"
	"community-intelligence-backend/model"
	documentstorage "community-intelligence-backend/service/document-storage"
	"community-intelligence-backend/service/progress"
	"community-intelligence-backend/service/storage/storagetest"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *storagetest.MemoryStore) {
	t.Helper()
	daotest.Open(t)
	store := storagetest.NewMemoryStore()
	ps := progress.NewMemoryStore()
	processor := documentstorage.NewProcessor(store, ps, "associations")
	return NewService(store, ps, processor, "imports"), store
}

func importMessage(t *testing.T, jobID string) *primitive.MessageExt {
	t.Helper()
	body, err := json.Marshal(ImportMessage{JobID: jobID})
	require.NoError(t, err)
	return &primitive.MessageExt{Message: primitive.Message{Topic: "topic_document_import", Body: body}}
}

func acmeArchive(t *testing.T) []byte {
	return storagetest.Zip(t,
		storagetest.ZipEntry{Name: "AcmeHOA/100 Main St. Unit 5/lease.pdf", Body: "lease"},
		storagetest.ZipEntry{Name: "AcmeHOA/100 Main St. Unit 5/invoice.pdf", Body: "invoice"},
		storagetest.ZipEntry{Name: "AcmeHOA/readme.txt", Body: "readme"},
	)
}

func TestSubmitAndRun(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusPending, job.Status)
	assert.Equal(t, "imports/"+job.ID+".zip", job.ObjectName)
	_, ok := store.Object(job.ObjectName)
	assert.True(t, ok)

	require.NoError(t, svc.HandleImportMessage(ctx, importMessage(t, job.ID)))

	got, snapshot, err := svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusCompleted, got.Status)
	assert.Equal(t, "AcmeHOA", got.AssociationName)
	assert.Equal(t, 2, got.DocumentsImported)
	assert.Equal(t, 1, got.DocumentsSkipped)
	assert.Equal(t, 3, got.TotalFiles)

	var errs []string
	require.NoError(t, json.Unmarshal(got.Errors, &errs))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "readme.txt")

	require.NotNil(t, snapshot)
	assert.Equal(t, progress.StageComplete, snapshot.Stage)

	count, err := dao.CountDocumentsByImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRun_RedeliveryIsIgnored(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx, job.ID))
	require.NoError(t, svc.Run(ctx, job.ID))

	count, err := dao.CountDocumentsByImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// markRunning 模拟执行实例在PENDING→RUNNING之后退出
func markRunning(t *testing.T, jobID string, heartbeat time.Time) {
	t.Helper()
	require.NoError(t, dao.DB.Model(&model.ImportJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{"status": model.ImportStatusRunning, "heartbeat_at": heartbeat}).Error)
}

func TestRun_TakesOverJobWithExpiredHeartbeat(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)
	markRunning(t, job.ID, time.Now().Add(-time.Hour))

	require.NoError(t, svc.HandleImportMessage(ctx, importMessage(t, job.ID)))

	got, err := dao.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusCompleted, got.Status)
	assert.Equal(t, 2, got.DocumentsImported)
	require.NotNil(t, got.HeartbeatAt)
}

func TestRun_LiveRunningJobIsNotTakenOver(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)
	markRunning(t, job.ID, time.Now())

	require.NoError(t, svc.Run(ctx, job.ID))

	got, err := dao.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusRunning, got.Status)
	count, err := dao.CountDocumentsByImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.Resume(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotResumable)
	assert.ErrorIs(t, svc.Cancel(ctx, job.ID), ErrJobNotCancellable)
}

func TestRun_UnknownJobIsDropped(t *testing.T) {
	svc, _ := newService(t)
	assert.NoError(t, svc.Run(context.Background(), "missing"))
}

func TestHandleImportMessage_BadBody(t *testing.T) {
	svc, _ := newService(t)
	msg := &primitive.MessageExt{Message: primitive.Message{Body: []byte("{")}}
	assert.Error(t, svc.HandleImportMessage(context.Background(), msg))
}

func TestRun_MissingArchiveFailsJob(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)
	require.NoError(t, store.DeleteObject(ctx, job.ObjectName))

	require.NoError(t, svc.Run(ctx, job.ID))

	got, err := dao.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusFailed, got.Status)
	assert.Contains(t, string(got.Errors), "Failed to download archive")
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("pending job", func(t *testing.T) {
		svc, _ := newService(t)
		job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
		require.NoError(t, err)

		require.NoError(t, svc.Cancel(ctx, job.ID))

		got, err := dao.GetImportJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ImportStatusCancelled, got.Status)

		// 已取消的任务不会被执行
		require.NoError(t, svc.Run(ctx, job.ID))
		count, err := dao.CountDocumentsByImportJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("running job stops before the next file", func(t *testing.T) {
		svc, store := newService(t)
		job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
		require.NoError(t, err)

		store.FailPut = func(key string) error {
			if strings.HasPrefix(key, "associations/") {
				require.NoError(t, svc.Cancel(ctx, job.ID))
			}
			return nil
		}

		require.NoError(t, svc.Run(ctx, job.ID))

		got, snapshot, err := svc.Status(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ImportStatusCancelled, got.Status)
		assert.Equal(t, 1, got.DocumentsImported)
		assert.Contains(t, string(got.Warnings), "Import cancelled after 1 of 3 files")
		require.NotNil(t, snapshot)
		assert.Equal(t, progress.StageComplete, snapshot.Stage)
		assert.Less(t, snapshot.Percent, 100)
	})

	t.Run("unknown job", func(t *testing.T) {
		svc, _ := newService(t)
		assert.ErrorIs(t, svc.Cancel(ctx, "missing"), ErrJobNotFound)
	})

	t.Run("job whose runner stopped", func(t *testing.T) {
		svc, _ := newService(t)
		job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
		require.NoError(t, err)
		markRunning(t, job.ID, time.Now().Add(-time.Hour))

		require.NoError(t, svc.Cancel(ctx, job.ID))

		got, err := dao.GetImportJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ImportStatusCancelled, got.Status)
	})

	t.Run("finished job", func(t *testing.T) {
		svc, _ := newService(t)
		job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
		require.NoError(t, err)
		require.NoError(t, svc.Run(ctx, job.ID))

		assert.ErrorIs(t, svc.Cancel(ctx, job.ID), ErrJobNotCancellable)
	})
}

func TestResume(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)

	_, err = svc.Resume(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotResumable)

	require.NoError(t, svc.Cancel(ctx, job.ID))

	resumed, err := svc.Resume(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusPending, resumed.Status)

	require.NoError(t, svc.Run(ctx, job.ID))
	got, err := dao.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusCompleted, got.Status)
	assert.Equal(t, 2, got.DocumentsImported)

	_, err = svc.Resume(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestResume_JobWhoseRunnerStopped(t *testing.T) {
	svc, _ := newService(t)
	svc.SetRunLease(time.Minute)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)
	markRunning(t, job.ID, time.Now().Add(-2*time.Minute))

	resumed, err := svc.Resume(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusPending, resumed.Status)

	require.NoError(t, svc.Run(ctx, job.ID))
	got, err := dao.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusCompleted, got.Status)
	assert.Equal(t, 2, got.DocumentsImported)
}

func TestFail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "manager@acme.test", "acme.zip", acmeArchive(t))
	require.NoError(t, err)

	require.NoError(t, svc.Fail(ctx, job.ID, "failed to send import message"))

	got, snapshot, err := svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusFailed, got.Status)
	assert.Contains(t, string(got.Errors), "failed to send import message")
	require.NotNil(t, snapshot)
	assert.Equal(t, progress.StageError, snapshot.Stage)

	// 只影响等待中的任务
	require.NoError(t, svc.Fail(ctx, job.ID, "again"))
	got, err = dao.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(got.Errors), "again")

	_, err = svc.Resume(ctx, job.ID)
	require.NoError(t, err)
}
