package documentstorage

import (
	"community-intelligence-backend/dao"
	"community-intelligence-backend/dao/daotest"
	"community-intelligence-backend/model"
	"community-intelligence-backend/service/progress"
	"community-intelligence-backend/service/storage/storagetest"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	store     *storagetest.MemoryStore
	progress  *progress.MemoryStore
	processor *Processor
	db        *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storagetest.NewMemoryStore()
	ps := progress.NewMemoryStore()
	return &fixture{
		store:     store,
		progress:  ps,
		processor: NewProcessor(store, ps, "associations"),
		db:        daotest.Open(t),
	}
}

func (f *fixture) documents(t *testing.T) []model.Document {
	t.Helper()
	var docs []model.Document
	require.NoError(t, f.db.Order("id ASC").Find(&docs).Error)
	return docs
}

func (f *fixture) properties(t *testing.T) []model.Property {
	t.Helper()
	var props []model.Property
	require.NoError(t, f.db.Order("id ASC").Find(&props).Error)
	return props
}

func TestProcessHierarchicalZip_TwoFilesSameUnit(t *testing.T) {
	f := newFixture(t)
	data := storagetest.Zip(t,
		storagetest.ZipEntry{Name: "AcmeHOA/"},
		storagetest.ZipEntry{Name: "AcmeHOA/100 Main St. Unit 5/"},
		storagetest.ZipEntry{Name: "AcmeHOA/100 Main St. Unit 5/lease.pdf", Body: "%PDF lease"},
		storagetest.ZipEntry{Name: "AcmeHOA/100 Main St. Unit 5/invoice.pdf", Body: "%PDF invoice"},
	)

	res := f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "acme.zip", Data: data}, Options{JobID: "job-1"})

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, "AcmeHOA", res.AssociationName)
	assert.Equal(t, 2, res.TotalFiles)
	assert.Equal(t, 2, res.DocumentsImported)
	assert.Equal(t, 0, res.DocumentsSkipped)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.CreatedOwners)
	require.Len(t, res.CreatedProperties, 1)
	assert.Equal(t, "5", res.CreatedProperties[0].UnitNumber)
	assert.Equal(t, "100 Main St.", res.CreatedProperties[0].Address)
	assert.Contains(t, res.Warnings, "Match summary: exact=1 fuzzy=0 created=1 failed=0")

	var associations []model.Association
	require.NoError(t, f.db.Find(&associations).Error)
	require.Len(t, associations, 1)
	assert.Equal(t, "AcmeHOA", associations[0].Name)
	assert.Equal(t, res.AssociationID, associations[0].ID)

	props := f.properties(t)
	require.Len(t, props, 1)
	assert.Equal(t, "5", props[0].UnitNumber)

	docs := f.documents(t)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, props[0].ID, d.PropertyID)
		assert.Equal(t, associations[0].ID, d.AssociationID)
		assert.Equal(t, "AcmeHOA/100 Main St. Unit 5", d.FolderPath)
		assert.Equal(t, "application/pdf", d.FileType)
		assert.Equal(t, "job-1", d.ImportJobID)
		assert.False(t, d.IsPublic)

		obj, ok := f.store.Object(d.ObjectName)
		require.True(t, ok, d.ObjectName)
		assert.Equal(t, "https://cdn.example.test/"+d.ObjectName, d.URL)
		assert.True(t, strings.HasPrefix(string(obj.Data), "%PDF"))
	}
	assert.Equal(t, model.CategoryLease, docs[0].Category)
	assert.Equal(t, model.CategoryFinancial, docs[1].Category)
}

func TestProcessHierarchicalZip_TopLevelFileIsSkipped(t *testing.T) {
	f := newFixture(t)
	data := storagetest.Zip(t, storagetest.ZipEntry{Name: "readme.txt", Body: "hello"})

	res := f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "upload.zip", Data: data}, Options{})

	require.True(t, res.Success)
	assert.Equal(t, "upload", res.AssociationName)
	assert.Equal(t, 1, res.TotalFiles)
	assert.Equal(t, 0, res.DocumentsImported)
	assert.Equal(t, 1, res.DocumentsSkipped)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "readme.txt")
	assert.Empty(t, f.documents(t))
	assert.Empty(t, f.properties(t))
	assert.Empty(t, f.store.Keys())
}

func TestProcessHierarchicalZip_ReusesExistingProperties(t *testing.T) {
	f := newFixture(t)
	acme := daotest.SeedAssociation(t, "AcmeHOA")
	unit5 := daotest.SeedProperty(t, acme.ID, "5", "100 Main St.")
	daotest.SeedProperty(t, acme.ID, "7", "100 Main St.")

	data := storagetest.Zip(t,
		storagetest.ZipEntry{Name: "AcmeHOA/100 Main Street Unit 5/insurance.pdf", Body: "x"},
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 9/roof repair.pdf", Body: "y"},
	)

	res := f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "acme.zip", Data: data}, Options{})

	require.True(t, res.Success)
	assert.Equal(t, acme.ID, res.AssociationID)
	assert.Equal(t, 2, res.DocumentsImported)
	require.Len(t, res.CreatedProperties, 1)
	assert.Equal(t, "9", res.CreatedProperties[0].UnitNumber)
	assert.Equal(t, "Unit 9", res.CreatedProperties[0].Address)

	docs := f.documents(t)
	require.Len(t, docs, 2)
	assert.Equal(t, unit5.ID, docs[0].PropertyID)
	assert.Equal(t, model.CategoryInsurance, docs[0].Category)
	assert.Equal(t, model.CategoryMaintenance, docs[1].Category)
	assert.Len(t, f.properties(t), 3)
}

func TestProcessHierarchicalZip_Cancel(t *testing.T) {
	f := newFixture(t)
	data := storagetest.Zip(t,
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/a.pdf", Body: "a"},
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 2/b.pdf", Body: "b"},
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 3/c.pdf", Body: "c"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last progress.Snapshot
	opts := Options{
		JobID: "job-cancel",
		OnProgress: func(s progress.Snapshot) {
			last = s
			if s.Stage == progress.StageUploading && s.FilesProcessed == 1 {
				cancel()
			}
		},
	}

	res := f.processor.ProcessHierarchicalZip(ctx, Archive{Name: "acme.zip", Data: data}, opts)

	require.True(t, res.Success)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 1, res.DocumentsImported)
	assert.Equal(t, 3, res.TotalFiles)
	assert.Contains(t, res.Warnings, "Import cancelled after 1 of 3 files")

	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Less(t, last.FilesProcessed, last.TotalFiles)
	// 1/3个文件完成时的上传进度 20 + 70/3
	assert.Equal(t, 43, last.Percent)

	stored, err := f.progress.Load(context.Background(), "job-cancel")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, progress.StageComplete, stored.Stage)
	assert.Equal(t, 1, stored.FilesProcessed)
	assert.Equal(t, 43, stored.Percent)

	// 取消前导入的文档保留
	assert.Len(t, f.documents(t), 1)
}

func TestProcessHierarchicalZip_ProgressPercent(t *testing.T) {
	f := newFixture(t)
	data := storagetest.Zip(t,
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/a.pdf", Body: "a"},
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/b.pdf", Body: "b"},
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 2/c.pdf", Body: "c"},
	)

	f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "acme.zip", Data: data}, Options{JobID: "job-p"})

	var uploading []progress.Snapshot
	history := f.progress.History("job-p")
	for _, s := range history {
		if s.Stage == progress.StageUploading && s.FilesProcessed > 0 {
			uploading = append(uploading, s)
		}
	}
	require.Len(t, uploading, 3)
	assert.Equal(t, 43, uploading[0].Percent)
	assert.Equal(t, 66, uploading[1].Percent)
	assert.Equal(t, 90, uploading[2].Percent)
	assert.Equal(t, 2, uploading[2].UnitsProcessed)
	assert.Equal(t, 2, uploading[2].TotalUnits)

	require.NotEmpty(t, history)
	assert.Equal(t, progress.StageAnalyzing, history[0].Stage)
	final := history[len(history)-1]
	assert.Equal(t, progress.StageComplete, final.Stage)
	assert.Equal(t, 100, final.Percent)
}

func TestProcessHierarchicalZip_CorruptArchive(t *testing.T) {
	f := newFixture(t)

	res := f.processor.ProcessHierarchicalZip(context.Background(),
		Archive{Name: "broken.zip", Data: []byte("not a zip")}, Options{JobID: "job-bad"})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Failed to extract archive")
	assert.Zero(t, res.DocumentsImported)
	assert.Zero(t, res.DocumentsSkipped)
	assert.Zero(t, res.TotalFiles)

	var count int64
	require.NoError(t, f.db.Model(&model.Association{}).Count(&count).Error)
	assert.Zero(t, count)

	stored, err := f.progress.Load(context.Background(), "job-bad")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, progress.StageError, stored.Stage)
}

func TestProcessHierarchicalZip_ExtractionLimitFailsBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)
	f.processor.LimitExtractedBytes(1 << 20)
	data := storagetest.Zip(t,
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/a.pdf", Body: "a"},
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 2/zeros.bin", Body: strings.Repeat("\x00", 8<<20)},
	)

	res := f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "bomb.zip", Data: data}, Options{JobID: "job-bomb"})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Failed to extract archive bomb.zip")
	assert.Contains(t, res.Errors[0], ErrExtractedTooLarge.Error())
	assert.Zero(t, res.TotalFiles)
	assert.Empty(t, f.store.Keys())

	var count int64
	require.NoError(t, f.db.Model(&model.Association{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessHierarchicalZip_EmptyArchive(t *testing.T) {
	f := newFixture(t)
	data := storagetest.Zip(t, storagetest.ZipEntry{Name: "AcmeHOA/"}, storagetest.ZipEntry{Name: "__MACOSX/._x"})

	res := f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "empty.zip", Data: data}, Options{})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "contains no files")
}

func TestProcessHierarchicalZip_UploadFailureSkipsFile(t *testing.T) {
	f := newFixture(t)
	f.store.FailPut = func(key string) error {
		if strings.HasSuffix(key, "_b.pdf") {
			return errors.New("bucket unavailable")
		}
		return nil
	}
	data := storagetest.Zip(t,
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/a.pdf", Body: "a"},
		storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/b.pdf", Body: "b"},
	)

	res := f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "acme.zip", Data: data}, Options{})

	require.True(t, res.Success)
	assert.Equal(t, 1, res.DocumentsImported)
	assert.Equal(t, 1, res.DocumentsSkipped)
	assert.Empty(t, res.Errors)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "b.pdf")
	assert.Contains(t, res.Warnings[0], "bucket unavailable")
	assert.Len(t, f.documents(t), 1)
}

func TestProcessHierarchicalZip_DocumentInsertFailureRemovesObject(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("fail_documents", func(tx *gorm.DB) {
		if tx.Statement.Table == "documents" {
			_ = tx.AddError(errors.New("documents table locked"))
		}
	}))
	data := storagetest.Zip(t, storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/a.pdf", Body: "a"})

	res := f.processor.ProcessHierarchicalZip(context.Background(), Archive{Name: "acme.zip", Data: data}, Options{})

	require.True(t, res.Success)
	assert.Equal(t, 0, res.DocumentsImported)
	assert.Equal(t, 1, res.DocumentsSkipped)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "documents table locked")
	assert.Empty(t, f.store.Keys())
	// 单元在文档写入前已创建，不回滚
	assert.Len(t, f.properties(t), 1)
}

func TestResumeRestartsFromScratch(t *testing.T) {
	f := newFixture(t)
	data := storagetest.Zip(t, storagetest.ZipEntry{Name: "AcmeHOA/Unit 1/a.pdf", Body: "a"})
	archive := Archive{Name: "acme.zip", Data: data}

	first := f.processor.ProcessHierarchicalZip(context.Background(), archive, Options{})
	second := f.processor.Resume(context.Background(), archive, Options{})

	assert.Equal(t, 1, first.DocumentsImported)
	assert.Equal(t, 1, second.DocumentsImported)
	assert.Equal(t, first.AssociationID, second.AssociationID)
	assert.Len(t, f.documents(t), 2)
	assert.Len(t, f.properties(t), 1)

	docs, err := dao.GetDocumentsByAssociationID(context.Background(), first.AssociationID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
