package documentstorage

import (
	"bytes"
	"community-intelligence-backend/dao"
	"community-intelligence-backend/model"
	"community-intelligence-backend/service/metrics"
	"community-intelligence-backend/service/progress"
	propertymatcher "community-intelligence-backend/service/property-matcher"
	"community-intelligence-backend/service/storage"
	unitparser "community-intelligence-backend/service/unit-parser"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultAssociationName = "Imported Documents"

// 上传阶段的进度区间为 [20, 90]
const (
	uploadPercentBase  = 20
	uploadPercentRange = 70
)

type CreatedProperty struct {
	ID         uint   `json:"id"`
	Address    string `json:"address"`
	UnitNumber string `json:"unit_number"`
}

// Result 一次导入的汇总结果
type Result struct {
	Success           bool              `json:"success"`
	AssociationID     uint              `json:"association_id"`
	AssociationName   string            `json:"association_name"`
	DocumentsImported int               `json:"documents_imported"`
	DocumentsSkipped  int               `json:"documents_skipped"`
	TotalFiles        int               `json:"total_files"`
	CreatedProperties []CreatedProperty `json:"created_properties"`

	// 目前不创建业主，始终为空
	CreatedOwners []string `json:"created_owners"`

	Errors           []string `json:"errors"`
	Warnings         []string `json:"warnings"`
	Cancelled        bool     `json:"cancelled"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

type Options struct {
	// 进度快照在进度存储中的key，为空时不保存
	JobID     string
	UserEmail string

	// 每次阶段切换和每处理完一个文件后调用
	OnProgress func(progress.Snapshot)
}

// Processor 压缩包导入流程：解压、确定协会、逐个文件匹配单元并上传
type Processor struct {
	store          storage.ObjectStore
	progress       progress.Store
	documentPrefix string
	maxExtracted   int64
	now            func() time.Time
}

// NewProcessor progressStore 可以为nil
func NewProcessor(store storage.ObjectStore, progressStore progress.Store, documentPrefix string) *Processor {
	return &Processor{
		store:          store,
		progress:       progressStore,
		documentPrefix: documentPrefix,
		maxExtracted:   DefaultMaxExtractedBytes,
		now:            time.Now,
	}
}

// LimitExtractedBytes 设置解压后总大小的上限，超过时整个导入失败
func (p *Processor) LimitExtractedBytes(n int64) *Processor {
	if n > 0 {
		p.maxExtracted = n
	}
	return p
}

// run 单次导入的状态，只在一个goroutine中使用
type run struct {
	p       *Processor
	opts    Options
	started time.Time
	result  *Result

	totalFiles     int
	filesProcessed int
	totalUnits     int
	units          map[uint]struct{}
	matchStats     map[propertymatcher.MatchType]int
	lastPercent    int
}

// ProcessHierarchicalZip 导入形如 "协会/地址 Unit 号/文件" 结构的压缩包
// 文件按顺序逐个处理；ctx 被取消时在下一个文件开始前停止，已导入的文档保留
func (p *Processor) ProcessHierarchicalZip(ctx context.Context, archive Archive, opts Options) *Result {
	r := &run{
		p:       p,
		opts:    opts,
		started: p.now(),
		result: &Result{
			CreatedProperties: []CreatedProperty{},
			CreatedOwners:     []string{},
			Errors:            []string{},
			Warnings:          []string{},
		},
		units:      make(map[uint]struct{}),
		matchStats: make(map[propertymatcher.MatchType]int),
	}
	return r.execute(ctx, archive)
}

// Resume 没有断点信息，重新处理整个压缩包
func (p *Processor) Resume(ctx context.Context, archive Archive, opts Options) *Result {
	slog.Info("Resuming import from scratch", "job_id", opts.JobID, "archive", archive.Name)
	return p.ProcessHierarchicalZip(ctx, archive, opts)
}

func (r *run) execute(ctx context.Context, archive Archive) *Result {
	r.report(ctx, progress.StageAnalyzing, "Extracting archive", 5)

	files, err := extractFiles(archive.Data, r.p.maxExtracted)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("Failed to extract archive %s: %v", archive.Name, err))
	}
	if len(files) == 0 {
		return r.fail(ctx, fmt.Sprintf("Archive %s contains no files", archive.Name))
	}
	r.totalFiles = len(files)
	r.totalUnits = countDistinctUnits(files)

	associationName := unitparser.ExtractAssociationName(files[0].Path)
	if associationName == "" {
		associationName = archiveBaseName(archive.Name)
	}
	if associationName == "" {
		associationName = defaultAssociationName
	}
	r.report(ctx, progress.StageAnalyzing,
		fmt.Sprintf("Found %d files for %s", len(files), associationName), 10)

	r.report(ctx, progress.StageCreatingProperties, "Resolving association "+associationName, 15)
	association, created, err := dao.FindOrCreateAssociation(ctx, associationName)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("Failed to resolve association %s: %v", associationName, err))
	}
	if created {
		slog.Info("Created association", "association_id", association.ID, "name", association.Name)
	}
	r.result.AssociationID = association.ID
	r.result.AssociationName = association.Name

	existing, err := dao.GetPropertiesByAssociationID(ctx, association.ID)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("Failed to load properties of %s: %v", association.Name, err))
	}
	index := propertymatcher.NewIndex(existing)

	r.result.TotalFiles = len(files)
	r.report(ctx, progress.StageUploading, fmt.Sprintf("Importing %d files", len(files)), uploadPercentBase)

	for _, file := range files {
		if ctx.Err() != nil {
			r.result.Cancelled = true
			r.result.Warnings = append(r.result.Warnings,
				fmt.Sprintf("Import cancelled after %d of %d files", r.filesProcessed, r.totalFiles))
			break
		}

		// 取消只在文件之间生效，已开始的文件完整处理
		r.processFile(context.WithoutCancel(ctx), association, index, file)
		r.filesProcessed++
		r.report(ctx, progress.StageUploading, "Processed "+file.Path, r.uploadPercent())
	}

	return r.complete(ctx)
}

// processFile 单个文件的失败只记录到结果中，不影响后续文件
func (r *run) processFile(ctx context.Context, association *model.Association, index *propertymatcher.Index, file ExtractedFile) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic while importing file", "path", file.Path, "panic", rec)
			r.skip(fmt.Sprintf("%s: unexpected error: %v", file.Filename, rec), true)
		}
	}()

	match := propertymatcher.FindOrCreateProperty(ctx, file.Path, association.ID, index)
	r.matchStats[match.MatchType]++
	metrics.PropertyMatchesTotal.WithLabelValues(string(match.MatchType)).Inc()

	if match.Property == nil {
		slog.Debug("Skipping file without property", "path", file.Path, "reason", match.Reason)
		r.skip(fmt.Sprintf("%s: %s", file.Path, match.Reason), true)
		return
	}

	slog.Debug("Matched property",
		"path", file.Path,
		"property_id", match.Property.ID,
		"match_type", match.MatchType,
		"confidence", match.Confidence,
	)
	if match.MatchType == propertymatcher.MatchCreated {
		r.result.CreatedProperties = append(r.result.CreatedProperties, CreatedProperty{
			ID:         match.Property.ID,
			Address:    match.Property.Address,
			UnitNumber: match.Property.UnitNumber,
		})
	}
	r.units[match.Property.ID] = struct{}{}

	if err := r.storeDocument(ctx, association, match.Property, file); err != nil {
		slog.Warn("Failed to store document", "path", file.Path, "err", err)
		r.skip(fmt.Sprintf("%s: %v", file.Filename, err), false)
		return
	}

	r.result.DocumentsImported++
	metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeImported).Inc()
}

// storeDocument 上传文件并写入文档记录，写入失败时删除已上传的对象
func (r *run) storeDocument(ctx context.Context, association *model.Association, property *model.Property, file ExtractedFile) error {
	key := storage.DocumentKey(r.p.documentPrefix, association.ID, file.FolderPath(), file.Filename)
	if err := r.p.store.PutObject(ctx, key, file.ContentType, bytes.NewReader(file.data), file.Size); err != nil {
		return fmt.Errorf("failed to upload: %v", err)
	}

	url := r.p.store.PublicURL(key)
	if url == "" {
		url = key
	}

	document := &model.Document{
		AssociationID: association.ID,
		PropertyID:    property.ID,
		Name:          file.Filename,
		URL:           url,
		ObjectName:    key,
		FileType:      file.ContentType,
		FileSize:      file.Size,
		Category:      CategorizeDocument(file.Filename),
		FolderPath:    file.FolderPath(),
		IsPublic:      false,
		ImportJobID:   r.opts.JobID,
	}
	if err := dao.CreateDocument(ctx, document); err != nil {
		if delErr := r.p.store.DeleteObject(context.WithoutCancel(ctx), key); delErr != nil {
			slog.Warn("Failed to delete orphaned object", "object_name", key, "err", delErr)
		}
		return fmt.Errorf("failed to save document record: %v", err)
	}
	return nil
}

// skip asError 为 true 时记录为错误，否则记录为警告
func (r *run) skip(message string, asError bool) {
	r.result.DocumentsSkipped++
	metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
	if asError {
		r.result.Errors = append(r.result.Errors, message)
	} else {
		r.result.Warnings = append(r.result.Warnings, message)
	}
}

func (r *run) complete(ctx context.Context) *Result {
	r.result.Success = true
	r.result.Warnings = append(r.result.Warnings, fmt.Sprintf(
		"Match summary: exact=%d fuzzy=%d created=%d failed=%d",
		r.matchStats[propertymatcher.MatchExact],
		r.matchStats[propertymatcher.MatchFuzzy],
		r.matchStats[propertymatcher.MatchCreated],
		r.matchStats[propertymatcher.MatchFailed],
	))
	r.finish()

	message := fmt.Sprintf("Imported %d of %d files", r.result.DocumentsImported, r.totalFiles)
	percent := 100
	if r.result.Cancelled {
		// 未处理完的任务保留取消时的进度
		message = "Cancelled: " + message
		percent = r.lastPercent
	}
	r.report(ctx, progress.StageComplete, message, percent)

	status := "completed"
	if r.result.Cancelled {
		status = "cancelled"
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()

	slog.Info("Archive import finished",
		"job_id", r.opts.JobID,
		"association_id", r.result.AssociationID,
		"imported", r.result.DocumentsImported,
		"skipped", r.result.DocumentsSkipped,
		"total", r.result.TotalFiles,
		"cancelled", r.result.Cancelled,
		"duration_ms", r.result.ProcessingTimeMs,
	)
	return r.result
}

// fail 整体失败：不返回任何计数
func (r *run) fail(ctx context.Context, message string) *Result {
	slog.Error("Archive import failed", "job_id", r.opts.JobID, "err", message)

	r.result = &Result{
		Success:           false,
		CreatedProperties: []CreatedProperty{},
		CreatedOwners:     []string{},
		Errors:            []string{message},
		Warnings:          []string{},
	}
	r.finish()
	r.report(ctx, progress.StageError, message, r.lastPercent)
	metrics.RunsTotal.WithLabelValues("failed").Inc()
	return r.result
}

func (r *run) finish() {
	elapsed := r.p.now().Sub(r.started)
	r.result.ProcessingTimeMs = elapsed.Milliseconds()
	metrics.RunDuration.Observe(elapsed.Seconds())
}

func (r *run) uploadPercent() int {
	if r.totalFiles == 0 {
		return uploadPercentBase
	}
	return uploadPercentBase + r.filesProcessed*uploadPercentRange/r.totalFiles
}

// report 通知回调并保存进度快照，保存失败不影响导入
func (r *run) report(ctx context.Context, stage progress.Stage, message string, percent int) {
	r.lastPercent = percent
	snapshot := progress.Snapshot{
		JobID:          r.opts.JobID,
		Stage:          stage,
		Message:        message,
		Percent:        percent,
		FilesProcessed: r.filesProcessed,
		TotalFiles:     r.totalFiles,
		UnitsProcessed: len(r.units),
		TotalUnits:     r.totalUnits,
		UpdatedAt:      r.p.now(),
	}

	if r.opts.OnProgress != nil {
		r.opts.OnProgress(snapshot)
	}

	if r.p.progress == nil || r.opts.JobID == "" {
		return
	}
	// 取消后仍需写入最终状态
	if err := r.p.progress.Save(context.WithoutCancel(ctx), snapshot); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Failed to save import progress", "job_id", r.opts.JobID, "err", err)
	}
}

// countDistinctUnits 预估压缩包涉及的单元数量
func countDistinctUnits(files []ExtractedFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		if info := unitparser.ParseUnitFromPath(f.Path); info != nil {
			seen[strings.ToLower(info.UnitNumber)] = struct{}{}
		}
	}
	return len(seen)
}
