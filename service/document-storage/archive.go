package documentstorage

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

// Archive 调用方上传的压缩包
type Archive struct {
	Name string
	Data []byte
}

// ExtractedFile 压缩包中的一个文件
type ExtractedFile struct {
	Filename    string
	Path        string
	Size        int64
	ContentType string

	data []byte
}

// FolderPath 文件所在目录，位于压缩包根目录时为空
func (f ExtractedFile) FolderPath() string {
	dir := path.Dir(f.Path)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// DefaultMaxExtractedBytes 解压后总大小的默认上限
const DefaultMaxExtractedBytes int64 = 2 << 30

var ErrExtractedTooLarge = errors.New("archive expands beyond the extraction limit")

// extractFiles 在内存中解压，跳过目录与macOS元数据文件
// 所有文件解压后的总大小超过maxBytes时返回ErrExtractedTooLarge
func extractFiles(data []byte, maxBytes int64) ([]ExtractedFile, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %v", err)
	}

	remaining := maxBytes
	files := make([]ExtractedFile, 0, len(reader.File))
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(strings.ReplaceAll(entry.Name, "\\", "/"), "/")
		if isJunkEntry(name) {
			continue
		}

		// 头部声明的大小不可信，实际读取时仍需限制
		if entry.UncompressedSize64 > uint64(remaining) {
			return nil, fmt.Errorf("%w: %s declares %d bytes, %d bytes left", ErrExtractedTooLarge, name, entry.UncompressedSize64, remaining)
		}
		content, err := readEntry(entry, remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		remaining -= int64(len(content))

		files = append(files, ExtractedFile{
			Filename:    path.Base(name),
			Path:        name,
			Size:        int64(len(content)),
			ContentType: contentType(name, content),
			data:        content,
		})
	}
	return files, nil
}

func readEntry(entry *zip.File, limit int64) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, ErrExtractedTooLarge
	}
	return content, nil
}

func isJunkEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	base := path.Base(name)
	return base == ".DS_Store" || base == "Thumbs.db" || strings.HasPrefix(base, "._")
}

func contentType(name string, content []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(content)
}

// archiveBaseName 去除扩展名的压缩包文件名
func archiveBaseName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
