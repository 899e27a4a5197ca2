package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore 对象存储的最小接口，文档与导入压缩包都存放在这里
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)

	// PublicURL 公共读访问地址，未配置公共访问时返回空字符串
	PublicURL(key string) string
}

// ArchiveKey 导入压缩包在对象存储上的路径
func ArchiveKey(prefix, jobID string) string {
	return path.Join(prefix, jobID+".zip")
}

// DocumentKey 文档在对象存储上的路径，保留压缩包内的目录结构，
// 文件名前加随机前缀避免同名覆盖
func DocumentKey(prefix string, associationID uint, folderPath, filename string) string {
	folder := sanitizeFolder(folderPath)
	name := uuid.NewString()[:8] + "_" + path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return path.Join(prefix, fmt.Sprint(associationID), folder, name)
}

func sanitizeFolder(folderPath string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(folderPath, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}
