package storage

import (
	"community-intelligence-backend/config"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	osscredentials "github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
	"github.com/aliyun/credentials-go/credentials"
)

// OSSStore 基于阿里云OSS的对象存储
type OSSStore struct {
	client        *oss.Client
	bucket        string
	region        string
	publicBaseURL string
}

var _ ObjectStore = &OSSStore{}

func NewOSSStore(cfg config.OSSConfig) (*OSSStore, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("oss bucket name is required")
	}

	provider, err := credentialsProvider(cfg)
	if err != nil {
		return nil, err
	}

	ossCfg := &oss.Config{
		Region:              oss.Ptr(cfg.Region),
		CredentialsProvider: provider,
	}
	if cfg.Endpoint != "" {
		ossCfg.Endpoint = oss.Ptr(cfg.Endpoint)
	}

	return &OSSStore{
		client:        oss.NewClient(ossCfg),
		bucket:        cfg.BucketName,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// credentialsProvider 配置了AccessKey时使用静态凭证，否则使用默认凭证链
func credentialsProvider(cfg config.OSSConfig) (osscredentials.CredentialsProvider, error) {
	if cfg.AccessKeyID != "" && cfg.AccessKeySecret != "" {
		return osscredentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret), nil
	}

	cred, err := credentials.NewCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create default credential chain: %v", err)
	}

	return osscredentials.CredentialsProviderFunc(func(ctx context.Context) (osscredentials.Credentials, error) {
		model, err := cred.GetCredential()
		if err != nil {
			return osscredentials.Credentials{}, fmt.Errorf("failed to get credential: %v", err)
		}
		return osscredentials.Credentials{
			AccessKeyID:     deref(model.AccessKeyId),
			AccessKeySecret: deref(model.AccessKeySecret),
			SecurityToken:   deref(model.SecurityToken),
		}, nil
	}), nil
}

func (s *OSSStore) PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	req := &oss.PutObjectRequest{
		Bucket:        oss.Ptr(s.bucket),
		Key:           oss.Ptr(key),
		Body:          body,
		ContentLength: oss.Ptr(size),
	}
	if contentType != "" {
		req.ContentType = oss.Ptr(contentType)
	}

	if _, err := s.client.PutObject(ctx, req); err != nil {
		return fmt.Errorf("failed to put object %s: %v", key, err)
	}
	return nil
}

func (s *OSSStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from oss: %v", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %v", err)
	}
	return data, nil
}

func (s *OSSStore) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &oss.DeleteObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %v", key, err)
	}
	return nil
}

func (s *OSSStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	result, err := s.client.Presign(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
	}, oss.PresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %v", key, err)
	}
	return result.URL, nil
}

func (s *OSSStore) PublicURL(key string) string {
	if s.publicBaseURL == "" {
		return ""
	}
	return s.publicBaseURL + "/" + escapeKey(key)
}

// DirectURL 不经过CDN或自定义域名的bucket虚拟主机地址
func (s *OSSStore) DirectURL(key string) string {
	if s.region == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.oss-%s.aliyuncs.com/%s", s.bucket, s.region, escapeKey(key))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
