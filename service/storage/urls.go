package storage

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

type URLStrategy string

const (
	StrategySigned URLStrategy = "signed"
	StrategyPublic URLStrategy = "public"
	StrategyDirect URLStrategy = "direct"
)

// 预签名地址在过期前这段时间内不再复用
const presignRefreshMargin = time.Minute

type CandidateURL struct {
	Strategy  URLStrategy `json:"strategy"`
	URL       string      `json:"url"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

type directURLer interface {
	DirectURL(key string) string
}

// URLResolver 为文档生成多种候选访问地址，并缓存预签名地址
type URLResolver struct {
	store   ObjectStore
	expires time.Duration
	now     func() time.Time

	mu     sync.Mutex
	signed map[string]CandidateURL
}

func NewURLResolver(store ObjectStore, expires time.Duration) *URLResolver {
	return &URLResolver{
		store:   store,
		expires: expires,
		now:     time.Now,
		signed:  make(map[string]CandidateURL),
	}
}

// CandidateURLs 按 signed、public、direct 的顺序返回可用地址
// 预签名失败时跳过该策略
func (r *URLResolver) CandidateURLs(ctx context.Context, key string) []CandidateURL {
	candidates := make([]CandidateURL, 0, 3)

	if signed, err := r.signedURL(ctx, key); err != nil {
		slog.Warn("Failed to presign document url", "object_name", key, "err", err)
	} else {
		candidates = append(candidates, signed)
	}

	if public := r.store.PublicURL(key); public != "" {
		candidates = append(candidates, CandidateURL{Strategy: StrategyPublic, URL: public})
	}

	if d, ok := r.store.(directURLer); ok {
		if direct := d.DirectURL(key); direct != "" {
			candidates = append(candidates, CandidateURL{Strategy: StrategyDirect, URL: direct})
		}
	}

	return candidates
}

func (r *URLResolver) signedURL(ctx context.Context, key string) (CandidateURL, error) {
	now := r.now()

	r.mu.Lock()
	cached, ok := r.signed[key]
	r.mu.Unlock()
	if ok && cached.ExpiresAt != nil && now.Add(presignRefreshMargin).Before(*cached.ExpiresAt) {
		return cached, nil
	}

	u, err := r.store.PresignGet(ctx, key, r.expires)
	if err != nil {
		return CandidateURL{}, err
	}
	expiresAt := now.Add(r.expires)
	candidate := CandidateURL{Strategy: StrategySigned, URL: u, ExpiresAt: &expiresAt}

	r.mu.Lock()
	r.signed[key] = candidate
	r.mu.Unlock()
	return candidate, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
