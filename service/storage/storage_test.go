package storage_test

import (
	"community-intelligence-backend/service/storage"
	"community-intelligence-backend/service/storage/storagetest"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	key := storage.DocumentKey("associations", 7, "AcmeHOA/100 Main St. Unit 5", "lease.pdf")
	assert.True(t, strings.HasPrefix(key, "associations/7/AcmeHOA/100 Main St. Unit 5/"), key)
	assert.True(t, strings.HasSuffix(key, "_lease.pdf"), key)

	t.Run("parent segments cannot escape the prefix", func(t *testing.T) {
		key := storage.DocumentKey("associations", 7, "../../etc", `..\passwd`)
		assert.True(t, strings.HasPrefix(key, "associations/7/etc/"), key)
		assert.NotContains(t, key, "..")
	})
}

func TestArchiveKey(t *testing.T) {
	assert.Equal(t, "imports/abc.zip", storage.ArchiveKey("imports", "abc"))
}

func TestURLResolver_CandidateURLs(t *testing.T) {
	ctx := context.Background()

	t.Run("signed before public", func(t *testing.T) {
		store := storagetest.NewMemoryStore()
		r := storage.NewURLResolver(store, 10*time.Minute)

		urls := r.CandidateURLs(ctx, "a/b.pdf")
		require.Len(t, urls, 2)
		assert.Equal(t, storage.StrategySigned, urls[0].Strategy)
		require.NotNil(t, urls[0].ExpiresAt)
		assert.Equal(t, storage.StrategyPublic, urls[1].Strategy)
		assert.Equal(t, "https://cdn.example.test/a/b.pdf", urls[1].URL)
	})

	t.Run("signed url is cached", func(t *testing.T) {
		store := storagetest.NewMemoryStore()
		r := storage.NewURLResolver(store, 10*time.Minute)

		first := r.CandidateURLs(ctx, "a/b.pdf")
		second := r.CandidateURLs(ctx, "a/b.pdf")
		assert.Equal(t, first[0].URL, second[0].URL)
		assert.Equal(t, 1, store.Presigns)
	})

	t.Run("presign failure drops the signed candidate", func(t *testing.T) {
		store := storagetest.NewMemoryStore()
		store.PresignErr = errors.New("no credentials")
		r := storage.NewURLResolver(store, time.Minute)

		urls := r.CandidateURLs(ctx, "a/b.pdf")
		require.Len(t, urls, 1)
		assert.Equal(t, storage.StrategyPublic, urls[0].Strategy)
	})
}
