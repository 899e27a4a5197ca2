package documentstorage

import (
	"archive/zip"
	"bytes"
	"community-intelligence-backend/service/storage/storagetest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFiles(t *testing.T) {
	data := storagetest.Zip(t,
		storagetest.ZipEntry{Name: "Lakeside/"},
		storagetest.ZipEntry{Name: "Lakeside/Unit 4/"},
		storagetest.ZipEntry{Name: "Lakeside/Unit 4/notes.txt", Body: "hello"},
		storagetest.ZipEntry{Name: "Lakeside/Unit 4/.DS_Store", Body: "junk"},
		storagetest.ZipEntry{Name: "__MACOSX/Lakeside/._notes.txt", Body: "junk"},
		storagetest.ZipEntry{Name: "top.bin", Body: "\x00\x01"},
	)

	files, err := extractFiles(data, DefaultMaxExtractedBytes)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "notes.txt", files[0].Filename)
	assert.Equal(t, "Lakeside/Unit 4/notes.txt", files[0].Path)
	assert.Equal(t, "Lakeside/Unit 4", files[0].FolderPath())
	assert.Equal(t, int64(5), files[0].Size)
	assert.Contains(t, files[0].ContentType, "text/plain")

	assert.Equal(t, "", files[1].FolderPath())
	assert.NotEmpty(t, files[1].ContentType)
}

func TestExtractFiles_NotAZip(t *testing.T) {
	_, err := extractFiles([]byte("plain text"), DefaultMaxExtractedBytes)
	assert.Error(t, err)
}

func TestExtractFiles_ExtractionLimit(t *testing.T) {
	t.Run("single entry expanding past the limit", func(t *testing.T) {
		data := storagetest.Zip(t, storagetest.ZipEntry{
			Name: "Lakeside/Unit 1/zeros.bin",
			Body: strings.Repeat("\x00", 4<<20),
		})
		require.Less(t, len(data), 64<<10)

		_, err := extractFiles(data, 1<<20)
		assert.ErrorIs(t, err, ErrExtractedTooLarge)
	})

	t.Run("entries adding up past the limit", func(t *testing.T) {
		data := storagetest.Zip(t,
			storagetest.ZipEntry{Name: "Lakeside/Unit 1/a.txt", Body: strings.Repeat("a", 60)},
			storagetest.ZipEntry{Name: "Lakeside/Unit 2/b.txt", Body: strings.Repeat("b", 60)},
		)

		_, err := extractFiles(data, 100)
		assert.ErrorIs(t, err, ErrExtractedTooLarge)

		files, err := extractFiles(data, 120)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("read stops at the limit", func(t *testing.T) {
		data := storagetest.Zip(t, storagetest.ZipEntry{Name: "big.txt", Body: strings.Repeat("x", 1000)})
		reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)

		_, err = readEntry(reader.File[0], 999)
		assert.ErrorIs(t, err, ErrExtractedTooLarge)

		content, err := readEntry(reader.File[0], 1000)
		require.NoError(t, err)
		assert.Len(t, content, 1000)
	})
}

func TestArchiveBaseName(t *testing.T) {
	assert.Equal(t, "upload", archiveBaseName("upload.zip"))
	assert.Equal(t, "Lakeside HOA", archiveBaseName(`C:\tmp\Lakeside HOA.zip`))
	assert.Equal(t, "", archiveBaseName(""))
}
