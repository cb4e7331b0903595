package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketName = "test-bucket"

func TestS3ObjectStore(t *testing.T) {
	skipIfShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupObjectStore(t, ctx)

	require.NoError(t, objectStore.CreateBucket(ctx, bucketName))
	require.NoError(t, objectStore.CreateBucket(ctx, bucketName), "creating an existing bucket should succeed")
	require.NoError(t, objectStore.CheckAccess(ctx, bucketName))

	t.Run("UploadAndDownload", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "best.pt")
		require.NoError(t, os.WriteFile(src, []byte("weights"), 0644))

		require.NoError(t, objectStore.UploadFile(ctx, bucketName, "run/best.pt", src))

		dst := filepath.Join(t.TempDir(), "nested", "best.pt")
		require.NoError(t, objectStore.DownloadObject(ctx, bucketName, "run/best.pt", dst))

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "weights", string(data))
	})

	t.Run("DownloadMissingKey", func(t *testing.T) {
		dir := t.TempDir()
		err := objectStore.DownloadObject(ctx, bucketName, "run/missing.pt", filepath.Join(dir, "missing.pt"))
		assert.Error(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("MissingBucket", func(t *testing.T) {
		assert.Error(t, objectStore.CheckAccess(ctx, "no-such-bucket"))
	})
}
