package s3client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "oauth-flow-test-2026-10-15T09-30-00")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	files := map[string]string{
		"test-results.json":  `{"success":true}`,
		"session-summary.md": "# Summary\n",
		"01-page-loaded.png": "png",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "skip.txt"), []byte("x"), 0o644))
	return dir
}

func TestUploadDir_CopiesRegularFiles(t *testing.T) {
	t.Parallel()
	client := TestClient(t, "runs")
	ctx := context.Background()
	dir := writeBundle(t)

	keys, err := client.UploadDir(ctx, dir, "/ci/")
	require.NoError(t, err)
	require.Equal(t, []string{
		"ci/oauth-flow-test-2026-10-15T09-30-00/01-page-loaded.png",
		"ci/oauth-flow-test-2026-10-15T09-30-00/session-summary.md",
		"ci/oauth-flow-test-2026-10-15T09-30-00/test-results.json",
	}, keys)

	data, err := client.GetObject(ctx, keys[2])
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true}`, string(data))
	require.Equal(t, "s3://runs/"+keys[0], client.URI(keys[0]))
}

func TestUploadDir_EmptyPrefix(t *testing.T) {
	t.Parallel()
	client := TestClient(t, "runs")
	keys, err := client.UploadDir(context.Background(), writeBundle(t), "")
	require.NoError(t, err)
	require.Equal(t, "oauth-flow-test-2026-10-15T09-30-00/01-page-loaded.png", keys[0])
}

func TestUploadDir_MissingDirectory(t *testing.T) {
	t.Parallel()
	client := TestClient(t, "runs")
	_, err := client.UploadDir(context.Background(), filepath.Join(t.TempDir(), "absent"), "ci")
	require.Error(t, err)
}

func TestGetObject_NotFound(t *testing.T) {
	t.Parallel()
	client := TestClient(t, "runs")
	_, err := client.GetObject(context.Background(), "missing/key")
	require.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
}

func TestContentType(t *testing.T) {
	t.Parallel()
	require.Equal(t, "text/markdown; charset=utf-8", contentType("session-summary.md"))
	require.Equal(t, "video/webm", contentType("abc.webm"))
	require.Equal(t, "image/png", contentType("01.png"))
	require.Equal(t, "application/octet-stream", contentType("noext"))
}
