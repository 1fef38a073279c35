package browser_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/flowcheck/internal/browser"
	"github.com/kuitang/flowcheck/internal/browser/browsertest"
	"github.com/kuitang/flowcheck/internal/results"
)

func TestShooter_RecordsOnlyWrittenScreenshots(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	page := &browsertest.Page{}
	rec := results.New("t", "http://localhost:3000")
	shot := browser.Shooter{Page: page, Rec: rec, Dir: dir}

	require.NoError(t, shot.Take("01-initial-navigation.png"))
	_, err := os.Stat(filepath.Join(dir, "01-initial-navigation.png"))
	require.NoError(t, err)

	page.ScreenshotErr = errors.New("target closed")
	require.Error(t, shot.Take("02-login-page.png"))

	require.Equal(t, []string{"01-initial-navigation.png"}, rec.Snapshot().Screenshots)
}

func TestSettle_WaitsOrStopsOnCancel(t *testing.T) {
	t.Parallel()
	start := time.Now()
	require.NoError(t, browser.Settle(context.Background(), 20*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, browser.Settle(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	require.ErrorIs(t, browser.Settle(ctx, time.Hour), context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}
