package spreads_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/flipbook/internal/spreads"
	"github.com/lehigh-university-libraries/flipbook/internal/tools"
	"github.com/lehigh-university-libraries/flipbook/internal/tools/toolstest"
)

type fixture struct {
	name          string
	width, height int
}

func setup(t *testing.T, files []fixture) (string, *spreads.Splitter, *toolstest.Runner) {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, toolstest.WriteJPEG(filepath.Join(dir, f.name), f.width, f.height))
	}
	runner := toolstest.NewRunner("magick")
	m, err := tools.NewImageMagick(runner)
	require.NoError(t, err)
	return dir, spreads.New(m, 0), runner
}

func assertSize(t *testing.T, path string, width, height int) {
	t.Helper()
	w, h, err := spreads.Dimensions(path)
	require.NoError(t, err, path)
	assert.Equal(t, width, w, path)
	assert.Equal(t, height, h, path)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSplitSpreads(t *testing.T) {
	dir, s, runner := setup(t, []fixture{
		{"page-1.jpg", 100, 130},
		{"page-2.jpg", 201, 100},
		{"page-10.jpg", 80, 100},
		{"cover.jpg", 300, 100},
	})

	total, err := s.SplitSpreads(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	assertSize(t, filepath.Join(dir, "page-1.jpg"), 100, 130)
	assertSize(t, filepath.Join(dir, "page-2.jpg"), 100, 100)
	assertSize(t, filepath.Join(dir, "page-3.jpg"), 101, 100)
	assertSize(t, filepath.Join(dir, "page-4.jpg"), 80, 100)

	assert.ElementsMatch(t, []string{"page-1.jpg", "page-2.jpg", "page-3.jpg", "page-4.jpg", "cover.jpg"}, listDir(t, dir))
	assert.NoDirExists(t, filepath.Join(dir, "temp"))

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "100x100+0+0", calls[0][3])
	assert.Equal(t, "101x100+100+0", calls[1][3])
}

func TestSplitSpreadsThreshold(t *testing.T) {
	tests := []struct {
		name      string
		width     int
		threshold float64
		expected  int
	}{
		{"at default threshold", 135, 0, 1},
		{"above default threshold", 136, 0, 2},
		{"landscape single page", 125, 0, 1},
		{"custom threshold", 125, 1.2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _, runner := setup(t, []fixture{{"page-1.jpg", tt.width, 100}})
			m, err := tools.NewImageMagick(runner)
			require.NoError(t, err)

			total, err := spreads.New(m, tt.threshold).SplitSpreads(context.Background(), dir)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, total)
		})
	}
}

func TestSplitSpreadsSkipsMalformed(t *testing.T) {
	dir, s, _ := setup(t, []fixture{
		{"page-1.jpg", 100, 130},
		{"page-3.jpg", 100, 130},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page-2.jpg"), []byte("not an image"), 0644))

	total, err := s.SplitSpreads(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	assert.FileExists(t, filepath.Join(dir, "page-1.jpg"))
	assert.FileExists(t, filepath.Join(dir, "page-2.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "page-3.jpg"))
	assert.Equal(t, []string{"page-2.jpg"}, listDir(t, filepath.Join(dir, "temp")))
}

func TestSplitSpreadsEmpty(t *testing.T) {
	dir, s, _ := setup(t, nil)
	total, err := s.SplitSpreads(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoDirExists(t, filepath.Join(dir, "temp"))
}

func TestSplitSpreadsCropFailure(t *testing.T) {
	dir, s, runner := setup(t, []fixture{{"page-1.jpg", 300, 100}})
	runner.Fail = errors.New("exit status 1")

	_, err := s.SplitSpreads(context.Background(), dir)
	assert.ErrorContains(t, err, "failed to split page-1.jpg")
}

func TestSplitTempPages(t *testing.T) {
	dir, s, _ := setup(t, []fixture{
		{"page-1.jpg", 100, 130},
		{"page-2.jpg", 100, 130},
		{"page-temp-2.jpg", 51, 40},
		{"page-temp-1.jpg", 200, 100},
	})

	total, err := s.SplitTempPages(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	assertSize(t, filepath.Join(dir, "page-3.jpg"), 100, 100)
	assertSize(t, filepath.Join(dir, "page-4.jpg"), 100, 100)
	assertSize(t, filepath.Join(dir, "page-5.jpg"), 25, 40)
	assertSize(t, filepath.Join(dir, "page-6.jpg"), 26, 40)
	assert.NoFileExists(t, filepath.Join(dir, "page-temp-1.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "page-temp-2.jpg"))
}

func TestSplitTempPagesWithoutExistingPages(t *testing.T) {
	dir, s, _ := setup(t, []fixture{{"page-temp-1.jpg", 200, 100}})

	total, err := s.SplitTempPages(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.ElementsMatch(t, []string{"page-1.jpg", "page-2.jpg"}, listDir(t, dir))
}

func TestSplitTempPagesKeepsMalformed(t *testing.T) {
	dir, s, _ := setup(t, nil)
	bad := filepath.Join(dir, "page-temp-1.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))

	total, err := s.SplitTempPages(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.FileExists(t, bad)
}

func TestDimensionsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jpg")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	_, _, err := spreads.Dimensions(path)
	assert.True(t, errors.Is(err, spreads.ErrMalformedImage))
}
