package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/shared/testutil"
)

func TestFileValidator_ValidateInputFile(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		exts      []string
		wantType  errors.ErrorType
	}{
		{
			name: "csv accepted",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "crops.csv")
				require.NoError(t, os.WriteFile(path, []byte("crop,yield\n"), 0644))
				return path
			},
			exts: []string{".csv"},
		},
		{
			name: "extension compared case-insensitively",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "VESSELS.XLSX")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				return path
			},
			exts: []string{".xlsx"},
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.csv")
			},
			wantType: errors.ErrTypeNotFound,
		},
		{
			name: "directory",
			setupFunc: func(t *testing.T) string {
				return t.TempDir()
			},
			wantType: errors.ErrTypeValidation,
		},
		{
			name: "wrong extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "wine.txt")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				return path
			},
			exts:     []string{".csv", ".xlsx"},
			wantType: errors.ErrTypeValidation,
		},
		{
			name: "excel lock file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "~$wine.xlsx")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				return path
			},
			exts:     []string{".xlsx"},
			wantType: errors.ErrTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			err := NewFileValidator(logger).ValidateInputFile(tt.setupFunc(t), tt.exts...)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			appErr, ok := errors.AsAppError(err)
			require.True(t, ok, "expected AppError, got %v", err)
			assert.Equal(t, tt.wantType, appErr.Type)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	require.NoError(t, NewFileValidator(nil).ValidateOutputDirectory(dir))

	assert.DirExists(t, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write test file must be removed")
}

func TestFileValidator_ValidateOutputDirectory_FileInTheWay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	err := NewFileValidator(nil).ValidateOutputDirectory(filepath.Join(file, "sub"))
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrTypeStorage, appErr.Type)
}
