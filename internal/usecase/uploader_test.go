package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/session"
	"busreg.io/stager/internal/stagingapi"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"valid.csv", ""},
		{"VALID.CSV", ""},
		{"dir/mixed.Csv", ""},
		{"", apperrors.CodeFileRequired},
		{"   ", apperrors.CodeFileRequired},
		{"report.xlsx", apperrors.CodeInvalidFileType},
		{"csv", apperrors.CodeInvalidFileType},
		{"data.csv.exe", apperrors.CodeInvalidFileType},
		{"notes.txt", apperrors.CodeInvalidFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.name)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			appErr, ok := apperrors.IsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, apperrors.MsgFileFormat, appErr.Message)
			require.NotEmpty(t, appErr.FieldErrors)
			assert.Equal(t, "file", appErr.FieldErrors[0].Field)
		})
	}
}

func TestUploader_NonCSVMakesNoNetworkCall(t *testing.T) {
	for _, name := range []string{"a.txt", "b.xls", "c", "d.csv.zip", ""} {
		api := newFakeAPI()
		store := session.NewMemoryStore()
		_, err := NewUploader(api).Upload(context.Background(), store, name, strings.NewReader("x"))
		require.Error(t, err, name)
		assert.Zero(t, api.total(), "no call for %q", name)
		got, _ := store.Load(context.Background())
		assert.Nil(t, got)
	}
}

func TestUploader_PersistsStage(t *testing.T) {
	api := newFakeAPI()
	store := session.NewMemoryStore()

	stage, err := NewUploader(api).Upload(context.Background(), store, "valid.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", stage.ID)

	held, _ := store.Load(context.Background())
	require.NotNil(t, held)
	assert.Equal(t, "abc123", held.ID)
}

func TestUploader_PendingStageBlocksUpload(t *testing.T) {
	api := newFakeAPI()
	api.processes = [][]domain.StageProcess{{{StageID: "older"}}}

	_, err := NewUploader(api).Upload(context.Background(), session.NewMemoryStore(), "valid.csv", strings.NewReader("x"))
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeStagePending, appErr.Code)
	assert.Equal(t, "older", appErr.Param("stage_id"))
	assert.Zero(t, api.count("upload"))
}

func TestUploader_Timeout(t *testing.T) {
	timeout := fmt.Errorf("%w after 30s: deadline", stagingapi.ErrUploadTimeout)

	t.Run("batch found afterwards", func(t *testing.T) {
		api := newFakeAPI()
		api.uploadErr = timeout
		api.processes = [][]domain.StageProcess{nil, {{StageID: "late"}}}
		store := session.NewMemoryStore()

		stage, err := NewUploader(api).Upload(context.Background(), store, "valid.csv", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "late", stage.ID)
		held, _ := store.Load(context.Background())
		assert.Equal(t, "late", held.ID)
	})

	t.Run("no batch", func(t *testing.T) {
		api := newFakeAPI()
		api.uploadErr = timeout
		store := session.NewMemoryStore()

		_, err := NewUploader(api).Upload(context.Background(), store, "valid.csv", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrUploadStatusUnknown)
		held, _ := store.Load(context.Background())
		assert.Nil(t, held)
	})
}

func TestUploader_NetworkFailureCarriesMessage(t *testing.T) {
	api := newFakeAPI()
	api.uploadErr = errors.New("POST /upload-file: connection refused")

	_, err := NewUploader(api).Upload(context.Background(), session.NewMemoryStore(), "valid.csv", strings.NewReader("x"))
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUploadFailed, appErr.Code)
	assert.Contains(t, appErr.Message, "connection refused")
}

func TestUploader_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	u := NewUploader(newFakeAPI())
	u.now = func() time.Time { return fixed }

	stage, err := u.Upload(context.Background(), session.NewMemoryStore(), "valid.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, fixed, stage.Accepted)
}
