package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/session"
	"busreg.io/stager/internal/stagingapi"
)

// ErrUploadStatusUnknown means the upload timed out and no batch could be
// found afterwards. The server may still create one.
var ErrUploadStatusUnknown = errors.New("upload status unknown")

// ValidateFile rejects anything but a named .csv file. It never touches the network.
func ValidateFile(filename string) error {
	name := strings.TrimSpace(filename)
	if name == "" {
		return apperrors.ErrFileRequired()
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return apperrors.ErrInvalidFileTypef(name)
	}
	return nil
}

// Uploader sends a file to the staging endpoint and creates the Stage.
type Uploader struct {
	api StagingAPI
	now func() time.Time
}

// NewUploader creates an Uploader.
func NewUploader(api StagingAPI) *Uploader {
	return &Uploader{api: api, now: time.Now}
}

// Upload validates, gates and posts the file, then persists the new stage.
//
// An unresolved batch on the server blocks the upload with STAGE_PENDING.
// When the upload times out the uploader looks for the batch the server may
// have created; if none shows up it returns ErrUploadStatusUnknown.
func (u *Uploader) Upload(ctx context.Context, store session.Store, filename string, r io.Reader) (*domain.Stage, error) {
	if err := ValidateFile(filename); err != nil {
		return nil, err
	}

	pending, err := u.api.ListStageProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("check stage processes: %w", err)
	}
	if len(pending) > 0 {
		return nil, apperrors.ErrStagePendingf(pending[0].StageID)
	}

	log := logger.FromContext(ctx)
	var stageID string
	accepted, err := u.api.Upload(ctx, filepath.Base(filename), r)
	switch {
	case errors.Is(err, stagingapi.ErrUploadTimeout):
		log.Warn("Upload timed out, looking for the batch", zap.String("file", filename), zap.Error(err))
		stageID, err = u.locateBatch(ctx)
		if err != nil {
			return nil, err
		}
	case err != nil:
		if _, ok := apperrors.IsAppError(err); ok || ctx.Err() != nil {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.CodeUploadFailed, err.Error(), http.StatusBadGateway)
	default:
		stageID = accepted.ReportID
	}

	stage := domain.NewStage(stageID, u.now())
	if err := store.Save(ctx, stage); err != nil {
		return nil, fmt.Errorf("save stage: %w", err)
	}
	log.Info("Upload accepted", logger.StageID(stage.ID), zap.String("file", filename))
	return stage, nil
}

func (u *Uploader) locateBatch(ctx context.Context) (string, error) {
	processes, err := u.api.ListStageProcesses(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadStatusUnknown, err)
	}
	if len(processes) == 0 {
		return "", ErrUploadStatusUnknown
	}
	return processes[0].StageID, nil
}
