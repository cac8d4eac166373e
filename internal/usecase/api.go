// Package usecase drives a CSV file through the staged-upload workflow:
// upload, poll staging, route the outcome, then commit or discard.
//
// Use cases are shared by the BFF handlers and the bsrctl CLI. Every
// operation takes an explicit *domain.Stage or session.Store; nothing here
// reads cookies or files directly.
package usecase

import (
	"context"
	"io"

	"busreg.io/stager/internal/domain"
	"busreg.io/stager/internal/stagingapi"
)

// StagingAPI is the part of the registration API the workflow drives.
// *stagingapi.Client implements it.
type StagingAPI interface {
	Upload(ctx context.Context, filename string, r io.Reader) (stagingapi.UploadAccepted, error)
	ListStageProcesses(ctx context.Context) ([]domain.StageProcess, error)
	GetStaged(ctx context.Context, stageID string) (stagingapi.StagedResponse, error)
	GetReport(ctx context.Context, reportID string) (stagingapi.ReportResponse, error)
	Commit(ctx context.Context, stageID string) error
	Discard(ctx context.Context, stageID string) error
}

var _ StagingAPI = (*stagingapi.Client)(nil)
