package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/session"
)

// CoordinatorConfig wires optional collaborators.
type CoordinatorConfig struct {
	Policy RetryPolicy
	// Sleep defaults to TimerSleep.
	Sleep Sleeper
	// Guard defaults to a process-local guard.
	Guard session.Guard
	// Reports keeps partial-failure reports for paging; nil disables paging.
	Reports session.ReportCache
	Now     func() time.Time
}

// Coordinator composes Uploader, Poller, Route and Actions and owns the
// stage lifecycle: created on acceptance, released on commit, discard or a
// final outcome, kept on transient failure so the user can resume.
type Coordinator struct {
	api      StagingAPI
	uploader *Uploader
	poller   *Poller
	actions  *Actions
	reports  session.ReportCache
	now      func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(api StagingAPI, cfg CoordinatorConfig) *Coordinator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	poller := NewPoller(api, cfg.Policy, cfg.Sleep)
	uploader := NewUploader(api)
	uploader.now = now
	return &Coordinator{
		api:      api,
		uploader: uploader,
		poller:   poller,
		actions:  NewActions(api, poller, cfg.Guard),
		reports:  cfg.Reports,
		now:      now,
	}
}

// Start uploads a file and follows it to an outcome.
//
// When an earlier batch is still unresolved the file is not sent: that batch
// is resumed instead and the navigation comes back with a STAGE_PENDING error.
func (c *Coordinator) Start(ctx context.Context, store session.Store, filename string, r io.Reader) (domain.Navigation, error) {
	stage, err := c.uploader.Upload(ctx, store, filename, r)
	switch {
	case errors.Is(err, ErrUploadStatusUnknown):
		logger.FromContext(ctx).Warn("Upload status unknown", zap.String("file", filename), zap.Error(err))
		return Navigate(domain.StatusUnknown{Message: domain.StatusUnknownMessage}), nil
	case apperrors.HasCode(err, apperrors.CodeStagePending):
		appErr, _ := apperrors.IsAppError(err)
		pending := domain.NewStage(appErr.Param("stage_id"), c.now())
		if serr := store.Save(ctx, pending); serr != nil {
			return c.fail(serr)
		}
		nav, rerr := c.follow(ctx, store, pending)
		if rerr != nil {
			return nav, rerr
		}
		return nav, err
	case err != nil:
		return c.fail(err)
	}
	return c.follow(ctx, store, stage)
}

// Resume follows the held stage, or the server's oldest unresolved batch
// when no pointer is held.
func (c *Coordinator) Resume(ctx context.Context, store session.Store) (domain.Navigation, error) {
	stage, err := store.Load(ctx)
	if err != nil {
		return c.fail(err)
	}
	if stage == nil {
		processes, err := c.api.ListStageProcesses(ctx)
		if err != nil {
			return c.fail(err)
		}
		if len(processes) == 0 {
			return c.fail(apperrors.ErrStageNotFound())
		}
		stage = domain.NewStage(processes[0].StageID, c.now())
		if err := store.Save(ctx, stage); err != nil {
			return c.fail(err)
		}
	}
	return c.follow(ctx, store, stage)
}

// Commit commits the held stage and returns the final outcome's view.
func (c *Coordinator) Commit(ctx context.Context, store session.Store) (domain.Navigation, error) {
	stage, err := store.Load(ctx)
	if err != nil {
		return c.fail(err)
	}
	outcome, err := c.actions.Commit(ctx, store, stage)
	if err != nil {
		return c.fail(err)
	}
	c.remember(ctx, stage.ID, outcome)
	return Navigate(outcome), nil
}

// Discard discards the held stage and returns to the upload view.
func (c *Coordinator) Discard(ctx context.Context, store session.Store) (domain.Navigation, error) {
	stage, err := store.Load(ctx)
	if err != nil {
		return c.fail(err)
	}
	nav, err := c.actions.Discard(ctx, store, stage)
	if err != nil {
		return c.fail(err)
	}
	return nav, nil
}

// Pending lists the caller's unresolved batches; a new upload is only
// allowed when it is empty.
func (c *Coordinator) Pending(ctx context.Context) ([]domain.StageProcess, error) {
	processes, err := c.api.ListStageProcesses(ctx)
	if err != nil {
		return nil, err
	}
	if processes == nil {
		processes = []domain.StageProcess{}
	}
	return processes, nil
}

// ReportPage returns one page of every invalid-record group of a resolved batch.
func (c *Coordinator) ReportPage(ctx context.Context, id string, page, size int) ([]domain.GroupPage, error) {
	if c.reports == nil {
		return nil, apperrors.NotFound(apperrors.CodeReportNotFound, apperrors.MsgReportUnavailable)
	}
	report, ok, err := c.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeReportNotFound, apperrors.MsgReportUnavailable)
	}
	groups := report.NonEmptyGroups()
	pages := make([]domain.GroupPage, 0, len(groups))
	for _, g := range groups {
		pages = append(pages, g.Page(page, size))
	}
	return pages, nil
}

// follow polls the stage to a terminal batch, fetches the report when
// staging carried none, and routes the result.
func (c *Coordinator) follow(ctx context.Context, store session.Store, stage *domain.Stage) (domain.Navigation, error) {
	batch, err := c.poller.PollStaged(ctx, stage)
	if err != nil {
		return c.fail(err)
	}
	if !batch.RequiresConfirmation() && batch.Report == nil && batch.InvalidFile == "" {
		report, err := c.poller.FetchReport(ctx, stage)
		if err != nil {
			return c.fail(err)
		}
		batch.Report = &report
	}

	outcome := Route(batch)
	if domain.Final(outcome) {
		if err := releaseStage(ctx, store, stage); err != nil {
			return c.fail(err)
		}
	}
	c.remember(ctx, stage.ID, outcome)

	logger.FromContext(ctx).Info("Staged upload routed",
		logger.StageID(stage.ID),
		zap.String("outcome", string(outcome.Kind())),
	)
	return Navigate(outcome), nil
}

func (c *Coordinator) remember(ctx context.Context, id string, outcome domain.Outcome) {
	pf, ok := outcome.(domain.PartialFailure)
	if !ok || c.reports == nil {
		return
	}
	report := domain.Report{ValidRecordsCount: pf.ValidCount, InvalidRecords: pf.Groups}
	if !report.Partitioned() {
		logger.FromContext(ctx).Warn("Report lists a row under more than one group",
			logger.StageID(id), zap.Int("invalid_rows", pf.InvalidCount))
	}
	if err := c.reports.Put(ctx, id, report); err != nil {
		logger.FromContext(ctx).Warn("Cache report failed", logger.StageID(id), zap.Error(err))
	}
}

// fail turns err into the navigation that presents it. Form errors stay on
// the upload view; everything else goes to the error view.
func (c *Coordinator) fail(err error) (domain.Navigation, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorNavigation(err.Error()), err
	}
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.CodeUpstreamError, err.Error(), http.StatusBadGateway)
	}
	switch appErr.Code {
	case apperrors.CodeInvalidFileType, apperrors.CodeFileRequired:
		return domain.Navigation{View: domain.ViewUpload, State: FormState{
			Error:       appErr.Message,
			FieldErrors: appErr.FieldErrors,
		}}, appErr
	}
	return domain.ErrorNavigation(appErr.Message), appErr
}

// FormState is the upload view state after a rejected submission.
type FormState struct {
	Error       string                 `json:"error"`
	FieldErrors []apperrors.FieldError `json:"field_errors,omitempty"`
}
