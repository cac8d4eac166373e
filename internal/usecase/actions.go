package usecase

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/session"
)

// Actions commits or discards a batch that waits for confirmation.
type Actions struct {
	api    StagingAPI
	poller *Poller
	guard  session.Guard
}

// NewActions creates Actions.
func NewActions(api StagingAPI, poller *Poller, guard session.Guard) *Actions {
	if guard == nil {
		guard = session.NewMemoryGuard()
	}
	return &Actions{api: api, poller: poller, guard: guard}
}

// Commit makes the staged records permanent, releases the stage pointer and
// resolves the final report.
func (a *Actions) Commit(ctx context.Context, store session.Store, stage *domain.Stage) (domain.Outcome, error) {
	release, err := a.acquire(ctx, stage)
	if err != nil {
		return nil, err
	}
	defer release()

	log := logger.FromContext(ctx).With(logger.StageID(stage.ID))
	if err := a.api.Commit(ctx, stage.ID); err != nil {
		log.Warn("Commit failed", zap.Error(err))
		return nil, actionError(err, apperrors.CodeCommitFailed, apperrors.MsgCommitFailed)
	}
	if err := releaseStage(ctx, store, stage); err != nil {
		return nil, err
	}
	log.Info("Staged records committed")

	report, err := a.poller.FetchReport(ctx, stage)
	if err != nil {
		return nil, err
	}
	return Route(domain.Batch{ID: stage.ID, Status: domain.StageStatusCompleted, Report: &report}), nil
}

// Discard abandons the staged records and returns to the upload view.
func (a *Actions) Discard(ctx context.Context, store session.Store, stage *domain.Stage) (domain.Navigation, error) {
	release, err := a.acquire(ctx, stage)
	if err != nil {
		return domain.Navigation{}, err
	}
	defer release()

	log := logger.FromContext(ctx).With(logger.StageID(stage.ID))
	if err := a.api.Discard(ctx, stage.ID); err != nil {
		log.Warn("Discard failed", zap.Error(err))
		return domain.Navigation{}, actionError(err, apperrors.CodeDiscardFailed, apperrors.MsgDiscardFailed)
	}
	if err := releaseStage(ctx, store, stage); err != nil {
		return domain.Navigation{}, err
	}
	log.Info("Staged records discarded")
	return domain.UploadNavigation(), nil
}

func (a *Actions) acquire(ctx context.Context, stage *domain.Stage) (func(), error) {
	if stage.Cleared() || stage.ID == "" {
		return nil, apperrors.ErrStageNotFound()
	}
	return a.guard.Acquire(ctx, stage.ID)
}

// releaseStage deletes the persisted pointer the first time the stage is released.
func releaseStage(ctx context.Context, store session.Store, stage *domain.Stage) error {
	if !stage.MarkCleared() {
		return nil
	}
	return store.Clear(ctx)
}

// actionError keeps auth failures as they are and maps the rest onto the
// action's fixed message.
func actionError(err error, code, msg string) error {
	if appErr, ok := apperrors.IsAppError(err); ok {
		switch appErr.Code {
		case apperrors.CodeTokenExpired, apperrors.CodeAuthFailed, apperrors.CodeAccessDenied:
			return err
		}
	}
	return apperrors.Wrap(err, code, msg, http.StatusBadGateway)
}
