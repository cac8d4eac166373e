package usecase

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/stagingapi"
)

// RegistryAPI is the lookup side of the registration API.
// *stagingapi.Client implements it.
type RegistryAPI interface {
	Search(ctx context.Context, q domain.SearchQuery) (stagingapi.SearchResponse, error)
	RegistrationStatus(ctx context.Context) ([]domain.LicenceSummary, error)
	AllRecords(ctx context.Context, latestOnly, activeOnly bool) (domain.RecordTable, error)
}

var _ RegistryAPI = (*stagingapi.Client)(nil)

// Registry answers questions about services that are already registered.
// It is independent of any staged batch.
type Registry struct {
	api RegistryAPI
}

// NewRegistry creates a Registry.
func NewRegistry(api RegistryAPI) *Registry {
	return &Registry{api: api}
}

// Search validates q and returns one page of matching registrations.
func (r *Registry) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchPage, error) {
	q = q.Normalize()
	if problems := q.Problems(); len(problems) > 0 {
		fields := make([]apperrors.FieldError, 0, len(problems))
		for _, p := range problems {
			fields = append(fields, apperrors.FieldError{Field: p.Field, Code: apperrors.CodeInvalidSearch, Message: p.Message})
		}
		return domain.SearchPage{}, apperrors.ErrInvalidSearchf(fields)
	}

	resp, err := r.api.Search(ctx, q)
	switch {
	case stagingapi.IsNotFound(err):
		resp = stagingapi.SearchResponse{}
	case stagingapi.StatusCode(err) == http.StatusUnprocessableEntity:
		return domain.SearchPage{}, apperrors.Wrap(err, apperrors.CodeInvalidSearch, apperrors.MsgInvalidSearch, http.StatusBadRequest)
	case err != nil:
		logger.FromContext(ctx).Warn("Search failed", zap.Error(err))
		return domain.SearchPage{}, actionError(err, apperrors.CodeLookupFailed, apperrors.MsgGettingRecords)
	}

	page := domain.SearchPage{
		Results:  resp.Results,
		Page:     q.Page,
		Limit:    q.Limit,
		NextPage: resp.NextPageNumber(),
	}
	if page.Results == nil {
		page.Results = []domain.Registration{}
	}
	return page, nil
}

// Status lists the caller's licences and how many of their services need attention.
func (r *Registry) Status(ctx context.Context) ([]domain.LicenceSummary, error) {
	out, err := r.api.RegistrationStatus(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("Registration status failed", zap.Error(err))
		return nil, actionError(err, apperrors.CodeLookupFailed, apperrors.MsgGettingRecords)
	}
	if out == nil {
		out = []domain.LicenceSummary{}
	}
	return out, nil
}

// Export returns every registration the caller may see.
func (r *Registry) Export(ctx context.Context, latestOnly, activeOnly bool) (domain.RecordTable, error) {
	out, err := r.api.AllRecords(ctx, latestOnly, activeOnly)
	if err != nil {
		logger.FromContext(ctx).Warn("Registration export failed", zap.Error(err))
		return nil, actionError(err, apperrors.CodeLookupFailed, apperrors.MsgGettingRecords)
	}
	logger.FromContext(ctx).Info("Registrations exported", zap.Int("records", len(out)))
	return out, nil
}
