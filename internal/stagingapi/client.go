// Package stagingapi is the HTTP client for the registration API: the staging
// endpoints (upload, stage listing, staged records, report, commit, discard)
// and the registration lookups (search, licence status, export).
package stagingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"busreg.io/stager/internal/auth"
	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
)

// ErrUploadTimeout is returned when the upload did not answer within the
// upload timeout. The server may still be processing the file.
var ErrUploadTimeout = errors.New("upload timed out")

// Config configures a Client.
type Config struct {
	BaseURL string
	Tokens  auth.TokenSource
	// HTTPClient defaults to a client with RequestTimeout.
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	// FieldName is the multipart field carrying the file; default "file".
	FieldName string
}

// Client talks to the registration API.
type Client struct {
	baseURL       string
	tokens        auth.TokenSource
	http          *http.Client
	uploadTimeout time.Duration
	fieldName     string
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.RequestTimeout}
	}
	field := cfg.FieldName
	if field == "" {
		field = "file"
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		tokens:        cfg.Tokens,
		http:          hc,
		uploadTimeout: cfg.UploadTimeout,
		fieldName:     field,
	}
}

// UploadAccepted is the answer to an upload.
type UploadAccepted struct {
	ReportID string `json:"report_id"`
	Message  string `json:"message,omitempty"`
}

// StagedResponse is the answer of GET /stage for a batch.
type StagedResponse struct {
	Status      string                `json:"status"`
	StageID     string                `json:"stage_id,omitempty"`
	Records     []domain.StagedRecord `json:"records"`
	NextStep    string                `json:"next_step,omitempty"`
	Report      *domain.Report        `json:"report,omitempty"`
	InvalidFile string                `json:"invalid_file,omitempty"`
}

// Batch converts the response to the domain view of the batch.
func (r StagedResponse) Batch(stageID string) domain.Batch {
	id := r.StageID
	if id == "" {
		id = stageID
	}
	b := domain.Batch{
		ID:          id,
		Status:      domain.ParseStageStatus(r.Status),
		Records:     r.Records,
		Report:      r.Report,
		InvalidFile: r.InvalidFile,
	}
	if b.InvalidFile == "" && r.Report != nil {
		b.InvalidFile = r.Report.InvalidFile
	}
	return b
}

// ReportResponse is the answer of GET /get-report.
type ReportResponse struct {
	Report       *domain.Report `json:"Report"`
	ReportStatus string         `json:"ReportStatus"`
}

// Completed reports whether the report is final.
func (r ReportResponse) Completed() bool {
	return domain.ParseStageStatus(r.ReportStatus) == domain.StageStatusCompleted && r.Report != nil
}

type processesResponse struct {
	Processes []domain.StageProcess `json:"processes"`
	Status    string                `json:"status,omitempty"`
}

// Upload posts the CSV file as multipart/form-data.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadAccepted, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(c.fieldName, filename)
	if err != nil {
		return UploadAccepted{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadAccepted{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadAccepted{}, fmt.Errorf("close multipart: %w", err)
	}

	uploadCtx := ctx
	if c.uploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()
	}

	var out UploadAccepted
	err = c.do(uploadCtx, http.MethodPost, "/upload-file", nil, &buf, mw.FormDataContentType(), &out)
	if err != nil {
		// Only our own deadline is a timeout; caller cancellation stays as-is.
		if ctx.Err() == nil && errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
			return UploadAccepted{}, fmt.Errorf("%w after %s: %v", ErrUploadTimeout, c.uploadTimeout, err)
		}
		return UploadAccepted{}, err
	}
	if out.ReportID == "" {
		return UploadAccepted{}, apperrors.BadGateway(apperrors.CodeUploadFailed, "upload response carried no report_id")
	}
	return out, nil
}

// ListStageProcesses returns the caller's unresolved batches. No batches is
// an empty list, not an error.
func (c *Client) ListStageProcesses(ctx context.Context) ([]domain.StageProcess, error) {
	var out processesResponse
	err := c.do(ctx, http.MethodGet, "/stage", url.Values{"stagedProcessOnly": {"Yes"}}, nil, "", &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Processes, nil
}

// GetStaged queries the staging status of a batch. A 425 error means the
// batch is still being staged.
func (c *Client) GetStaged(ctx context.Context, stageID string) (StagedResponse, error) {
	var out StagedResponse
	err := c.do(ctx, http.MethodGet, "/stage", url.Values{"stage_id": {stageID}}, nil, "", &out)
	return out, err
}

// GetReport fetches the validation report of a batch.
func (c *Client) GetReport(ctx context.Context, reportID string) (ReportResponse, error) {
	var out ReportResponse
	err := c.do(ctx, http.MethodGet, "/get-report", url.Values{"report_id": {reportID}}, nil, "", &out)
	return out, err
}

// Commit makes the staged records of a batch permanent.
func (c *Client) Commit(ctx context.Context, stageID string) error {
	return c.stagedAction(ctx, "commit", stageID)
}

// Discard abandons the staged records of a batch.
func (c *Client) Discard(ctx context.Context, stageID string) error {
	return c.stagedAction(ctx, "discard", stageID)
}

func (c *Client) stagedAction(ctx context.Context, action, stageID string) error {
	return c.do(ctx, http.MethodPost, "/staged-records/"+action, url.Values{"stage_id": {stageID}}, nil, "", nil)
}

// SearchResponse is the answer of GET /search.
type SearchResponse struct {
	Results []domain.Registration `json:"Results"`
	// NextPage is an absolute URL on the registration API, absent on the last page.
	NextPage string `json:"NextPage,omitempty"`
}

// NextPageNumber extracts the page parameter of NextPage; 0 means none.
func (r SearchResponse) NextPageNumber() int {
	if r.NextPage == "" {
		return 0
	}
	u, err := url.Parse(r.NextPage)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// Search looks up registered services.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) (SearchResponse, error) {
	var out SearchResponse
	err := c.do(ctx, http.MethodGet, "/search", q.Values(), nil, "", &out)
	return out, err
}

// RegistrationStatus returns the caller's licences with their service counts.
func (c *Client) RegistrationStatus(ctx context.Context) ([]domain.LicenceSummary, error) {
	var out []domain.LicenceSummary
	err := c.do(ctx, http.MethodGet, "/view-registrations/status", nil, nil, "", &out)
	return out, err
}

// AllRecords returns every registration the caller may see.
func (c *Client) AllRecords(ctx context.Context, latestOnly, activeOnly bool) (domain.RecordTable, error) {
	var out domain.RecordTable
	q := url.Values{"latestOnly": {domain.YesNo(latestOnly)}, "activeOnly": {domain.YesNo(activeOnly)}}
	err := c.do(ctx, http.MethodGet, "/all-records", q, nil, "", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log := logger.FromContext(ctx)
	log.Debug("Registration API call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return classify(&StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)})
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// classify maps authorization failures onto user-facing errors; the
// StatusError stays reachable through errors.As.
func classify(se *StatusError) error {
	switch se.StatusCode {
	case http.StatusUnauthorized:
		return apperrors.Wrap(se, apperrors.CodeTokenExpired, apperrors.MsgSessionExpired, http.StatusUnauthorized)
	case http.StatusForbidden:
		return apperrors.Wrap(se, apperrors.CodeAccessDenied, apperrors.MsgAccessDenied, http.StatusForbidden)
	default:
		return se
	}
}
