package stagingapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busreg.io/stager/internal/auth"
	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:        srv.URL + "/",
		Tokens:         auth.StaticSource("tok"),
		RequestTimeout: 5 * time.Second,
		UploadTimeout:  time.Second,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Upload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload-file", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "valid.csv", hdr.Filename)
		assert.Equal(t, "a,b\n1,2\n", string(body))

		writeJSON(w, http.StatusOK, map[string]string{"message": "File is being processed", "report_id": "abc123"})
	})

	got, err := c.Upload(context.Background(), "valid.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ReportID)
}

func TestClient_Upload_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)
	c.uploadTimeout = 20 * time.Millisecond

	_, err := c.Upload(context.Background(), "slow.csv", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUploadTimeout)
}

func TestClient_Upload_CallerCancelIsNotTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Upload(ctx, "slow.csv", strings.NewReader("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUploadTimeout)
}

func TestClient_Upload_MissingReportID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	_, err := c.Upload(context.Background(), "a.csv", strings.NewReader("x"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUploadFailed))
}

func TestClient_ListStageProcesses(t *testing.T) {
	t.Run("processes", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Yes", r.URL.Query().Get("stagedProcessOnly"))
			writeJSON(w, http.StatusOK, map[string]any{
				"status":    "Completed",
				"processes": []map[string]string{{"stage_id": "s1", "created_at": "2024-01-01T00:00:00"}},
			})
		})
		got, err := c.ListStageProcesses(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "s1", got[0].StageID)
	})

	t.Run("404 is empty", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": map[string]string{"message": "No staged process found"}})
		})
		got, err := c.ListStageProcesses(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestClient_GetStaged(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooEarly, map[string]any{"detail": map[string]string{"message": "Staging process is not done yet"}})
		})
		_, err := c.GetStaged(context.Background(), "s1")
		assert.True(t, IsNotReady(err))
		assert.Contains(t, err.Error(), "Staging process is not done yet")
	})

	t.Run("completed with records", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "s1", r.URL.Query().Get("stage_id"))
			writeJSON(w, http.StatusOK, map[string]any{
				"status":    "Completed",
				"stage_id":  "s1",
				"next_step": "Commit or Discard",
				"records": []map[string]any{{
					"licence_number":       "PB0000001",
					"operator_name":        "Acme Buses",
					"registration_numbers": []string{"PB0000001/1", "PB0000001/2"},
				}},
			})
		})
		got, err := c.GetStaged(context.Background(), "s1")
		require.NoError(t, err)
		b := got.Batch("s1")
		assert.True(t, b.Status.Terminal())
		assert.True(t, b.RequiresConfirmation())
		assert.Equal(t, "PB0000001 - Acme Buses", b.Records[0].Title())
	})
}

func TestClient_GetReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get-report", r.URL.Path)
		assert.Equal(t, "abc123", r.URL.Query().Get("report_id"))
		_, _ = io.WriteString(w, `{"ReportStatus":"Completed","Report":{"valid_records_count":50,"invalid_records":[{"description":"","records":{}}]}}`)
	})
	got, err := c.GetReport(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, got.Completed())
	assert.Equal(t, 50, got.Report.ValidRecordsCount)
	assert.Zero(t, got.Report.InvalidRowCount())
}

func TestClient_StagedActions(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	require.NoError(t, c.Commit(context.Background(), "abc123"))
	require.NoError(t, c.Discard(context.Background(), "abc123"))
	assert.Equal(t, []string{
		"/staged-records/commit?stage_id=abc123",
		"/staged-records/discard?stage_id=abc123",
	}, paths)
}

func TestClient_AuthFailures(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, apperrors.CodeTokenExpired},
		{http.StatusForbidden, apperrors.CodeAccessDenied},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"detail": map[string]string{"message": "Not authenticated"}})
			})
			err := c.Commit(context.Background(), "s1")
			assert.True(t, apperrors.HasCode(err, tt.code))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestClient_NoToken(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	c.tokens = auth.ForwardedSource{}

	err := c.Commit(context.Background(), "s1")
	assert.True(t, errors.Is(err, auth.ErrNoToken))
	assert.False(t, called)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"detail":{"message":"Report not found"}}`, "Report not found"},
		{`{"detail":"Invalid stage"}`, "Invalid stage"},
		{`{"message":"boom"}`, "boom"},
		{`Internal Server Error`, "Internal Server Error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorMessage([]byte(tt.raw)))
	}
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "PB0000001", q.Get("licenseNumber"))
		assert.Equal(t, "Yes", q.Get("latestOnly"))
		assert.Equal(t, "No", q.Get("strictMode"))
		assert.Equal(t, "2", q.Get("page"))
		assert.False(t, q.Has("operatorName"), "empty filters are not sent")

		_, _ = w.Write([]byte(`{
			"Results": [{"registrationNumber": "PB0000001/12", "variationNumber": 3, "operatorName": "Go North West", "endDate": null}],
			"NextPage": "https://api.example/api/v1/search?licenseNumber=PB0000001&page=3"
		}`))
	})

	got, err := c.Search(context.Background(), domain.SearchQuery{LicenceNumber: "PB0000001", LatestOnly: true, Limit: 10, Page: 2})
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, domain.Text("3"), got.Results[0].VariationNumber)
	assert.Equal(t, "12", got.Results[0].ServiceNumber())
	assert.Equal(t, 3, got.NextPageNumber())
}

func TestSearchResponse_NextPageNumber(t *testing.T) {
	tests := []struct {
		next string
		want int
	}{
		{"", 0},
		{"https://api.example/search?page=4", 4},
		{"https://api.example/search?page=x", 0},
		{"::", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SearchResponse{NextPage: tt.next}.NextPageNumber(), tt.next)
	}
}

func TestClient_RegistrationStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/view-registrations/status", r.URL.Path)
		_, _ = w.Write([]byte(`[{"licence_number":"PC2021320","operator_name":"GO NORTH WEST LIMITED","total_services":12,"requires_attention":25,"licence_status":"Valid"}]`))
	})

	got, err := c.RegistrationStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].TotalServices)
	assert.InDelta(t, 25, got[0].RequiresAttention, 0.001)
}

func TestClient_AllRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/all-records", r.URL.Path)
		assert.Equal(t, "No", r.URL.Query().Get("latestOnly"))
		assert.Equal(t, "Yes", r.URL.Query().Get("activeOnly"))
		_, _ = w.Write([]byte(`[{"registrationNumber":"PB0000001/12","variationNumber":0}]`))
	})

	got, err := c.AllRecords(context.Background(), false, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PB0000001/12", got[0]["registrationNumber"])
}
