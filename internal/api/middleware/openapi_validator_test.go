package middleware

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "busreg.io/stager/internal/pkg/errors"
)

func TestNormalizeValidationPath(t *testing.T) {
	testCases := []struct {
		name     string
		basePath string
		path     string
		want     string
	}{
		{name: "strip prefix", basePath: "/api/v1", path: "/api/v1/uploads/staged", want: "/uploads/staged"},
		{name: "root path", basePath: "/api/v1", path: "/api/v1", want: "/"},
		{name: "no match", basePath: "/api/v1", path: "/health", want: "/health"},
		{name: "empty base", basePath: "", path: "/uploads", want: "/uploads"},
		{name: "trailing slash base", basePath: "api/v1/", path: "/api/v1/uploads", want: "/uploads"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeValidationPath(normalizeBasePath(tc.basePath), tc.path)
			if got != tc.want {
				t.Fatalf("normalizeValidationPath mismatch: got %q want %q", got, tc.want)
			}
		})
	}
}

func newValidatedRouter(maxBytes int64) *gin.Engine {
	router := gin.New()
	router.Use(ErrorHandler(), MustOpenAPIValidator("/api/v1", maxBytes))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"view": "upload"}) }
	router.GET("/api/v1/uploads/report/:id", ok)
	router.GET("/api/v1/registrations/search", ok)
	router.POST("/api/v1/uploads", ok)
	router.PUT("/api/v1/admin/log-level", ok)
	router.GET("/api/v1/unlisted", ok)
	return router
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Code
}

func TestOpenAPIValidator_Query(t *testing.T) {
	router := newValidatedRouter(0)

	testCases := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "defaults", path: "/api/v1/uploads/report/abc", wantCode: http.StatusOK},
		{name: "paging", path: "/api/v1/uploads/report/abc?page=2&page_size=50", wantCode: http.StatusOK},
		{name: "page not a number", path: "/api/v1/uploads/report/abc?page=two", wantCode: http.StatusBadRequest},
		{name: "page zero", path: "/api/v1/uploads/report/abc?page=0", wantCode: http.StatusBadRequest},
		{name: "page size above cap", path: "/api/v1/uploads/report/abc?page_size=501", wantCode: http.StatusBadRequest},
		{name: "search flags", path: "/api/v1/registrations/search?licence_number=PB1&latest_only=No&strict_mode=true", wantCode: http.StatusOK},
		{name: "search bad flag", path: "/api/v1/registrations/search?active_only=maybe", wantCode: http.StatusBadRequest},
		{name: "unknown path passes", path: "/api/v1/unlisted?page=two", wantCode: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantCode == http.StatusBadRequest {
				if got := errorCode(t, w); got != apperrors.CodeOpenAPIRequestInvalid {
					t.Fatalf("code = %q, want %q", got, apperrors.CodeOpenAPIRequestInvalid)
				}
			}
		})
	}
}

func multipartCSV(t *testing.T, field, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="services.csv"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestOpenAPIValidator_Upload(t *testing.T) {
	router := newValidatedRouter(1 << 10)

	for _, ct := range []string{"text/csv", "application/vnd.ms-excel", "application/octet-stream"} {
		t.Run(ct, func(t *testing.T) {
			body, formType := multipartCSV(t, "file", ct, "licence_number,operator_name\nPB0000001,Go North West\n")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
			req.Header.Set("Content-Type", formType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
		})
	}

	t.Run("no body", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
		}
	})

	t.Run("too large", func(t *testing.T) {
		body, formType := multipartCSV(t, "file", "text/csv", strings.Repeat("x", 4<<10))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
		req.Header.Set("Content-Type", formType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413: %s", w.Code, w.Body.String())
		}
		if got := errorCode(t, w); got != apperrors.CodeUploadFailed {
			t.Fatalf("code = %q, want %q", got, apperrors.CodeUploadFailed)
		}
	})

	t.Run("wrong media type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(`{"file":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
		}
	})
}

func TestOpenAPIValidator_LogLevelBody(t *testing.T) {
	router := newValidatedRouter(0)

	testCases := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "known level", body: `{"level":"debug"}`, wantCode: http.StatusOK},
		{name: "unknown level", body: `{"level":"loud"}`, wantCode: http.StatusBadRequest},
		{name: "missing level", body: `{}`, wantCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/log-level", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.wantCode, w.Body.String())
			}
		})
	}
}
