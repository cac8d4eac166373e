package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeStageNotFound, "stage not found", http.StatusNotFound),
			want: "STAGE_NOT_FOUND: stage not found",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("connection reset"), CodeUpstreamError, "upload failed", http.StatusBadGateway),
			want: "UPSTREAM_ERROR: upload failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, "CODE", "msg", 500)

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := ErrStageNotFound()
	wrapped := fmt.Errorf("wrapped: %w", appErr)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != CodeStageNotFound {
		t.Errorf("Code = %q, want %s", got.Code, CodeStageNotFound)
	}
	if !HasCode(wrapped, CodeStageNotFound) {
		t.Error("HasCode should match the wrapped code")
	}
	if HasCode(errors.New("plain"), CodeStageNotFound) {
		t.Error("HasCode should not match a plain error")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
	}{
		{"NotFound", NotFound("NF", "not found"), http.StatusNotFound},
		{"BadRequest", BadRequest("BR", "bad request"), http.StatusBadRequest},
		{"Unauthorized", Unauthorized("UA", "unauthorized"), http.StatusUnauthorized},
		{"Forbidden", Forbidden("FB", "forbidden"), http.StatusForbidden},
		{"Conflict", Conflict("CF", "conflict"), http.StatusConflict},
		{"Internal", Internal("IE", "internal"), http.StatusInternalServerError},
		{"BadGateway", BadGateway("BG", "bad gateway"), http.StatusBadGateway},
		{"StagingFailed", ErrStagingFailedf("abc", 4), http.StatusGatewayTimeout},
		{"StagePending", ErrStagePendingf("abc"), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestErrInvalidFileTypef_CarriesFieldError(t *testing.T) {
	err := ErrInvalidFileTypef("routes.xlsx")

	if err.Message != MsgFileFormat {
		t.Errorf("Message = %q, want %q", err.Message, MsgFileFormat)
	}
	if len(err.FieldErrors) != 1 || err.FieldErrors[0].Field != "file" {
		t.Fatalf("FieldErrors = %#v, want one error on field file", err.FieldErrors)
	}
	if got := err.Param("filename"); got != "routes.xlsx" {
		t.Errorf("Param(filename) = %q, want routes.xlsx", got)
	}
}
