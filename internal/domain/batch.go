// Package domain provides the models of the staged-upload workflow.
//
// The server owns every batch; the client only holds its identifier and
// never mutates it except through commit and discard.
package domain

import (
	"strings"
	"time"
)

// StageStatus is the server-side state of a batch.
type StageStatus string

const (
	StageStatusPending         StageStatus = "pending"
	StageStatusCompleted       StageStatus = "completed"
	StageStatusFailedAntivirus StageStatus = "failed-antivirus"
)

// ParseStageStatus maps the wire value ("Completed", "pending", ...) onto a
// StageStatus. Unknown values are pending: they never end a poll.
func ParseStageStatus(s string) StageStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return StageStatusCompleted
	case "failed-antivirus", "failed_antivirus":
		return StageStatusFailedAntivirus
	default:
		return StageStatusPending
	}
}

// Terminal reports whether no further polling can change the status.
func (s StageStatus) Terminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailedAntivirus
}

// StagedRecord is one licence's worth of parsed-but-unconfirmed rows.
type StagedRecord struct {
	LicenceNumber       string   `json:"licence_number"`
	OperatorName        string   `json:"operator_name"`
	RegistrationNumbers []string `json:"registration_numbers"`
}

// Title is the heading shown for the record on the pre-validation view.
func (r StagedRecord) Title() string {
	return r.LicenceNumber + " - " + r.OperatorName
}

// StageProcess is an unresolved batch listed by the staging endpoint.
type StageProcess struct {
	StageID   string `json:"stage_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Batch is the client's view of a terminal (or pending) server batch.
type Batch struct {
	ID      string         `json:"batch_id"`
	Status  StageStatus    `json:"status"`
	Records []StagedRecord `json:"records,omitempty"`
	Report  *Report        `json:"report,omitempty"`
	// InvalidFile carries the antivirus rejection signal when present.
	InvalidFile string `json:"invalid_file,omitempty"`
}

// RequiresConfirmation reports whether staged records wait for commit or discard.
func (b Batch) RequiresConfirmation() bool {
	return len(b.Records) > 0
}

// Stage is the explicit workflow context for one staged upload.
//
// It replaces the cookie as the source of truth inside a workflow; session
// stores only persist the ID across page reloads or CLI invocations.
type Stage struct {
	ID       string    `json:"stage_id" yaml:"stage_id"`
	Accepted time.Time `json:"accepted_at" yaml:"accepted_at"`
	cleared  bool
}

// NewStage returns the context for a batch the server just accepted.
func NewStage(id string, now time.Time) *Stage {
	return &Stage{ID: id, Accepted: now}
}

// Cleared reports whether the stage pointer has been released.
func (s *Stage) Cleared() bool {
	return s == nil || s.cleared
}

// MarkCleared records that the pointer was released. It returns false when it
// already was, so callers delete the persisted pointer exactly once.
func (s *Stage) MarkCleared() bool {
	if s == nil || s.cleared {
		return false
	}
	s.cleared = true
	return true
}
