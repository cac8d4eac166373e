package domain

// OutcomeKind discriminates the terminal outcome of a staged upload.
type OutcomeKind string

const (
	KindAntivirusRejected   OutcomeKind = "antivirus-rejected"
	KindPendingConfirmation OutcomeKind = "pending-confirmation"
	KindSuccess             OutcomeKind = "success"
	KindPartialFailure      OutcomeKind = "partial-failure"
	KindStatusUnknown       OutcomeKind = "status-unknown"
)

// Outcome is decided once, from the server response, by the outcome router.
// The variants below are the only implementations.
type Outcome interface {
	Kind() OutcomeKind
	outcome()
}

// AntivirusRejectedMessage is shown when the server flags the file as infected.
const AntivirusRejectedMessage = "The file was rejected by the antivirus check. Please upload a clean file."

// StatusUnknownMessage is shown when the upload timed out and no batch could be found.
const StatusUnknownMessage = "Upload status unknown, please check back later"

// AntivirusRejected means the server refused the file contents.
type AntivirusRejected struct {
	Message string `json:"message"`
}

// PendingConfirmation means staged records wait for commit or discard.
type PendingConfirmation struct {
	StageID string         `json:"stage_id"`
	Records []StagedRecord `json:"records"`
}

// Success means every row was accepted.
type Success struct {
	ValidCount int `json:"valid_records_count"`
}

// PartialFailure means some rows were rejected; Groups holds only groups with rows.
type PartialFailure struct {
	StageID      string               `json:"stage_id,omitempty"`
	ValidCount   int                  `json:"valid_records_count"`
	InvalidCount int                  `json:"invalid_records_count"`
	Groups       []InvalidRecordGroup `json:"invalid_records"`
}

// StatusUnknown means the upload may or may not have been accepted.
type StatusUnknown struct {
	Message string `json:"message"`
}

func (AntivirusRejected) Kind() OutcomeKind   { return KindAntivirusRejected }
func (PendingConfirmation) Kind() OutcomeKind { return KindPendingConfirmation }
func (Success) Kind() OutcomeKind             { return KindSuccess }
func (PartialFailure) Kind() OutcomeKind      { return KindPartialFailure }
func (StatusUnknown) Kind() OutcomeKind       { return KindStatusUnknown }

func (AntivirusRejected) outcome()   {}
func (PendingConfirmation) outcome() {}
func (Success) outcome()             {}
func (PartialFailure) outcome()      {}
func (StatusUnknown) outcome()       {}

// Final reports whether the outcome resolves the batch, after which the stage
// pointer must be released.
func Final(o Outcome) bool {
	switch o.(type) {
	case AntivirusRejected, Success, PartialFailure:
		return true
	default:
		return false
	}
}

// View names a user-facing page.
type View string

const (
	ViewUpload         View = "upload"
	ViewPreValidation  View = "pre-validation"
	ViewSuccess        View = "success"
	ViewPartialFailure View = "partial-failure"
	ViewError          View = "error"
	ViewStatusUnknown  View = "status-unknown"
)

// Navigation tells the caller which view to show and with what state.
type Navigation struct {
	View  View `json:"view"`
	State any  `json:"state,omitempty"`
}

// ErrorState is the payload consumed by the generic error view.
type ErrorState struct {
	Error string `json:"error"`
}

// ErrorNavigation routes to the error view carrying msg.
func ErrorNavigation(msg string) Navigation {
	return Navigation{View: ViewError, State: ErrorState{Error: msg}}
}

// UploadNavigation returns the user to the upload entry view.
func UploadNavigation() Navigation {
	return Navigation{View: ViewUpload}
}
