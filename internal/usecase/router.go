package usecase

import "busreg.io/stager/internal/domain"

// Route decides the outcome of a terminal batch, in priority order:
// antivirus rejection, staged records awaiting confirmation, clean report,
// partial failure. A batch without a report counts as an empty report.
func Route(b domain.Batch) domain.Outcome {
	if b.InvalidFile != "" || b.Status == domain.StageStatusFailedAntivirus {
		return domain.AntivirusRejected{Message: domain.AntivirusRejectedMessage}
	}
	if b.RequiresConfirmation() {
		return domain.PendingConfirmation{StageID: b.ID, Records: b.Records}
	}

	var report domain.Report
	if b.Report != nil {
		report = *b.Report
	}
	if report.InvalidFile != "" {
		return domain.AntivirusRejected{Message: domain.AntivirusRejectedMessage}
	}

	invalid := report.InvalidRowCount()
	if invalid == 0 {
		return domain.Success{ValidCount: report.ValidRecordsCount}
	}
	return domain.PartialFailure{
		StageID:      b.ID,
		ValidCount:   report.ValidRecordsCount,
		InvalidCount: invalid,
		Groups:       report.NonEmptyGroups(),
	}
}

// Navigate maps an outcome to the view that presents it.
func Navigate(o domain.Outcome) domain.Navigation {
	switch v := o.(type) {
	case domain.AntivirusRejected:
		return domain.ErrorNavigation(v.Message)
	case domain.PendingConfirmation:
		return domain.Navigation{View: domain.ViewPreValidation, State: v}
	case domain.Success:
		return domain.Navigation{View: domain.ViewSuccess, State: v}
	case domain.PartialFailure:
		return domain.Navigation{View: domain.ViewPartialFailure, State: v}
	case domain.StatusUnknown:
		return domain.Navigation{View: domain.ViewStatusUnknown, State: v}
	default:
		return domain.UploadNavigation()
	}
}
