package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"busreg.io/stager/internal/domain"
	"busreg.io/stager/internal/usecase"
)

// maxRowsPerGroup bounds the rows printed per failure group.
const maxRowsPerGroup = 10

// print writes the navigation and passes err through so the exit status is non-zero.
func (c *cli) print(cmd *cobra.Command, nav domain.Navigation, err error) error {
	out := cmd.OutOrStdout()
	if c.asJSON {
		if eerr := writeJSON(out, nav); eerr != nil {
			return eerr
		}
		return err
	}
	render(out, nav)
	return err
}

func render(out io.Writer, nav domain.Navigation) {
	switch state := nav.State.(type) {
	case domain.Success:
		fmt.Fprintf(out, "Upload complete: %d registrations accepted.\n", state.ValidCount)
	case domain.PendingConfirmation:
		fmt.Fprintf(out, "Batch %s needs confirmation:\n", state.StageID)
		for _, r := range state.Records {
			fmt.Fprintf(out, "  %s\n", r.Title())
			for _, n := range r.RegistrationNumbers {
				fmt.Fprintf(out, "    %s\n", n)
			}
		}
		fmt.Fprintln(out, "Run 'bsrctl commit' to keep these registrations or 'bsrctl discard' to drop them.")
	case domain.PartialFailure:
		fmt.Fprintf(out, "%d registrations accepted, %d rows rejected.\n", state.ValidCount, state.InvalidCount)
		for _, g := range state.Groups {
			renderGroup(out, g)
		}
	case domain.StatusUnknown:
		fmt.Fprintln(out, state.Message)
	case domain.ErrorState:
		fmt.Fprintf(out, "Error: %s\n", state.Error)
	case usecase.FormState:
		fmt.Fprintf(out, "Error: %s\n", state.Error)
		for _, fe := range state.FieldErrors {
			fmt.Fprintf(out, "  %s: %s\n", fe.Field, fe.Message)
		}
	default:
		if nav.View == domain.ViewUpload {
			fmt.Fprintln(out, "No batch held; a new file can be uploaded.")
			return
		}
		fmt.Fprintf(out, "%s\n", nav.View)
	}
}

func renderGroup(out io.Writer, g domain.InvalidRecordGroup) {
	fmt.Fprintf(out, "\n%s (%d rows)\n", g.Description, g.RowCount())
	page := g.Page(1, maxRowsPerGroup)
	for _, row := range page.Rows {
		fields := make([]string, 0, len(row.Errors))
		for _, e := range row.Errors {
			for field, msg := range e {
				fields = append(fields, field+": "+msg)
			}
		}
		fmt.Fprintf(out, "  row %s  %s\n", row.Row, strings.Join(fields, "; "))
	}
	if page.TotalPages > 1 {
		fmt.Fprintf(out, "  ... %d more rows\n", page.TotalRows-len(page.Rows))
	}
}
