package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"busreg.io/stager/internal/domain"
)

func cmdSearch(c *cli) *cobra.Command {
	var (
		q             domain.SearchQuery
		allVariations bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "search registered services by licence, registration, operator or route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.LatestOnly = !allVariations
			page, err := c.lookups.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				return writeJSON(out, page)
			}
			if len(page.Results) == 0 {
				fmt.Fprintln(out, "No registered services match.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "REGISTRATION\tOPERATOR\tSERVICE\tVARIATION\tLICENCE STATUS")
			for _, r := range page.Results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RegistrationNumber, r.OperatorName, r.ServiceNumber(), r.VariationNumber, r.LicenceStatus)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.NextPage > 0 {
				fmt.Fprintf(out, "More results: rerun with --page %d\n", page.NextPage)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.LicenceNumber, "licence", "", "licence number")
	f.StringVar(&q.RegistrationNumber, "registration", "", "registration number, e.g. PB0000001/12")
	f.StringVar(&q.OperatorName, "operator", "", "operator name")
	f.StringVar(&q.RouteNumber, "route", "", "route number")
	f.BoolVar(&allVariations, "all-variations", false, "include superseded variations")
	f.BoolVar(&q.StrictMode, "strict", false, "match filters exactly")
	f.BoolVar(&q.ActiveOnly, "active", false, "only active registrations")
	f.IntVar(&q.Limit, "limit", domain.DefaultSearchLimit, "results per page")
	f.IntVar(&q.Page, "page", 1, "page number")
	return cmd
}

func cmdRegistrations(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "show your licences and how many services need attention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			licences, err := c.lookups.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				return writeJSON(out, licences)
			}
			if len(licences) == 0 {
				fmt.Fprintln(out, "No registrations found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LICENCE\tOPERATOR\tSERVICES\tREQUIRES ATTENTION\tSTATUS")
			for _, l := range licences {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%g\t%s\n", l.LicenceNumber, l.OperatorName, l.TotalServices, l.RequiresAttention, l.LicenceStatus)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(cmdExport(c))
	return cmd
}

func cmdExport(c *cli) *cobra.Command {
	var (
		output             string
		latestOnly, active bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "download every registration as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := c.lookups.Export(cmd.Context(), latestOnly, active)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return table.WriteCSV(cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := table.WriteCSV(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d registrations to %s\n", len(table), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	cmd.Flags().BoolVar(&latestOnly, "latest", false, "only the latest variation of each service")
	cmd.Flags().BoolVar(&active, "active", false, "only active registrations")
	return cmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
