package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"busreg.io/stager/internal/domain"
)

func cmdUpload(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "upload a registrations CSV and wait for staging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			nav, err := c.flows.Start(cmd.Context(), c.store, args[0], f)
			if err == nil && nav.View == domain.ViewPreValidation && c.yes {
				if perr := c.print(cmd, nav, nil); perr != nil {
					return perr
				}
				nav, err = c.flows.Commit(cmd.Context(), c.store)
			}
			return c.print(cmd, nav, err)
		},
	}
}

func cmdStatus(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "resume the held batch and show its outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nav, err := c.flows.Resume(cmd.Context(), c.store)
			if err == nil && nav.View == domain.ViewPreValidation && c.yes {
				nav, err = c.flows.Commit(cmd.Context(), c.store)
			}
			return c.print(cmd, nav, err)
		},
	}
}

func cmdCommit(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "commit the staged records of the held batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nav, err := c.flows.Commit(cmd.Context(), c.store)
			return c.print(cmd, nav, err)
		},
	}
}

func cmdDiscard(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "discard the staged records of the held batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nav, err := c.flows.Discard(cmd.Context(), c.store)
			return c.print(cmd, nav, err)
		},
	}
}

func cmdPending(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "list batches waiting for commit or discard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			processes, err := c.flows.Pending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(processes) == 0 {
				fmt.Fprintln(out, "No batches pending; a new file can be uploaded.")
				return nil
			}
			for _, p := range processes {
				fmt.Fprintf(out, "%s\t%s\n", p.StageID, p.CreatedAt)
			}
			return nil
		},
	}
}
