package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/granthalaya/sanskritcrawl/internal/store"
)

func storeFilterFlags(cmd *cobra.Command, f *store.Filters) {
	cmd.Flags().StringVar(&f.Source, "source", "", "only files from this source")
	cmd.Flags().StringVar(&f.Category, "category", "", "only files in this category")
	cmd.Flags().StringVar((*string)(&f.Format), "format", "", "only files in this format")
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print scraping and storage statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := a.orc.GetStats()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var filters store.Filters
	var showValid bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Re-validate stored content against the current rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			reports, err := a.orc.ValidateStoredContent(filters)
			if err != nil {
				return err
			}
			invalid := 0
			for _, r := range reports {
				if r.Report.Valid {
					if showValid {
						fmt.Fprintf(cmd.OutOrStdout(), "ok    %s (score %.2f)\n", r.Path, r.Report.Score)
					}
					continue
				}
				invalid++
				fmt.Fprintf(cmd.OutOrStdout(), "BAD   %s\n", r.Path)
				for _, e := range r.Report.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", e)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d files checked, %d invalid\n", len(reports), invalid)
			if invalid > 0 {
				return fmt.Errorf("%d stored files failed validation", invalid)
			}
			return nil
		},
	}
	storeFilterFlags(cmd, &filters)
	cmd.Flags().BoolVar(&showValid, "show-valid", false, "also list files that pass")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned files from the content store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := a.orc.CleanupStorage()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d orphaned files removed\n", removed)
			return nil
		},
	}
}

func newDuplicatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List groups of stored files with identical content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := a.orc.ListDuplicates()
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no duplicates found")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d copies)\n", g.Hash, len(g.Items))
				for _, item := range g.Items {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", item.Path)
				}
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var filters store.Filters
	cmd := &cobra.Command{
		Use:   "export <dest>",
		Short: "Copy stored content into another directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.orc.ExportContent(args[0], filters); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", args[0])
			return nil
		},
	}
	storeFilterFlags(cmd, &filters)
	return cmd
}
