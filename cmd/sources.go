package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSourcesCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured text sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range a.orc.ListSources() {
				info, err := a.orc.SourceInfo(name)
				if err != nil {
					return err
				}
				if !verbose {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", name, info.BaseURL)
					continue
				}
				formats := make([]string, 0, len(info.SupportedFormats))
				for _, f := range info.SupportedFormats {
					formats = append(formats, string(f))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", name)
				fmt.Fprintf(cmd.OutOrStdout(), "  url:        %s\n", info.BaseURL)
				if info.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  about:      %s\n", info.Description)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  language:   %s\n", info.Language)
				fmt.Fprintf(cmd.OutOrStdout(), "  rate limit: %.2g req/s\n", info.RateLimit)
				fmt.Fprintf(cmd.OutOrStdout(), "  max pages:  %d\n", info.MaxPages)
				if len(formats) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  formats:    %s\n", strings.Join(formats, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show full source details")
	return cmd
}
