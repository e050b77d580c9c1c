package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/metrics"
	"github.com/granthalaya/sanskritcrawl/internal/scrape"
)

func newDiscoverCmd() *cobra.Command {
	var maxPages int
	cmd := &cobra.Command{
		Use:   "discover <source>",
		Short: "List scrapeable URLs for a source without fetching them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			urls, err := a.orc.DiscoverURLs(cmd.Context(), args[0], maxPages)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d URLs discovered for %s\n", len(urls), args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap discovery (default: the source's max_pages)")
	return cmd
}

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <source> [url...]",
		Short: "Scrape one source, discovering URLs when none are given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			task, results, err := a.orc.ScrapeSource(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			printTask(cmd, task)
			printFailures(cmd, results)
			if task.Status != scrape.StatusCompleted {
				return fmt.Errorf("task %s finished with status %s", task.ID, task.Status)
			}
			return nil
		},
	}
	return cmd
}

func newScrapeAllCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "scrape-all",
		Short: "Scrape every configured source concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			addr := metricsAddr
			if addr == "" && a.cfg.Metrics.Enabled {
				addr = a.cfg.Metrics.Addr
			}
			if addr != "" {
				metrics.Init()
				srv := &http.Server{
					Addr:              addr,
					Handler:           metrics.Handler(),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						a.logger.Warn("metrics server stopped", zap.Error(err))
					}
				}()
				defer srv.Close()
				a.logger.Info("serving metrics", zap.String("addr", addr))
			}

			resultsBySource := a.orc.ScrapeAllSources(cmd.Context())
			failed := 0
			for _, name := range a.orc.ListSources() {
				results, ok := resultsBySource[name]
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: did not start\n", name)
					failed++
					continue
				}
				succeeded, bad := tally(results)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: urls=%d ok=%d failed=%d\n",
					name, len(results), succeeded, bad)
				printFailures(cmd, results)
				if bad > 0 {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sources did not complete", failed, len(a.orc.ListSources()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while scraping")
	return cmd
}

func printTask(cmd *cobra.Command, task *scrape.Task) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s  urls=%d ok=%d failed=%d progress=%.0f%%\n",
		task.Source, task.Status, len(task.URLs),
		task.SuccessfulURLs, task.FailedURLs, task.Progress())
}

func printFailures(cmd *cobra.Command, results []*scrape.Result) {
	for _, res := range results {
		if res.Status == scrape.StatusCompleted {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s (%s): %s\n",
			res.Status, res.URL, res.ErrorType, res.ErrorMessage)
	}
}

func tally(results []*scrape.Result) (ok, failed int) {
	for _, res := range results {
		if res.Status == scrape.StatusCompleted {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
