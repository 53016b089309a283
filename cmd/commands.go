package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"scicat/internal/service"
	"scicat/pkg/database"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return database.Migrate(a.db, a.log)
		},
	}
}

func newDigestCommand() *cobra.Command {
	digest := &cobra.Command{
		Use:   "digest",
		Short: "Subscription digest tasks",
	}
	digest.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Send every digest that is currently due",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			start := time.Now()
			run, err := a.subscriptions.RunDigests(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			a.log.Infow("digest run finished", "duration_ms", elapsed(start))
			return printJSON(run)
		},
	})
	return digest
}

func newReportCommand() *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Admin reports",
	}

	var kind, format string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a resources or submissions export to the reports directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := a.reports.Export(cmd.Context(), kind, format)
			if err != nil {
				return err
			}
			cmd.Println(path)
			return nil
		},
	}
	export.Flags().StringVar(&kind, "kind", service.ExportResources, "export kind: resources or submissions")
	export.Flags().StringVar(&format, "format", service.FormatCSV, "file format: csv, xlsx or json")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print the catalogue summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.reports.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}

	report.AddCommand(export, summary)
	return report
}

func newLinksCommand() *cobra.Command {
	links := &cobra.Command{
		Use:   "links",
		Short: "Resource link maintenance",
	}
	links.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check every published resource link and record the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.links.CheckLinks(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	})
	return links
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
