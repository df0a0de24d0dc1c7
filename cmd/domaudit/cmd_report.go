package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect persisted audit runs",
}

var reportFlags struct {
	dbPath string
	format string
	limit  int
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE:  runReportList,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Render one stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportFlags.dbPath, "db", "domaudit.db", "run database")
	reportListCmd.Flags().IntVar(&reportFlags.limit, "limit", 20, "max runs to list")
	reportShowCmd.Flags().StringVar(&reportFlags.format, "format", "markdown", "output format: markdown or json")
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
}

func runReportList(cmd *cobra.Command, _ []string) error {
	logger := setupLogging()
	db, store, err := openStore(reportFlags.dbPath, nil, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), reportFlags.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs stored")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPAGES\tFAILED")
	for _, m := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n",
			m.ID, m.StartedAt.Format("2006-01-02 15:04:05"), m.PagesScanned, m.PagesFailed)
	}
	return tw.Flush()
}

func runReportShow(cmd *cobra.Command, args []string) error {
	logger := setupLogging()
	db, store, err := openStore(reportFlags.dbPath, nil, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	cr, _, err := store.LoadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out, err := renderReport(cr, reportFlags.format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
