package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"smoothy/internal/history"
	"smoothy/internal/startup"
)

func newHistoryCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent job outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := startup.Load(*configFlag)
			if err != nil {
				return err
			}
			if !config.HistoryEnabled {
				return errors.New("history is disabled (HISTORY_ENABLED=false)")
			}
			path := config.HistoryPath()
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No history recorded yet (%s)\n", path)
				return nil
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := history.Open(ctx, path)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			summary, err := store.Summary(ctx)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), records, summary, time.Now())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Number of records to show")
	return cmd
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func printHistory(w io.Writer, records []history.Record, summary map[string]int, now time.Time) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No jobs recorded")
		return err
	}

	headers := []string{"Finished", "Job", "Mode", "Outcome", "Status", "Input", "Output", "Media", "Elapsed"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			humanize.RelTime(rec.FinishedAt, now, "ago", "from now"),
			shortID(rec.JobID),
			rec.Mode,
			rec.Outcome,
			strconv.Itoa(rec.StatusCode),
			humanize.IBytes(uint64(rec.InputBytes)),
			humanize.IBytes(uint64(rec.OutputBytes)),
			fmt.Sprintf("%.1fs", rec.MediaDuration),
			fmt.Sprintf("%.1fs", rec.ElapsedSeconds),
		})
	}

	if _, err := fmt.Fprintln(w, renderTable(headers, rows, aligns)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, summaryLine(summary))
	return err
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// summaryLine renders outcome counts in a stable order, e.g.
// "Total 5: success 3, too_long 2".
func summaryLine(summary map[string]int) string {
	outcomes := make([]string, 0, len(summary))
	total := 0
	for outcome, n := range summary {
		outcomes = append(outcomes, outcome)
		total += n
	}
	sort.Strings(outcomes)

	parts := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		parts = append(parts, fmt.Sprintf("%s %d", outcome, summary[outcome]))
	}
	return fmt.Sprintf("Total %d: %s", total, strings.Join(parts, ", "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
