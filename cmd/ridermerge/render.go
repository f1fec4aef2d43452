package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/okian/ridermerge/internal/domain/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderReport formats a batch report as status lines followed by tables.
func renderReport(r *model.Report, colorize bool) string {
	color.NoColor = !colorize
	var b strings.Builder

	mode := "merge"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "%s %s (%s)\n", color.CyanString("run"), r.RunID, mode)
	fmt.Fprintf(&b, "took %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	switch {
	case r.Cancelled:
		b.WriteString(color.YellowString("cancelled with %d pairs pending", r.PendingPairs) + "\n")
	case len(r.Errors) > 0:
		b.WriteString(color.RedString("finished with %d errors", len(r.Errors)) + "\n")
	default:
		b.WriteString(color.GreenString("finished") + "\n")
	}

	b.WriteString(renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"merged", strconv.Itoa(r.MergedCount)},
			{"references moved", strconv.FormatInt(r.ReferencesMovedCount, 10)},
			{"already merged", strconv.Itoa(r.AlreadyMergedCount)},
			{"pending pairs", strconv.Itoa(r.PendingPairs)},
			{"rejected conflicts", strconv.Itoa(len(r.RejectedConflicts))},
			{"review candidates", strconv.Itoa(len(r.ReviewCandidates))},
			{"skipped records", strconv.Itoa(len(r.SkippedRecords))},
			{"errors", strconv.Itoa(len(r.Errors))},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
	b.WriteString("\n")

	groups := make([][]string, 0, len(model.Strategies()))
	for _, s := range model.Strategies() {
		groups = append(groups, []string{string(s), strconv.Itoa(r.GroupsFoundByStrategy[s])})
	}
	section(&b, "Groups found", []string{"Strategy", "Groups"}, groups, []columnAlignment{alignLeft, alignRight})

	if len(r.PlannedMerges) > 0 {
		rows := make([][]string, 0, len(r.PlannedMerges))
		for _, p := range r.PlannedMerges {
			rows = append(rows, []string{
				idString(p.Pair.Canonical), idString(p.Pair.Duplicate), string(p.Strategy), strconv.Itoa(p.Score),
			})
		}
		section(&b, "Planned merges", []string{"Canonical", "Duplicate", "Strategy", "Score"}, rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignRight})
	}

	if len(r.RejectedConflicts) > 0 {
		rows := make([][]string, 0, len(r.RejectedConflicts))
		for _, c := range r.RejectedConflicts {
			rows = append(rows, []string{string(c.Strategy), c.Key, joinIDs(c.RiderIDs), strings.Join(c.StrongIDs, ", "), c.Reason})
		}
		section(&b, "Rejected conflicts", []string{"Strategy", "Key", "Riders", "Strong ids", "Reason"}, rows, nil)
	}

	if len(r.ReviewCandidates) > 0 {
		rows := make([][]string, 0, len(r.ReviewCandidates))
		for _, g := range r.ReviewCandidates {
			names := make([]string, len(g.Riders))
			for i, rider := range g.Riders {
				names[i] = rider.FullName()
			}
			rows = append(rows, []string{string(g.Strategy), g.Key, joinIDs(g.IDs()), strings.Join(names, " / ")})
		}
		section(&b, "Review candidates", []string{"Strategy", "Key", "Riders", "Names"}, rows, nil)
	}

	if len(r.Errors) > 0 {
		rows := make([][]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			rows = append(rows, []string{idString(e.Pair.Canonical), idString(e.Pair.Duplicate), e.Kind, e.Reason})
		}
		section(&b, color.RedString("Errors"), []string{"Canonical", "Duplicate", "Kind", "Reason"}, rows,
			[]columnAlignment{alignRight, alignRight})
	}
	return b.String()
}

func section(b *strings.Builder, title string, headers []string, rows [][]string, aligns []columnAlignment) {
	b.WriteString(color.New(color.Bold).Sprint(title) + "\n")
	b.WriteString(renderTable(headers, rows, aligns))
	b.WriteString("\n")
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = idString(id)
	}
	return strings.Join(parts, ", ")
}
