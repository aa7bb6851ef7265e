// Package report renders runs, snapshots and run history for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	units "github.com/docker/go-units"

	"github.com/benoistlaurent/autobackup/internal/backup"
	"github.com/benoistlaurent/autobackup/internal/history"
)

// maxFailuresShown caps the per-entry failure list in text output.
const maxFailuresShown = 10

// Printer writes human-readable reports. Colors are only emitted when the
// writer is a terminal.
type Printer struct {
	w io.Writer

	title   lipgloss.Style
	dim     lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	border  lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	failed  lipgloss.Style
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1),
		cell:    r.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1),
		border:  r.NewStyle().Foreground(lipgloss.Color("240")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Size formats a byte count ("1.5MB").
func Size(n int64) string {
	return units.HumanSize(float64(n))
}

func (p *Printer) status(s backup.Status) string {
	switch s {
	case backup.StatusSuccess:
		return p.success.Render(string(s))
	case backup.StatusPartial:
		return p.warn.Render(string(s))
	default:
		return p.failed.Render(string(s))
	}
}

func (p *Printer) table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return p.cell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// Run prints the summary of a backup run.
func (p *Printer) Run(run *backup.Run) {
	title := fmt.Sprintf("==> backup %s (run %s)", run.Date, shortID(run.ID))
	if run.DryRun {
		title += " [dry run]"
	}
	fmt.Fprintln(p.w, p.title.Render(title))

	if len(run.Entries) == 0 {
		fmt.Fprintln(p.w, p.dim.Render("no workstations configured"))
		return
	}

	copied := "copied"
	if run.DryRun {
		copied = "to copy"
	}

	rows := make([][]string, 0, len(run.Entries))
	for _, e := range run.Entries {
		rows = append(rows, []string{
			e.Name,
			p.status(e.Status),
			strconv.Itoa(e.Copied),
			strconv.Itoa(e.Skipped),
			strconv.Itoa(e.Excluded),
			strconv.Itoa(e.Failed),
			Size(e.Bytes),
			e.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(p.w, p.table(
		[]string{"workstation", "status", copied, "skipped", "excluded", "failed", "size", "time"},
		rows,
	))

	for _, e := range run.Entries {
		if e.Error != "" {
			fmt.Fprintf(p.w, "%s %s: %s\n", p.failed.Render("✗"), e.Name, e.Error)
		}
		for i, f := range e.Failures {
			if i == maxFailuresShown {
				fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("  ... and %d more", len(e.Failures)-maxFailuresShown)))
				break
			}
			fmt.Fprintf(p.w, "%s %s: %s: %s\n", p.warn.Render("!"), e.Name, f.Path, f.Error)
		}
	}

	t := run.Totals()
	fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("total: %d %s, %d skipped, %d failed, %s in %s",
		t.Copied, copied, t.Skipped, t.Failed, Size(t.Bytes), run.Duration().Round(time.Millisecond))))
}

// Snapshots prints the snapshots of one workstation, newest first.
func (p *Printer) Snapshots(name string, manifests []backup.Manifest) {
	fmt.Fprintln(p.w, p.title.Render(fmt.Sprintf("==> snapshots for %s (%d)", name, len(manifests))))

	rows := make([][]string, 0, len(manifests))
	var total int64
	for _, m := range manifests {
		size := m.TotalSize()
		total += size
		date := m.Date
		if m.Incomplete {
			date += " (incomplete)"
		}
		rows = append(rows, []string{
			date,
			m.CreatedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(len(m.Files)),
			Size(size),
			m.Dir,
		})
	}
	fmt.Fprintln(p.w, p.table([]string{"date", "written", "files", "size", "path"}, rows))
	fmt.Fprintln(p.w, p.dim.Render("total: "+Size(total)))
}

// History prints recorded runs, newest first.
func (p *Printer) History(records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(p.w, p.dim.Render("no runs recorded yet"))
		return
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		t := rec.Run.Totals()
		rows = append(rows, []string{
			rec.Run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			shortID(rec.Run.ID),
			p.status(rec.Status),
			fmt.Sprintf("%d/%d", len(rec.Run.Entries)-rec.Run.FailedEntries(), len(rec.Run.Entries)),
			strconv.Itoa(t.Copied),
			strconv.Itoa(t.Failed),
			Size(t.Bytes),
			rec.Run.Duration().Round(time.Second).String(),
		})
	}
	fmt.Fprintln(p.w, p.table(
		[]string{"started", "run", "status", "ok", "copied", "failed", "size", "time"},
		rows,
	))
}

// Failures prints the files a verification flagged.
func (p *Printer) Failures(failures []backup.FileFailure) {
	for _, f := range failures {
		fmt.Fprintf(p.w, "%s %s: %s\n", p.failed.Render("✗"), f.Path, f.Error)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
