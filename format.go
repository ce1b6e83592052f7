package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
func formatSize(bytes int64) string {
	switch {
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatTime returns a compact timestamp for display. Zero times print as "-".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row. The last column is not padded.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			parts[i] = cell
			continue
		}

		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// progressMinInterval throttles redraws so fast transfers do not flood the
// terminal.
const progressMinInterval = 100 * time.Millisecond

// progressPrinter renders one-line transfer progress on a terminal. It is
// safe for concurrent use by parallel downloads; each transfer gets its own
// label.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last time.Time
}

// newProgress returns a progress callback factory, or nil when progress
// should not be drawn: quiet mode, JSON output, or stderr not a terminal.
func (cc *CLIContext) newProgress() *progressPrinter {
	if cc.Flags.Quiet || cc.Flags.JSON {
		return nil
	}

	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}

	return &progressPrinter{w: os.Stderr}
}

// track returns a ProgressFunc that reports under label. A nil printer
// returns nil, which disables progress in the library.
func (p *progressPrinter) track(label string) centerdevice.ProgressFunc {
	if p == nil {
		return nil
	}

	return func(done, total int64) {
		p.mu.Lock()
		defer p.mu.Unlock()

		finished := total > 0 && done >= total
		if !finished && time.Since(p.last) < progressMinInterval {
			return
		}

		p.last = time.Now()

		fmt.Fprintf(p.w, "\r\033[K%s", progressLine(label, done, total))

		if finished {
			fmt.Fprintln(p.w)
		}
	}
}

// progressLine formats "label  1.0 MB / 4.0 MB (25%)".
func progressLine(label string, done, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("%s  %s", label, formatSize(done))
	}

	return fmt.Sprintf("%s  %s / %s (%d%%)", label, formatSize(done), formatSize(total), done*100/total)
}
