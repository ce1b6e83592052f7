package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 5242880, "5.0 MB"},
		{"gigabytes", 1610612736, "1.5 GB"},
		{"terabytes", 1099511627776, "1.0 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	t.Run("same year", func(t *testing.T) {
		result := formatTime(time.Date(now.Year(), time.March, 15, 10, 30, 0, 0, time.UTC))
		assert.Contains(t, result, "Mar")
		assert.Contains(t, result, "10:30")
	})

	t.Run("different year", func(t *testing.T) {
		result := formatTime(time.Date(2020, time.December, 25, 8, 0, 0, 0, time.UTC))
		assert.Contains(t, result, "Dec")
		assert.Contains(t, result, "2020")
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, "-", formatTime(time.Time{}))
	})
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"ID", "SIZE", "FILENAME"}, [][]string{
		{"doc-1", "2.0 KB", "report.pdf"},
		{"doc-22", "0 B", "a.txt"},
	})

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID      SIZE    FILENAME", lines[0])
	assert.Equal(t, "doc-1   2.0 KB  report.pdf", lines[1])
	assert.Equal(t, "doc-22  0 B     a.txt", lines[2])
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printJSON(&buf, map[string]int{"hits": 3}))
	assert.Equal(t, "{\n  \"hits\": 3\n}\n", buf.String())

	err := printJSON(&buf, func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding JSON output")
}

func TestProgressLine(t *testing.T) {
	assert.Equal(t, "a.txt  1.0 KB / 4.0 KB (25%)", progressLine("a.txt", 1024, 4096))
	assert.Equal(t, "a.txt  512 B", progressLine("a.txt", 512, -1))
}

func TestProgressPrinter_NilIsDisabled(t *testing.T) {
	var p *progressPrinter
	assert.Nil(t, p.track("x"))
}

func TestProgressPrinter_Throttles(t *testing.T) {
	var buf bytes.Buffer

	p := &progressPrinter{w: &buf}
	fn := p.track("doc")

	fn(1, 100)
	fn(2, 100) // within the redraw interval
	fn(100, 100)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\r"))
	assert.True(t, strings.HasSuffix(out, "(100%)\n"))
}

func TestNewProgress_DisabledForJSONAndQuiet(t *testing.T) {
	assert.Nil(t, (&CLIContext{Flags: CLIFlags{JSON: true}}).newProgress())
	assert.Nil(t, (&CLIContext{Flags: CLIFlags{Quiet: true}}).newProgress())
}
