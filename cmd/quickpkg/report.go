package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"quickpkg/internal/packager"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

var sizeUnits = []string{"K", "M", "G", "T", "P", "E", "Z", "Y"}

// formatSize renders a byte count with binary prefixes and one decimal,
// dropping the decimal once the number needs more than four characters.
func formatSize(size int64) string {
	if size < 1024 {
		return strconv.FormatInt(size, 10)
	}
	value := float64(size)
	unit := ""
	for _, candidate := range sizeUnits {
		if value < 1024 {
			break
		}
		value /= 1024
		unit = candidate
	}
	formatted := strconv.FormatFloat(value, 'f', 1, 64)
	if len(formatted) > 4 {
		formatted = strconv.FormatInt(int64(value), 10)
	}
	return formatted + unit
}

func writeReport(w io.Writer, summary *packager.Summary, colorize bool) {
	printer := message.NewPrinter(language.English)

	if len(summary.Successes) > 0 {
		fmt.Fprintln(w, renderSummaryTable(summary))
		total := summary.TotalSize()
		line := printer.Sprintf("%d binary packages written, %d bytes in total", len(summary.Successes), total)
		fmt.Fprintln(w, paint(line, ansiGreen, colorize))
	}

	if summary.ExcludedConfig > 0 {
		line := printer.Sprintf("%d protected configuration files were excluded; pass --include-config y to include them",
			summary.ExcludedConfig)
		fmt.Fprintln(w, paint(line, ansiYellow, colorize))
	}

	if len(summary.Missing) > 0 {
		fmt.Fprintln(w, paint("No installed package matched:", ansiRed, colorize))
		for _, raw := range summary.Missing {
			fmt.Fprintf(w, "  %s\n", raw)
		}
	}
}

func renderSummaryTable(summary *packager.Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Package", "Size", "Path"})
	for _, success := range summary.Successes {
		tw.AppendRow(table.Row{success.CPV.String(), formatSize(success.Size), success.Path})
	}
	tw.AppendFooter(table.Row{"Total", formatSize(summary.TotalSize()), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func paint(line, color string, colorize bool) string {
	if !colorize {
		return line
	}
	return color + line + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderTable renders rows under headers. Columns without an entry in aligns
// are left aligned.
func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(aligns))
	for i, align := range aligns {
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
