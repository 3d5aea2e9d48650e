package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is a table header with the alignment of its cells.
type column struct {
	title string
	align text.Align
}

func left(title string) column  { return column{title: title, align: text.AlignLeft} }
func right(title string) column { return column{title: title, align: text.AlignRight} }

// tableView is what the commands print in non-JSON mode. Short rows are
// padded; an optional footer carries totals.
type tableView struct {
	columns []column
	rows    [][]string
	footer  []string
}

func (v tableView) render() string {
	n := len(v.columns)
	if n == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	// Footers hold durations and sizes; keep their case.
	tw.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, n)
	configs := make([]table.ColumnConfig, n)
	for i, c := range v.columns {
		header[i] = c.title
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       c.align,
			AlignFooter: c.align,
			AlignHeader: text.AlignLeft,
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range v.rows {
		tw.AppendRow(padRow(row, n))
	}
	if len(v.footer) > 0 {
		tw.AppendFooter(padRow(v.footer, n))
	}

	return tw.Render()
}

func padRow(cells []string, n int) table.Row {
	row := make(table.Row, n)
	for i := range n {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
