package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rounded box characters on a terminal and plain ASCII
// otherwise so piped output stays greppable. Short rows are padded with
// empty cells.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment, fancy bool) string {
	if len(headers) == 0 {
		return ""
	}

	style := table.StyleDefault
	if fancy {
		style = table.StyleRounded
	}
	tw := table.NewWriter()
	tw.SetStyle(style)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for idx := range configs {
		configs[idx] = table.ColumnConfig{Number: idx + 1, Align: textAlign(aligns, idx), AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	out := make(table.Row, width)
	for idx := range out {
		out[idx] = ""
		if idx < len(cells) {
			out[idx] = cells[idx]
		}
	}
	return out
}

func textAlign(aligns []columnAlignment, idx int) text.Align {
	if idx < len(aligns) && aligns[idx] == alignRight {
		return text.AlignRight
	}
	return text.AlignLeft
}
