package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// listTable renders the rounded-style listings used by `videos` and
// `history`. Columns are declared up front; size-like columns are
// right-aligned so byte counts line up.
type listTable struct {
	writer  table.Writer
	columns int
}

type listColumn struct {
	title   string
	numeric bool
}

func newListTable(columns ...listColumn) *listTable {
	writer := table.NewWriter()
	writer.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.title
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		}
	}
	writer.AppendHeader(header)
	writer.SetColumnConfigs(configs)

	return &listTable{writer: writer, columns: len(columns)}
}

func (t *listTable) addRow(values ...string) {
	row := make(table.Row, t.columns)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	t.writer.AppendRow(row)
}

func (t *listTable) render() string {
	return t.writer.Render()
}
