package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	"github.com/olekukonko/tablewriter"
)

var errEmptyTable = errors.New("table has no rows")

func maxCols(rows [][]string) int {
	m := 0
	for _, row := range rows {
		if len(row) > m {
			m = len(row)
		}
	}
	return m
}

// rowsToMarkdown renders rows as a pipe table. The first row is the header;
// short rows are padded to the widest row.
func rowsToMarkdown(rows [][]string) (string, error) {
	width := maxCols(rows)
	if len(rows) == 0 || width == 0 {
		return "", errEmptyTable
	}

	norm := make([][]string, len(rows))
	for r, row := range rows {
		cells := make([]string, width)
		for i := 0; i < len(row) && i < width; i++ {
			v := strings.ReplaceAll(strings.TrimSpace(row[i]), "\n", " ")
			cells[i] = strings.ReplaceAll(v, "|", "\\|")
		}
		norm[r] = cells
	}

	var sb strings.Builder
	tw := tablewriter.NewWriter(&sb)
	tw.SetHeader(norm[0])
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetBorders(tablewriter.Border{Left: true, Right: true})
	tw.SetCenterSeparator("|")
	tw.AppendBulk(norm[1:])
	tw.Render()
	return strings.TrimSpace(sb.String()), nil
}

func rowsToCSV(rows [][]string) (string, error) {
	if len(rows) == 0 || maxCols(rows) == 0 {
		return "", errEmptyTable
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}
