package intake

import (
	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/go-gota/gota/dataframe"
)

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// GetStr returns the cell at col/rowIdx, or "" when the column is absent.
func GetStr(col string, rowIdx int, df *dataframe.DataFrame) string {
	if df == nil {
		return ""
	}
	if containsString(df.Names(), col) {
		return df.Col(col).Elem(rowIdx).String()
	}
	return ""
}

// frameToTable flattens df into rows; lines holds the file line of each
// data row in order.
func frameToTable(df dataframe.DataFrame, lines []int) *Table {
	names := df.Names()
	header := normalizeHeader(names)

	table := &Table{Header: header, Rows: make([]emissions.RawRow, 0, df.Nrow())}
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		fields := make(map[string]string, len(names))
		for i, raw := range names {
			if header[i] == "" {
				continue
			}
			fields[header[i]] = GetStr(raw, rowIdx, &df)
		}
		line := rowIdx + 2
		if rowIdx < len(lines) {
			line = lines[rowIdx]
		}
		table.Rows = append(table.Rows, emissions.RawRow{Line: line, Fields: fields})
	}
	return table
}
