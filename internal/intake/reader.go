package intake

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "iso-8859-1"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var (
	ErrEmptyFile         = errors.New("file has no header row")
	ErrNoDataRows        = errors.New("file has no data rows")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// MissingColumnsError reports required schema columns absent from a header.
type MissingColumnsError struct {
	Category emissions.Category
	Columns  []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s file is missing required columns: %s", e.Category, strings.Join(e.Columns, ", "))
}

type Options struct {
	Delimiter rune
	Encoding  string
}

func DefaultOptions() Options {
	return Options{Delimiter: ',', Encoding: EncodingUTF8}
}

// Table is a decoded upload: normalized header plus one RawRow per data
// line. Line numbers are 1-based file lines, so the first data row is 2.
type Table struct {
	Header []string
	Rows   []emissions.RawRow
}

// FormatOf picks the reader from the file extension; anything that is not
// a spreadsheet is treated as CSV.
func FormatOf(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return ""
	default:
		return FormatCSV
	}
}

func Read(fileName string, r io.Reader, opts Options) (*Table, error) {
	switch FormatOf(fileName) {
	case FormatCSV:
		return ReadCSV(r, opts)
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

func decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingUTF8, "utf8":
		return r, nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	case EncodingLatin1, "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// ReadCSV loads every column as a string so type checks stay with the
// validator, which can then report the offending line. A line whose field
// count differs from the header is kept as a rejected row rather than
// failing the file.
func ReadCSV(r io.Reader, opts Options) (*Table, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}

	decoded, err := decoder(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyFile
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = opts.Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var (
		records   [][]string
		lines     []int
		malformed []emissions.RawRow
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		if len(records) == 0 {
			records = append(records, rec)
			continue
		}

		line, _ := cr.FieldPos(0)
		if len(rec) != len(records[0]) {
			if isBlank(rec) {
				continue
			}
			malformed = append(malformed, shapeRejection(line, records[0], rec))
			continue
		}
		records = append(records, rec)
		lines = append(lines, line)
	}

	if len(records) == 1 {
		if len(malformed) == 0 {
			return nil, fmt.Errorf("failed to parse csv: %w", ErrNoDataRows)
		}
		return &Table{Header: normalizeHeader(records[0]), Rows: malformed}, nil
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", df.Err)
	}

	table := frameToTable(df, lines)
	if len(malformed) > 0 {
		table.Rows = append(table.Rows, malformed...)
		sort.Slice(table.Rows, func(i, j int) bool { return table.Rows[i].Line < table.Rows[j].Line })
	}
	return table, nil
}

// shapeRejection keeps whatever cells line up with the header and marks the
// row so the validator rejects it.
func shapeRejection(line int, header, rec []string) emissions.RawRow {
	columns := normalizeHeader(header)
	fields := make(map[string]string, len(columns))
	for i, col := range columns {
		if col != "" && i < len(rec) {
			fields[col] = rec[i]
		}
	}

	shape := &emissions.ValidationError{
		Line:   line,
		Reason: emissions.TypeMismatch,
		Detail: fmt.Sprintf("line has %d fields, header has %d", len(rec), len(header)),
	}
	if len(rec) < len(header) {
		shape.Reason = emissions.MissingField
		shape.Field = columns[len(rec)]
	}
	return emissions.RawRow{Line: line, Fields: fields, Shape: shape}
}

func normalizeHeader(names []string) []string {
	header := make([]string, len(names))
	for i, n := range names {
		header[i] = emissions.NormalizeColumn(n)
	}
	return header
}

// ReadXLSX reads the first sheet; its first row is the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	header := normalizeHeader(records[0])
	table := &Table{Header: header}
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		fields := make(map[string]string, len(header))
		for j, col := range header {
			if col == "" {
				continue
			}
			if j < len(rec) {
				fields[col] = rec[j]
			} else {
				fields[col] = ""
			}
		}
		table.Rows = append(table.Rows, emissions.RawRow{Line: i + 2, Fields: fields})
	}
	return table, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CheckHeader verifies that every required column of the category schema
// is present. Unknown categories are left to the validator.
func CheckHeader(category emissions.Category, header []string) error {
	schema, ok := emissions.SchemaFor(category)
	if !ok {
		return nil
	}

	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	var missing []string
	for _, col := range schema.Required() {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingColumnsError{Category: category, Columns: missing}
	}
	return nil
}
