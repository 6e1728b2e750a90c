package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"goelda/domain/core"
	"goelda/domain/dilution"
	"goelda/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	aliases  ColumnAliases
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		aliases:  DefaultColumnAliases(),
		logger:   internal.DefaultLogger.With("excel"),
	}
}

// WithAliases replaces the header aliases used by ReadDataset.
func (r *DataReader) WithAliases(aliases ColumnAliases) *DataReader {
	r.aliases = aliases
	return r
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// ReadDataset reads the file and converts it into a validated dataset.
func (r *DataReader) ReadDataset() (dilution.Dataset, error) {
	data, err := r.ReadData()
	if err != nil {
		return dilution.Dataset{}, err
	}
	return ToDataset(data, r.aliases)
}

// ParseCSV reads a CSV table from in, typically standard input.
func ParseCSV(in io.Reader) (dilution.Dataset, error) {
	r := &DataReader{filePath: "-", fileType: "csv", aliases: DefaultColumnAliases(), logger: internal.DefaultLogger.With("excel")}
	data, err := r.readCSV(in)
	if err != nil {
		return dilution.Dataset{}, err
	}
	return ToDataset(data, r.aliases)
}

// ParseXLSX reads the first sheet of a workbook streamed from in.
func ParseXLSX(in io.Reader) (dilution.Dataset, error) {
	r := &DataReader{filePath: "-", fileType: "xlsx", aliases: DefaultColumnAliases(), logger: internal.DefaultLogger.With("excel")}
	f, err := excelize.OpenReader(in)
	if err != nil {
		return dilution.Dataset{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	data, err := r.readSheet(f)
	if err != nil {
		return dilution.Dataset{}, err
	}
	return ToDataset(data, r.aliases)
}

// readExcelData reads the first sheet of the workbook
func (r *DataReader) readExcelData() (*ExcelData, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	return r.readSheet(f)
}

func (r *DataReader) readSheet(f *excelize.File) (*ExcelData, error) {
	startTime := time.Now()
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("Excel file %s has no sheets", r.filePath)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	r.logger.Debug("%s read in %v (%d rows)", sheet, time.Since(startTime), len(rows))

	return r.processRows(rows, nil)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return r.readCSV(file)
}

func (r *DataReader) readCSV(in io.Reader) (*ExcelData, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	readStart := time.Now()
	var rows [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, record)
		lines = append(lines, line)
	}
	r.logger.Debug("CSV read in %v (%d rows)", time.Since(readStart), len(rows))

	return r.processRows(rows, lines)
}

// processRows converts raw string rows into ExcelData format. lines holds the
// source line of each row; nil means rows are consecutive from line 1.
func (r *DataReader) processRows(rows [][]string, lines []int) (*ExcelData, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	data := &ExcelData{Headers: headers}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowData := make(RawRowData)
		blank := true
		for j, cell := range row {
			if j >= len(headers) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				blank = false
			}
			rowData[headers[j]] = cell
		}
		if blank {
			continue
		}
		line := i + 1
		if lines != nil {
			line = lines[i]
		}
		data.Rows = append(data.Rows, rowData)
		data.Lines = append(data.Lines, line)
	}

	r.logger.Debug("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(data.Rows))
	return data, nil
}

// ToDataset maps headers through aliases and parses every row. Errors name
// the observation index, the column, and the source line.
func ToDataset(data *ExcelData, aliases ColumnAliases) (dilution.Dataset, error) {
	columns := make(map[string]string)
	for _, h := range data.Headers {
		canonical := aliases.Resolve(h)
		if canonical == "" {
			continue
		}
		if prev, dup := columns[canonical]; dup {
			return dilution.Dataset{}, &core.InputValidationError{Row: -1, Field: canonical, Invariant: fmt.Sprintf("columns %q and %q both map to %s", prev, h, canonical)}
		}
		columns[canonical] = h
	}
	for _, required := range []string{ColumnDose, ColumnResponded, ColumnTested, ColumnGroup} {
		if _, ok := columns[required]; !ok {
			return dilution.Dataset{}, &core.InputValidationError{Row: -1, Field: required, Invariant: "required column is missing"}
		}
	}

	obs := make([]dilution.Observation, 0, len(data.Rows))
	for i, row := range data.Rows {
		line := i + 2
		if i < len(data.Lines) {
			line = data.Lines[i]
		}
		cellErr := func(field, reason string) error {
			return &core.InputValidationError{Row: i, Field: field, Invariant: fmt.Sprintf("%s (line %d)", reason, line)}
		}

		raw := row[columns[ColumnDose]]
		dose, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return dilution.Dataset{}, cellErr(ColumnDose, fmt.Sprintf("%q is not a number", raw))
		}
		responded, err := parseCount(row[columns[ColumnResponded]])
		if err != nil {
			return dilution.Dataset{}, cellErr(ColumnResponded, err.Error())
		}
		tested, err := parseCount(row[columns[ColumnTested]])
		if err != nil {
			return dilution.Dataset{}, cellErr(ColumnTested, err.Error())
		}
		obs = append(obs, dilution.Observation{
			Dose:      dose,
			Responded: responded,
			Tested:    tested,
			Group:     row[columns[ColumnGroup]],
		})
	}

	ds := dilution.NewDataset(obs)
	if err := ds.Validate(); err != nil {
		return dilution.Dataset{}, err
	}
	return ds, nil
}

// parseCount accepts integers, including spreadsheet renderings such as "12.0".
func parseCount(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	return int(f), nil
}
