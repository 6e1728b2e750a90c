package excel

// RawRowData represents a row of raw cell text keyed by header
type RawRowData map[string]string

// ExcelData represents a complete sheet or CSV file as read from disk
type ExcelData struct {
	Headers []string     // Column headers, trimmed
	Rows    []RawRowData // Data rows, blank rows removed
	Lines   []int        // Source line (1-based, header is line 1) of each row
}
