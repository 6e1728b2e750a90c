package excel

import "strings"

// Canonical column names of a dilution table.
const (
	ColumnDose      = "dose"
	ColumnResponded = "responded"
	ColumnTested    = "tested"
	ColumnGroup     = "group"
)

// ColumnAliases maps lower-cased header spellings to canonical column names.
type ColumnAliases map[string]string

// DefaultColumnAliases accepts the canonical names plus the vocabulary common
// in plate-based assays.
func DefaultColumnAliases() ColumnAliases {
	return ColumnAliases{
		"dose":      ColumnDose,
		"cells":     ColumnDose,
		"responded": ColumnResponded,
		"positive":  ColumnResponded,
		"tested":    ColumnTested,
		"wells":     ColumnTested,
		"group":     ColumnGroup,
	}
}

// Resolve returns the canonical name for header, or "" when it is not a
// dilution column.
func (a ColumnAliases) Resolve(header string) string {
	return a[strings.ToLower(strings.TrimSpace(header))]
}
