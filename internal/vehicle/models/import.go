package models

// ImportColumns is the header of an import file. An export file can be
// imported as is; its registered_at column is ignored.
var ImportColumns = []string{
	"plate", "usage", "agency", "make", "model", "model_year", "fuel_type", "load_category",
}

// RequiredImportColumns must appear in the header of an import file.
var RequiredImportColumns = []string{"plate", "make", "model_year", "fuel_type"}

// ImportTemplateRows are the example rows served with the import template.
var ImportTemplateRows = [][]string{
	{"B 1234 CD", "public", "", "Toyota", "Avanza", "2020", "gasoline", "passenger"},
	{"A 3456 EF", "official", "Dinas Perhubungan", "Honda", "HR-V", "2021", "gasoline", "passenger"},
	{"D 5678 GH", "public", "", "Hino", "Dutro", "2019", "diesel", "under_3_5_ton"},
}

// RowError rejects one data row. Row counts the header as row 1.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult reports a bulk import. Imported is zero whenever Errors is
// not empty, since a file is imported completely or not at all.
type ImportResult struct {
	TotalRows int        `json:"total_rows"`
	Imported  int        `json:"imported"`
	Errors    []RowError `json:"errors"`
}

// Rejected reports whether any row kept the file from being imported.
func (r *ImportResult) Rejected() bool {
	return len(r.Errors) > 0
}
