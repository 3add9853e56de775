package index

import "strings"

// queryEntries runs a query selecting selectColumns and scans every row.
func (d *Database) queryEntries(query string, args ...any) ([]Entry, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// inList expands values into an `IN (...)` operand. No values gives
// "(NULL)", which matches no row.
func inList(values []string) (string, []any) {
	if len(values) == 0 {
		return "(NULL)", nil
	}
	args := make([]any, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}
	return "(?" + strings.Repeat(", ?", len(values)-1) + ")", args
}
