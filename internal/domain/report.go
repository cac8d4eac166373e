package domain

import (
	"sort"
	"strconv"
)

// RowErrors maps a field name to its failure description.
type RowErrors map[string]string

// InvalidRecordGroup collects the rows that failed for one reason.
// Records maps a row index (as sent by the server, e.g. "3") to the
// field errors found on that row.
type InvalidRecordGroup struct {
	Description string                 `json:"description"`
	Records     map[string][]RowErrors `json:"records"`
}

// RowCount is the number of invalid rows in the group.
func (g InvalidRecordGroup) RowCount() int {
	return len(g.Records)
}

// RowKeys returns the row indexes in numeric order; non-numeric keys sort
// after numeric ones, lexically.
func (g InvalidRecordGroup) RowKeys() []string {
	keys := make([]string, 0, len(g.Records))
	for k := range g.Records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// InvalidRow is one row of a group, flattened for display.
type InvalidRow struct {
	Row    string      `json:"row"`
	Errors []RowErrors `json:"errors"`
}

// GroupPage is one page of a group's rows.
type GroupPage struct {
	Description string       `json:"description"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	TotalRows   int          `json:"total_rows"`
	TotalPages  int          `json:"total_pages"`
	Rows        []InvalidRow `json:"rows"`
}

// Page returns the 1-based page of rows in row order. Out-of-range pages
// return an empty row list with the totals filled in.
func (g InvalidRecordGroup) Page(page, size int) GroupPage {
	if size <= 0 {
		size = 25
	}
	if page <= 0 {
		page = 1
	}
	keys := g.RowKeys()
	out := GroupPage{
		Description: g.Description,
		Page:        page,
		PageSize:    size,
		TotalRows:   len(keys),
		TotalPages:  len(keys) / size,
		Rows:        []InvalidRow{},
	}
	if len(keys)%size != 0 {
		out.TotalPages++
	}
	if page > out.TotalPages {
		return out
	}
	start := (page - 1) * size
	end := start + min(size, len(keys)-start)
	for _, k := range keys[start:end] {
		out.Rows = append(out.Rows, InvalidRow{Row: k, Errors: g.Records[k]})
	}
	return out
}

// Report is the terminal validation result for a batch.
type Report struct {
	ValidRecordsCount int                  `json:"valid_records_count"`
	InvalidRecords    []InvalidRecordGroup `json:"invalid_records"`
	// InvalidFile is set by the server when the file failed the antivirus check.
	InvalidFile string `json:"invalid_file,omitempty"`
}

// InvalidRowCount sums rows over all groups. Placeholder groups with no
// records (the server sends one on a clean upload) count zero.
func (r Report) InvalidRowCount() int {
	n := 0
	for _, g := range r.InvalidRecords {
		n += g.RowCount()
	}
	return n
}

// NonEmptyGroups drops placeholder groups without rows.
func (r Report) NonEmptyGroups() []InvalidRecordGroup {
	out := make([]InvalidRecordGroup, 0, len(r.InvalidRecords))
	for _, g := range r.InvalidRecords {
		if g.RowCount() > 0 {
			out = append(out, g)
		}
	}
	return out
}

// Partitioned reports whether every invalid row appears in exactly one group.
func (r Report) Partitioned() bool {
	seen := make(map[string]struct{})
	for _, g := range r.InvalidRecords {
		for k := range g.Records {
			if _, dup := seen[k]; dup {
				return false
			}
			seen[k] = struct{}{}
		}
	}
	return true
}
