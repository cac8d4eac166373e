package domain

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Text is a display value the registration API sends either as a string or
// as a number. Null decodes to "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// Registration is one registered bus service variation.
type Registration struct {
	RegistrationNumber        Text `json:"registrationNumber"`
	LicenceNumber             Text `json:"licenceNumber"`
	RouteNumber               Text `json:"routeNumber"`
	Description               Text `json:"description,omitempty"`
	VariationNumber           Text `json:"variationNumber"`
	StartPoint                Text `json:"startPoint,omitempty"`
	FinishPoint               Text `json:"finishPoint,omitempty"`
	Via                       Text `json:"via,omitempty"`
	Subsidised                Text `json:"subsidised,omitempty"`
	SubsidyDetail             Text `json:"subsidyDetail,omitempty"`
	IsShortNotice             Text `json:"isShortNotice,omitempty"`
	ReceivedDate              Text `json:"receivedDate,omitempty"`
	GrantedDate               Text `json:"grantedDate,omitempty"`
	EffectiveDate             Text `json:"effectiveDate,omitempty"`
	EndDate                   Text `json:"endDate,omitempty"`
	OperatorName              Text `json:"operatorName"`
	BusServiceTypeID          Text `json:"busServiceTypeId,omitempty"`
	BusServiceTypeDescription Text `json:"busServiceTypeDescription,omitempty"`
	TrafficAreaID             Text `json:"trafficAreaId,omitempty"`
	ApplicationType           Text `json:"applicationType,omitempty"`
	PublicationText           Text `json:"publicationText,omitempty"`
	OtherDetails              Text `json:"otherDetails,omitempty"`
	LicenceStatus             Text `json:"licenceStatus"`
}

// ServiceNumber is the part of the registration number after the licence,
// e.g. "12" for "PB0000001/12".
func (r Registration) ServiceNumber() string {
	_, service, ok := strings.Cut(string(r.RegistrationNumber), "/")
	if !ok {
		return ""
	}
	return service
}

// MaxSearchLimit caps the page size the registration API accepts.
const MaxSearchLimit = 100

// DefaultSearchLimit is the page size used when none is given.
const DefaultSearchLimit = 10

var (
	licencePattern      = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	registrationPattern = regexp.MustCompile(`^[a-zA-Z0-9/]+$`)
	operatorPattern     = regexp.MustCompile(`^[a-zA-Z0-9\s']+$`)
)

// SearchQuery filters registered services. Empty filters are not sent.
type SearchQuery struct {
	LicenceNumber      string `json:"licence_number,omitempty"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	OperatorName       string `json:"operator_name,omitempty"`
	RouteNumber        string `json:"route_number,omitempty"`
	// LatestOnly hides superseded variations.
	LatestOnly bool `json:"latest_only"`
	// StrictMode matches filters exactly instead of by prefix.
	StrictMode bool `json:"strict_mode"`
	ActiveOnly bool `json:"active_only"`
	Limit      int  `json:"limit"`
	Page       int  `json:"page"`
}

// FieldProblem names a query field and why it was rejected.
type FieldProblem struct {
	Field   string
	Message string
}

// Normalize trims the filters and applies the paging defaults.
func (q SearchQuery) Normalize() SearchQuery {
	q.LicenceNumber = strings.TrimSpace(q.LicenceNumber)
	q.RegistrationNumber = strings.TrimSpace(q.RegistrationNumber)
	q.OperatorName = strings.TrimSpace(q.OperatorName)
	q.RouteNumber = strings.TrimSpace(q.RouteNumber)
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return q
}

// Problems lists the filters the registration API would reject.
func (q SearchQuery) Problems() []FieldProblem {
	var out []FieldProblem
	if q.LicenceNumber != "" && !licencePattern.MatchString(q.LicenceNumber) {
		out = append(out, FieldProblem{"licence_number", "Licence number may only contain letters and digits"})
	}
	if q.RegistrationNumber != "" && !registrationPattern.MatchString(q.RegistrationNumber) {
		out = append(out, FieldProblem{"registration_number", "Registration number may only contain letters, digits and /"})
	}
	if q.OperatorName != "" && !operatorPattern.MatchString(q.OperatorName) {
		out = append(out, FieldProblem{"operator_name", "Operator name may only contain letters, digits, spaces and '"})
	}
	if q.Limit > MaxSearchLimit {
		out = append(out, FieldProblem{"limit", fmt.Sprintf("Limit must not exceed %d", MaxSearchLimit)})
	}
	return out
}

// Values encodes the query the way the registration API reads it.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("licenseNumber", q.LicenceNumber)
	set("registrationNumber", q.RegistrationNumber)
	set("operatorName", q.OperatorName)
	set("routeNumber", q.RouteNumber)
	v.Set("latestOnly", YesNo(q.LatestOnly))
	v.Set("strictMode", YesNo(q.StrictMode))
	v.Set("activeOnly", YesNo(q.ActiveOnly))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// YesNo is the boolean spelling the registration API expects.
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// SearchPage is one page of search results.
type SearchPage struct {
	Results []Registration `json:"results"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	// NextPage is 0 on the last page.
	NextPage int `json:"next_page,omitempty"`
}

// LicenceSummary is the per-licence registration status shown to operators.
type LicenceSummary struct {
	LicenceNumber     string  `json:"licence_number"`
	OperatorName      string  `json:"operator_name"`
	TotalServices     int     `json:"total_services"`
	RequiresAttention float64 `json:"requires_attention"`
	LicenceStatus     string  `json:"licence_status"`
}

// RecordTable is the raw registration export: one object per record with
// whatever columns the API stores.
type RecordTable []map[string]any

// Columns returns the union of the record keys, sorted.
func (t RecordTable) Columns() []string {
	seen := make(map[string]struct{})
	for _, row := range t {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// WriteCSV writes a header row followed by one row per record. Missing and
// null values are empty cells.
func (t RecordTable) WriteCSV(w io.Writer) error {
	cols := t.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, rec := range t {
		for i, c := range cols {
			row[i] = cell(rec[c])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
}
