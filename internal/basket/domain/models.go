package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
)

// Basket Index columns beyond the shared form columns.
const (
	ColumnAvailable = "Basket Available"
	ColumnActive    = "User Active"
	ColumnRecordRow = "Record Row"
)

var IndexHeaders = []string{
	sheetdomain.ColumnBasketID,
	sheetdomain.ColumnCleanroom,
	ColumnAvailable,
	ColumnActive,
	ColumnRecordRow,
	sheetdomain.ColumnEID,
	sheetdomain.ColumnPhone,
	sheetdomain.ColumnEmail,
	sheetdomain.ColumnFirstName,
	sheetdomain.ColumnLastName,
	sheetdomain.ColumnTimestamp,
}

var RegistrationHeaders = []string{
	sheetdomain.ColumnTimestamp,
	sheetdomain.ColumnEmail,
	sheetdomain.ColumnEID,
	sheetdomain.ColumnFirstName,
	sheetdomain.ColumnLastName,
	sheetdomain.ColumnPhone,
	sheetdomain.ColumnCleanroom,
	sheetdomain.ColumnBasketID,
}

// assigneeColumns are cleared when a basket is returned.
var assigneeColumns = []string{
	ColumnRecordRow,
	sheetdomain.ColumnEID,
	sheetdomain.ColumnPhone,
	sheetdomain.ColumnEmail,
	sheetdomain.ColumnFirstName,
	sheetdomain.ColumnLastName,
	sheetdomain.ColumnTimestamp,
}

var idPattern = regexp.MustCompile(`^[SN][0-9]{3}$`)

// ValidID reports whether id looks like a physical basket label, e.g. S001 or N180.
func ValidID(id string) bool {
	return idPattern.MatchString(strings.TrimSpace(id))
}

// IndexEntry is one row of the Basket Index.
// When Available is true the assignee fields carry no meaning.
type IndexEntry struct {
	Row        int    `json:"row"`
	BasketID   string `json:"basket_id"`
	Zone       string `json:"zone"`
	Available  bool   `json:"available"`
	Active     bool   `json:"active"`
	RecordRow  *int   `json:"record_row,omitempty"`
	EID        string `json:"eid,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	AssignedAt string `json:"assigned_at,omitempty"`
}

func (e IndexEntry) User() string {
	return sheetdomain.FullName(e.FirstName, e.LastName)
}

// DaysAssigned is the time since assignment in days. A missing or unreadable
// timestamp counts as infinitely old.
func (e IndexEntry) DaysAssigned(now time.Time) float64 {
	at, ok := sheetdomain.ParseTimestamp(e.AssignedAt, now.Location())
	if !ok {
		return math.Inf(1)
	}
	return now.Sub(at).Hours() / 24
}

// EntryFromRow decodes a Basket Index row.
func EntryFromRow(idx sheetdomain.HeaderIndex, row sheetdomain.Row) IndexEntry {
	get := func(h string) string { return strings.TrimSpace(row.Get(idx, h)) }
	return IndexEntry{
		Row:        row.Number,
		BasketID:   get(sheetdomain.ColumnBasketID),
		Zone:       get(sheetdomain.ColumnCleanroom),
		Available:  sheetdomain.ParseBool(get(ColumnAvailable)),
		Active:     sheetdomain.ParseBool(get(ColumnActive)),
		RecordRow:  ParseRecordRow(get(ColumnRecordRow)),
		EID:        get(sheetdomain.ColumnEID),
		Phone:      get(sheetdomain.ColumnPhone),
		Email:      get(sheetdomain.ColumnEmail),
		FirstName:  get(sheetdomain.ColumnFirstName),
		LastName:   get(sheetdomain.ColumnLastName),
		AssignedAt: get(sheetdomain.ColumnTimestamp),
	}
}

// ParseRecordRow returns nil unless value names a data row.
func ParseRecordRow(value string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= sheetdomain.HeaderRow {
		return nil
	}
	return &n
}

func FormatRecordRow(row *int) string {
	if row == nil {
		return ""
	}
	return strconv.Itoa(*row)
}

// ReturnedCells is the cell update that frees a basket while keeping its ID and zone.
func ReturnedCells() map[string]string {
	out := map[string]string{
		ColumnAvailable: sheetdomain.FormatBool(true),
		ColumnActive:    sheetdomain.FormatBool(false),
	}
	for _, col := range assigneeColumns {
		out[col] = ""
	}
	return out
}

// AssignRequest carries the requester's registration record.
type AssignRequest struct {
	EID              string `json:"eid"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Zone             string `json:"zone"`
	ExistingBasketID string `json:"existing_basket_id,omitempty"`
	RecordRow        *int   `json:"record_row,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
}

func (r AssignRequest) User() string {
	return sheetdomain.FullName(r.FirstName, r.LastName)
}

func (r AssignRequest) assigneeCells() map[string]string {
	return map[string]string{
		ColumnRecordRow:             FormatRecordRow(r.RecordRow),
		sheetdomain.ColumnEID:       strings.TrimSpace(r.EID),
		sheetdomain.ColumnPhone:     strings.TrimSpace(r.Phone),
		sheetdomain.ColumnEmail:     strings.TrimSpace(r.Email),
		sheetdomain.ColumnFirstName: strings.TrimSpace(r.FirstName),
		sheetdomain.ColumnLastName:  strings.TrimSpace(r.LastName),
		sheetdomain.ColumnTimestamp: strings.TrimSpace(r.Timestamp),
	}
}

// ReassignCells overwrites only the assignee fields.
func (r AssignRequest) ReassignCells() map[string]string {
	return r.assigneeCells()
}

// AssignCells claims a free basket for the requester.
func (r AssignRequest) AssignCells() map[string]string {
	out := r.assigneeCells()
	out[ColumnAvailable] = sheetdomain.FormatBool(false)
	out[ColumnActive] = sheetdomain.FormatBool(true)
	return out
}

// AssignmentResult has an empty BasketID when no free basket matched the zone.
type AssignmentResult struct {
	BasketID   string `json:"basket_id,omitempty"`
	Zone       string `json:"zone"`
	Row        int    `json:"row,omitempty"`
	Reassigned bool   `json:"reassigned"`
	// Warnings lists follow-up steps that failed after the basket was claimed.
	Warnings []string `json:"warnings,omitempty"`
}

func (r AssignmentResult) Assigned() bool {
	return r.BasketID != ""
}

type StatusChange struct {
	BasketID string  `json:"basket_id"`
	Row      int     `json:"row"`
	User     string  `json:"user"`
	From     bool    `json:"from"`
	To       bool    `json:"to"`
	Days     float64 `json:"days_assigned"`
}

func StatusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

type ReturnResult struct {
	Returned []string `json:"returned"`
	Voided   []int    `json:"voided_records,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

type PurgeReport struct {
	Candidates int      `json:"candidates"`
	Sent       int      `json:"sent"`
	Failed     []string `json:"failed,omitempty"`
}
