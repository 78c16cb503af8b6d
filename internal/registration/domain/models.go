package domain

import (
	"fmt"
	"strings"
	"time"

	sheetdomain "github.com/smallbiznis/labdesk/internal/sheet/domain"
)

const (
	ColumnAffiliation     = "UT Affiliation"
	ColumnDepartment      = "Department or Company"
	ColumnSupervisor      = "Professor or Supervisor"
	ColumnCreateLabAccess = "Create Lab Access & Sedona Accounts"

	// AffiliationNonUT switches the supervisor field to the department or company.
	AffiliationNonUT = "Non-UT"
)

// Headers is the MER Directory & Building Access Registration layout.
var Headers = []string{
	sheetdomain.ColumnTimestamp,
	sheetdomain.ColumnEmail,
	sheetdomain.ColumnEID,
	sheetdomain.ColumnFirstName,
	sheetdomain.ColumnLastName,
	sheetdomain.ColumnPhone,
	ColumnAffiliation,
	ColumnDepartment,
	ColumnSupervisor,
	ColumnCreateLabAccess,
}

// LabAccessHeaders is the Lab Access & Sedona Registration layout.
var LabAccessHeaders = []string{
	sheetdomain.ColumnTimestamp,
	sheetdomain.ColumnEmail,
	sheetdomain.ColumnEID,
	sheetdomain.ColumnFirstName,
	sheetdomain.ColumnLastName,
	sheetdomain.ColumnPhone,
	ColumnSupervisor,
}

// Artifact key prefixes.
const (
	AccessFormPrefix = "access-forms"
	VCardPrefix      = "vcards"
)

// Calendar event layout for follow-up tasks.
const (
	TaskHour            = 13
	TaskDuration        = 10 * time.Minute
	TaskReminderMinutes = 15
	SecurityCenterURL   = "https://gsc-web.austin.utexas.edu/securitycenter/#/accessconfiguration/cardholders"
)

// Registrant is one building access registration.
type Registrant struct {
	Row             int    `json:"row,omitempty"`
	Timestamp       string `json:"timestamp"`
	Email           string `json:"email"`
	EID             string `json:"eid"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
	Affiliation     string `json:"affiliation"`
	Department      string `json:"department"`
	Supervisor      string `json:"supervisor"`
	CreateLabAccess bool   `json:"create_lab_access"`
}

func RegistrantFromRow(idx sheetdomain.HeaderIndex, row sheetdomain.Row) Registrant {
	get := func(h string) string { return strings.TrimSpace(row.Get(idx, h)) }
	return Registrant{
		Row:             row.Number,
		Timestamp:       get(sheetdomain.ColumnTimestamp),
		Email:           get(sheetdomain.ColumnEmail),
		EID:             get(sheetdomain.ColumnEID),
		FirstName:       get(sheetdomain.ColumnFirstName),
		LastName:        get(sheetdomain.ColumnLastName),
		Phone:           get(sheetdomain.ColumnPhone),
		Affiliation:     get(ColumnAffiliation),
		Department:      get(ColumnDepartment),
		Supervisor:      get(ColumnSupervisor),
		CreateLabAccess: sheetdomain.ParseBool(get(ColumnCreateLabAccess)),
	}
}

func (r Registrant) Name() string {
	return sheetdomain.FullName(r.FirstName, r.LastName)
}

// Sponsor is the supervisor for UT users and the department or company otherwise.
func (r Registrant) Sponsor() string {
	if r.Affiliation == AffiliationNonUT {
		return r.Department
	}
	return r.Supervisor
}

// Record lists the registration as header/value pairs in sheet order.
func (r Registrant) Record() map[string]string {
	return map[string]string{
		sheetdomain.ColumnTimestamp: r.Timestamp,
		sheetdomain.ColumnEmail:     r.Email,
		sheetdomain.ColumnEID:       r.EID,
		sheetdomain.ColumnFirstName: r.FirstName,
		sheetdomain.ColumnLastName:  r.LastName,
		sheetdomain.ColumnPhone:     r.Phone,
		ColumnAffiliation:           r.Affiliation,
		ColumnDepartment:            r.Department,
		ColumnSupervisor:            r.Supervisor,
		ColumnCreateLabAccess:       yesNo(r.CreateLabAccess),
	}
}

// LabAccessRequest builds the lab access submission made on the registrant's behalf.
func (r Registrant) LabAccessRequest() LabAccessRequest {
	return LabAccessRequest{
		Email:      r.Email,
		EID:        r.EID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Phone:      r.Phone,
		Supervisor: r.Sponsor(),
	}
}

// LabAccessRequest is one Lab Access & Sedona Registration row.
type LabAccessRequest struct {
	Row        int    `json:"row,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Email      string `json:"email"`
	EID        string `json:"eid"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Supervisor string `json:"supervisor"`
}

func LabAccessFromRow(idx sheetdomain.HeaderIndex, row sheetdomain.Row) LabAccessRequest {
	get := func(h string) string { return strings.TrimSpace(row.Get(idx, h)) }
	return LabAccessRequest{
		Row:        row.Number,
		Timestamp:  get(sheetdomain.ColumnTimestamp),
		Email:      get(sheetdomain.ColumnEmail),
		EID:        get(sheetdomain.ColumnEID),
		FirstName:  get(sheetdomain.ColumnFirstName),
		LastName:   get(sheetdomain.ColumnLastName),
		Phone:      get(sheetdomain.ColumnPhone),
		Supervisor: get(ColumnSupervisor),
	}
}

func (r LabAccessRequest) Name() string {
	return sheetdomain.FullName(r.FirstName, r.LastName)
}

// TemplateData feeds the lab access templates.
func (r LabAccessRequest) TemplateData() map[string]string {
	return map[string]string{
		"Name":       r.Name(),
		"EID":        r.EID,
		"Email":      r.Email,
		"Phone":      r.Phone,
		"Supervisor": r.Supervisor,
	}
}

func (r LabAccessRequest) Record() map[string]string {
	return map[string]string{
		sheetdomain.ColumnTimestamp: r.Timestamp,
		sheetdomain.ColumnEmail:     r.Email,
		sheetdomain.ColumnEID:       r.EID,
		sheetdomain.ColumnFirstName: r.FirstName,
		sheetdomain.ColumnLastName:  r.LastName,
		sheetdomain.ColumnPhone:     r.Phone,
		ColumnSupervisor:            r.Supervisor,
	}
}

// Contact is the identity printed on badges and vCards.
type Contact struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	EID       string
}

func (c Contact) Name() string {
	return sheetdomain.FullName(c.FirstName, c.LastName)
}

// VCard renders a vCard 4.0 card with CRLF line endings.
func (c Contact) VCard() string {
	lines := []string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		fmt.Sprintf("N:%s;%s", c.LastName, c.FirstName),
		"FN:" + c.Name(),
		"ORG:MER",
		"TEL;TYPE=cell:" + c.Phone,
		"EMAIL;TYPE=work:" + c.Email,
		"NOTE:" + c.EID,
		"END:VCARD",
	}
	return strings.Join(lines, "\r\n")
}

// NextBusinessDay is the next weekday after t at TaskHour. Friday and Saturday roll to Monday.
func NextBusinessDay(t time.Time) time.Time {
	daysLeft := 7 - int(t.Weekday())
	add := 1
	if daysLeft <= 2 {
		add = daysLeft + 1
	}
	d := t.AddDate(0, 0, add)
	return time.Date(d.Year(), d.Month(), d.Day(), TaskHour, 0, 0, 0, t.Location())
}

// AccessFormName is the file name of the paper building access form, without extension.
func AccessFormName(r Registrant) string {
	return fmt.Sprintf("Access Control Request - %s, %s - %s", r.LastName, r.FirstName, r.EID)
}

// EmailKind selects an onboarding email.
type EmailKind string

const (
	EmailTrainingRequest         EmailKind = "training-request"
	EmailBuildingAccess          EmailKind = "building-access"
	EmailBasketRequest           EmailKind = "basket-request"
	EmailTrainingRequestTemplate EmailKind = "training-request-template"
)

// ParseEmailKind accepts the kind names and the legacy action names.
func ParseEmailKind(value string) (EmailKind, bool) {
	switch strings.TrimSpace(value) {
	case string(EmailTrainingRequest), "sendRequestTrainingEmail":
		return EmailTrainingRequest, true
	case string(EmailBuildingAccess), "sendBuildingAccessEmail":
		return EmailBuildingAccess, true
	case string(EmailBasketRequest), "sendBasketRequestEmail":
		return EmailBasketRequest, true
	case string(EmailTrainingRequestTemplate), "sendTrainingRequestEmailTemplate":
		return EmailTrainingRequestTemplate, true
	}
	return "", false
}

type BuildingAccessResult struct {
	EventID            string   `json:"event_id,omitempty"`
	AccessFormKey      string   `json:"access_form_key,omitempty"`
	LabAccessRequested bool     `json:"lab_access_requested"`
	Warnings           []string `json:"warnings,omitempty"`
}

type LabAccessResult struct {
	EventID  string   `json:"event_id,omitempty"`
	VCardKey string   `json:"vcard_key,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type EmailReport struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
