package domain

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the textual form of ticket dates in history rows and API payloads.
const DateLayout = "2006-01-02"

// TicketStatus enumerates the front-desk lifecycle of a ticket.
type TicketStatus string

const (
	TicketStatusAccepted TicketStatus = "accettazione"
	TicketStatusQuote    TicketStatus = "preventivo"
	TicketStatusRepaired TicketStatus = "riparato"
	TicketStatusClosed   TicketStatus = "chiuso"
)

// Initial and expected final statuses. Transitions between any two canonical values are allowed.
const (
	DefaultTicketStatus  = TicketStatusAccepted
	TerminalTicketStatus = TicketStatusClosed
)

// TicketStatuses lists canonical statuses in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusAccepted,
	TicketStatusQuote,
	TicketStatusRepaired,
	TicketStatusClosed,
}

var ticketStatusLabels = map[TicketStatus]string{
	TicketStatusAccepted: "Accettazione",
	TicketStatusQuote:    "Preventivo",
	TicketStatusRepaired: "Riparato",
	TicketStatusClosed:   "Chiuso",
}

var legacyTicketStatuses = map[string]TicketStatus{
	"open":        TicketStatusAccepted,
	"aperto":      TicketStatusAccepted,
	"in_progress": TicketStatusQuote,
	"processing":  TicketStatusQuote,
	"repaired":    TicketStatusRepaired,
	"closed":      TicketStatusClosed,
}

// Label returns the display label, or the raw value when unknown.
func (s TicketStatus) Label() string {
	if label, ok := ticketStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the canonical statuses.
func (s TicketStatus) Valid() bool {
	_, ok := ticketStatusLabels[s]
	return ok
}

// NormalizeTicketStatus maps legacy aliases onto canonical values.
// The boolean is false when the input matches neither.
func NormalizeTicketStatus(raw string) (TicketStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := legacyTicketStatuses[key]; ok {
		return mapped, true
	}
	status := TicketStatus(key)
	if status.Valid() {
		return status, true
	}
	return TicketStatus(strings.TrimSpace(raw)), false
}

// RepairStatus enumerates the technical repair lifecycle, independent of TicketStatus.
type RepairStatus string

const (
	RepairStatusDiagnosed     RepairStatus = "diagnosticato"
	RepairStatusQuoteReady    RepairStatus = "preventivo_pronto"
	RepairStatusQuoteAccepted RepairStatus = "preventivo_accettato"
	RepairStatusCompleted     RepairStatus = "intervento_completato"
)

const (
	DefaultRepairStatus  = RepairStatusDiagnosed
	TerminalRepairStatus = RepairStatusCompleted
)

// RepairStatuses lists canonical repair statuses in lifecycle order.
var RepairStatuses = []RepairStatus{
	RepairStatusDiagnosed,
	RepairStatusQuoteReady,
	RepairStatusQuoteAccepted,
	RepairStatusCompleted,
}

var repairStatusLabels = map[RepairStatus]string{
	RepairStatusDiagnosed:     "Diagnosticato",
	RepairStatusQuoteReady:    "Preventivo pronto",
	RepairStatusQuoteAccepted: "Preventivo accettato",
	RepairStatusCompleted:     "Intervento completato",
}

var legacyRepairStatuses = map[string]RepairStatus{
	"accettazione": RepairStatusDiagnosed,
	"preventivo":   RepairStatusQuoteReady,
	"pronta":       RepairStatusCompleted,
	"riconsegnata": RepairStatusCompleted,
}

// Label returns the display label, or the raw value when unknown.
func (s RepairStatus) Label() string {
	if label, ok := repairStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the canonical repair statuses.
func (s RepairStatus) Valid() bool {
	_, ok := repairStatusLabels[s]
	return ok
}

// NormalizeRepairStatus maps legacy aliases onto canonical values.
func NormalizeRepairStatus(raw string) (RepairStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := legacyRepairStatuses[key]; ok {
		return mapped, true
	}
	status := RepairStatus(key)
	if status.Valid() {
		return status, true
	}
	return RepairStatus(strings.TrimSpace(raw)), false
}

// TicketField names a tracked ticket column. History rows use these names.
type TicketField string

const (
	FieldSubject          TicketField = "subject"
	FieldDescription      TicketField = "description"
	FieldStatus           TicketField = "status"
	FieldRepairStatus     TicketField = "repair_status"
	FieldProduct          TicketField = "product"
	FieldIssueDescription TicketField = "issue_description"
	FieldPaymentInfo      TicketField = "payment_info"
	FieldDateReceived     TicketField = "date_received"
	FieldDateRepaired     TicketField = "date_repaired"
	FieldDateReturned     TicketField = "date_returned"
)

// TrackedFields is the order in which changes are applied and recorded.
var TrackedFields = []TicketField{
	FieldSubject,
	FieldDescription,
	FieldStatus,
	FieldRepairStatus,
	FieldProduct,
	FieldIssueDescription,
	FieldPaymentInfo,
	FieldDateReceived,
	FieldDateRepaired,
	FieldDateReturned,
}

// Ticket is a customer service/repair request.
type Ticket struct {
	ID               int64
	CustomerID       int64
	Subject          string
	Description      *string
	Status           TicketStatus
	RepairStatus     RepairStatus
	Product          *string
	IssueDescription *string
	PaymentInfo      *string
	DateReceived     *time.Time
	DateRepaired     *time.Time
	DateReturned     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CreatedBy        *int64
	LastModifiedBy   *int64
}

// Value returns the textual form of a tracked field; nil means NULL.
func (t *Ticket) Value(field TicketField) *string {
	switch field {
	case FieldSubject:
		s := t.Subject
		return &s
	case FieldDescription:
		return cloneString(t.Description)
	case FieldStatus:
		s := string(t.Status)
		return &s
	case FieldRepairStatus:
		s := string(t.RepairStatus)
		return &s
	case FieldProduct:
		return cloneString(t.Product)
	case FieldIssueDescription:
		return cloneString(t.IssueDescription)
	case FieldPaymentInfo:
		return cloneString(t.PaymentInfo)
	case FieldDateReceived:
		return formatDate(t.DateReceived)
	case FieldDateRepaired:
		return formatDate(t.DateRepaired)
	case FieldDateReturned:
		return formatDate(t.DateReturned)
	}
	return nil
}

// SetValue assigns the textual form of a tracked field. Values must already be normalized.
func (t *Ticket) SetValue(field TicketField, value *string) error {
	switch field {
	case FieldSubject:
		if value == nil {
			return errors.New("subject cannot be null")
		}
		t.Subject = *value
	case FieldDescription:
		t.Description = value
	case FieldStatus:
		if value == nil {
			return errors.New("status cannot be null")
		}
		t.Status = TicketStatus(*value)
	case FieldRepairStatus:
		if value == nil {
			return errors.New("repair_status cannot be null")
		}
		t.RepairStatus = RepairStatus(*value)
	case FieldProduct:
		t.Product = value
	case FieldIssueDescription:
		t.IssueDescription = value
	case FieldPaymentInfo:
		t.PaymentInfo = value
	case FieldDateReceived, FieldDateRepaired, FieldDateReturned:
		parsed, err := ParseDate(value)
		if err != nil {
			return err
		}
		switch field {
		case FieldDateReceived:
			t.DateReceived = parsed
		case FieldDateRepaired:
			t.DateRepaired = parsed
		default:
			t.DateReturned = parsed
		}
	default:
		return errors.New("unknown ticket field " + string(field))
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD value; nil stays nil.
func ParseDate(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := time.Parse(DateLayout, *value)
	if err != nil {
		return nil, errors.New("date must be formatted as YYYY-MM-DD")
	}
	return &parsed, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// ErrDateOrder is returned when repair dates are out of chronological order.
var ErrDateOrder = errors.New("dates must satisfy received <= repaired <= returned")

// CheckDateOrder validates the chronological order of the dates that are set.
func (t *Ticket) CheckDateOrder() error {
	dates := []*time.Time{t.DateReceived, t.DateRepaired, t.DateReturned}
	var prev *time.Time
	for _, d := range dates {
		if d == nil {
			continue
		}
		if prev != nil && d.Before(*prev) {
			return ErrDateOrder
		}
		prev = d
	}
	return nil
}
