package domain

import "time"

// TicketHistoryEntry is an immutable audit row for one field change on one ticket.
type TicketHistoryEntry struct {
	ID        int64
	TicketID  int64
	Field     TicketField
	OldValue  *string
	NewValue  *string
	ChangedAt time.Time
	ChangedBy *int64
}

// FieldChange is a before/after pair produced by a ticket update.
type FieldChange struct {
	Field    TicketField `json:"field"`
	OldValue *string     `json:"old_value"`
	NewValue *string     `json:"new_value"`
}
