package domain

import "time"

// TicketAttachment stores metadata for an uploaded file. Rows are never modified.
type TicketAttachment struct {
	ID               int64
	TicketID         int64
	OriginalFilename string
	StoredFilename   string
	ContentType      string
	FileSize         int64
	UploadedAt       time.Time
	UploadedBy       *int64
}
