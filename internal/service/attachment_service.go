package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/storage"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

const defaultContentType = "application/octet-stream"

// AttachmentService registers uploaded files against tickets.
type AttachmentService struct {
	store  repository.Store
	files  storage.FileStorage
	events eventPublisher
	logger *zap.Logger
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	TicketID    int64
	Filename    string
	ContentType string
	Content     io.Reader
}

// NewAttachmentService constructs the service.
func NewAttachmentService(store repository.Store, files storage.FileStorage, dispatcher events.Dispatcher, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		store:  store,
		files:  files,
		events: eventPublisher{dispatcher: dispatcher, logger: logger},
		logger: logger,
	}
}

// Upload stores the bytes, then the metadata row. If the row cannot be written the stored file is removed.
func (s *AttachmentService) Upload(ctx context.Context, input UploadInput, actorID *int64) (*domain.TicketAttachment, error) {
	filename := cleanFilename(input.Filename)
	if filename == "" {
		return nil, invalidField("file", "filename is required")
	}
	if input.Content == nil {
		return nil, invalidField("file", "file content is required")
	}

	repos := s.store.Repositories()
	if _, err := repos.Tickets.GetByID(ctx, input.TicketID); err != nil {
		return nil, storeError("ticket", err)
	}
	if err := checkActor(ctx, repos, actorID); err != nil {
		return nil, err
	}

	storedName, size, err := s.files.Save(ctx, filename, input.Content)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, invalidField("file", err.Error())
		}
		return nil, apperrors.NewInternalError(err)
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	attachment := &domain.TicketAttachment{
		TicketID:         input.TicketID,
		OriginalFilename: filename,
		StoredFilename:   storedName,
		ContentType:      contentType,
		FileSize:         size,
		UploadedAt:       time.Now().UTC().Truncate(time.Microsecond),
		UploadedBy:       actorID,
	}
	if err := repos.Attachments.Create(ctx, attachment); err != nil {
		if removeErr := s.files.Remove(ctx, storedName); removeErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("stored_filename", storedName), zap.Error(removeErr))
		}
		return nil, storeError("attachment", err)
	}

	s.logger.Info("attachment added",
		zap.Int64("ticket_id", attachment.TicketID),
		zap.Int64("attachment_id", attachment.ID),
		zap.Int64("size", attachment.FileSize))
	s.events.publish(ctx, events.Event{
		Type:     events.EventAttachmentAdded,
		TicketID: attachment.TicketID,
		Actor:    actor(actorID),
		Payload: events.AttachmentAddedPayload{
			AttachmentID:     attachment.ID,
			OriginalFilename: attachment.OriginalFilename,
			ContentType:      attachment.ContentType,
			FileSize:         attachment.FileSize,
		},
	})
	return attachment, nil
}

// List returns a ticket's attachments in upload order.
func (s *AttachmentService) List(ctx context.Context, ticketID int64) ([]domain.TicketAttachment, error) {
	repos := s.store.Repositories()
	if _, err := repos.Tickets.GetByID(ctx, ticketID); err != nil {
		return nil, storeError("ticket", err)
	}
	attachments, err := repos.Attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError("attachment", err)
	}
	return attachments, nil
}

// Get fetches attachment metadata.
func (s *AttachmentService) Get(ctx context.Context, id int64) (*domain.TicketAttachment, error) {
	attachment, err := s.store.Repositories().Attachments.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("attachment", err)
	}
	return attachment, nil
}

// Open returns the metadata and a reader over the stored bytes. The caller closes the reader.
func (s *AttachmentService) Open(ctx context.Context, id int64) (*domain.TicketAttachment, io.ReadCloser, error) {
	attachment, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, attachment.StoredFilename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("attachment file", map[string]any{"attachment_id": id})
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return attachment, rc, nil
}

// cleanFilename keeps the base name of a client-supplied path.
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
