package service

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/storage"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

func newAttachmentEnv(t *testing.T, maxBytes int64) (*testEnv, *AttachmentService, *storage.LocalStorage, string) {
	t.Helper()
	env := newTestEnv(t)
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir, maxBytes)
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(events.EventAttachmentAdded, func(_ context.Context, e events.Event) error {
		env.events = append(env.events, e)
		return nil
	})
	env.tickets = NewTicketService(TicketDependencies{Store: env.store, Files: files, Clock: env.clock.Now})
	env.customers = NewCustomerService(env.store, files, nil)
	return env, NewAttachmentService(env.store, files, dispatcher, nil), files, dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAttachmentUpload_StoresFileAndMetadata(t *testing.T) {
	env, attachments, _, dir := newAttachmentEnv(t, 1024)
	ticket := env.ticket(t)
	u := env.user(t, "banco")

	a, err := attachments.Upload(context.Background(), UploadInput{
		TicketID: ticket.ID,
		Filename: `C:\Users\foto\Scontrino.PDF`,
		Content:  strings.NewReader("%PDF-1.4"),
	}, &u.ID)
	require.NoError(t, err)

	assert.Equal(t, "Scontrino.PDF", a.OriginalFilename)
	assert.True(t, strings.HasSuffix(a.StoredFilename, ".pdf"))
	assert.Equal(t, int64(8), a.FileSize)
	assert.Equal(t, "application/octet-stream", a.ContentType)
	assert.Equal(t, u.ID, *a.UploadedBy)
	assert.Equal(t, []string{a.StoredFilename}, dirEntries(t, dir))

	meta, rc, err := attachments.Open(context.Background(), a.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, a.ID, meta.ID)

	list, err := attachments.List(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.Len(t, env.events, 1)
	assert.Equal(t, events.EventAttachmentAdded, env.events[0].Type)
}

func TestAttachmentUpload_Rejections(t *testing.T) {
	env, attachments, _, dir := newAttachmentEnv(t, 4)
	ticket := env.ticket(t)

	tests := []struct {
		name  string
		input UploadInput
		code  string
	}{
		{"missing ticket", UploadInput{TicketID: 9999, Filename: "a.txt", Content: strings.NewReader("x")}, apperrors.CodeNotFound},
		{"empty filename", UploadInput{TicketID: ticket.ID, Filename: " ", Content: strings.NewReader("x")}, apperrors.CodeValidation},
		{"too large", UploadInput{TicketID: ticket.ID, Filename: "a.txt", Content: strings.NewReader("12345")}, apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := attachments.Upload(context.Background(), tt.input, nil)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), err.Error())
		})
	}
	assert.Empty(t, dirEntries(t, dir))
}

type failingAttachmentsStore struct {
	*repository.MemoryStore
}

type failingAttachments struct {
	repository.AttachmentRepository
}

func (failingAttachments) Create(context.Context, *domain.TicketAttachment) error {
	return errors.New("connection reset")
}

func (s failingAttachmentsStore) Repositories() repository.Repositories {
	repos := s.MemoryStore.Repositories()
	repos.Attachments = failingAttachments{repos.Attachments}
	return repos
}

func TestAttachmentUpload_MetadataFailureRemovesFile(t *testing.T) {
	env, _, files, dir := newAttachmentEnv(t, 0)
	ticket := env.ticket(t)

	attachments := NewAttachmentService(failingAttachmentsStore{env.store}, files, nil, nil)
	_, err := attachments.Upload(context.Background(), UploadInput{
		TicketID: ticket.ID,
		Filename: "foto.jpg",
		Content:  strings.NewReader("jpeg"),
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	assert.Empty(t, dirEntries(t, dir))
}

func TestTicketDelete_RemovesStoredFiles(t *testing.T) {
	env, attachments, _, dir := newAttachmentEnv(t, 0)
	ticket := env.ticket(t)

	a, err := attachments.Upload(context.Background(), UploadInput{TicketID: ticket.ID, Filename: "a.txt", Content: strings.NewReader("a")}, nil)
	require.NoError(t, err)
	require.NoError(t, env.tickets.Delete(context.Background(), ticket.ID, nil))

	assert.Empty(t, dirEntries(t, dir))
	_, err = attachments.Get(context.Background(), a.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCustomerDelete_RemovesStoredFiles(t *testing.T) {
	env, attachments, _, dir := newAttachmentEnv(t, 0)
	ticket := env.ticket(t)

	_, err := attachments.Upload(context.Background(), UploadInput{TicketID: ticket.ID, Filename: "b.txt", Content: strings.NewReader("b")}, nil)
	require.NoError(t, err)
	require.NoError(t, env.customers.Delete(context.Background(), ticket.CustomerID))

	assert.Empty(t, dirEntries(t, dir))
}

func TestAttachmentOpen_MissingFile(t *testing.T) {
	env, attachments, files, _ := newAttachmentEnv(t, 0)
	ticket := env.ticket(t)

	a, err := attachments.Upload(context.Background(), UploadInput{TicketID: ticket.ID, Filename: "c.txt", Content: strings.NewReader("c")}, nil)
	require.NoError(t, err)
	require.NoError(t, files.Remove(context.Background(), a.StoredFilename))

	_, _, err = attachments.Open(context.Background(), a.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
