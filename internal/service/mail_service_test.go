package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/campuslink/comms-backend/internal/errs"
	"github.com/campuslink/comms-backend/internal/models"
	"github.com/campuslink/comms-backend/internal/storage"
)

// MockMailMessageRepository is an in-memory MailMessageRepository for testing
type MockMailMessageRepository struct {
	messages   map[uint]*models.MailMessage
	nextID     uint
	failCreate bool
}

func NewMockMailMessageRepository() *MockMailMessageRepository {
	return &MockMailMessageRepository{
		messages: make(map[uint]*models.MailMessage),
		nextID:   1,
	}
}

func (m *MockMailMessageRepository) Create(message *models.MailMessage) error {
	if m.failCreate {
		return errors.New("insert failed")
	}
	message.ID = m.nextID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	stored := *message
	m.messages[message.ID] = &stored
	m.nextID++
	return nil
}

func (m *MockMailMessageRepository) FindByID(id uint) (*models.MailMessage, error) {
	if msg, ok := m.messages[id]; ok {
		found := *msg
		return &found, nil
	}
	return nil, errors.New("record not found")
}

func (m *MockMailMessageRepository) Inbox(userID uint) ([]models.MailMessage, error) {
	var out []models.MailMessage
	for _, msg := range m.messages {
		if msg.RecipientID == userID && !msg.DeletedByRecipient {
			out = append(out, *msg)
		}
	}
	sortMailNewestFirst(out)
	return out, nil
}

func (m *MockMailMessageRepository) Sent(userID uint) ([]models.MailMessage, error) {
	var out []models.MailMessage
	for _, msg := range m.messages {
		if msg.SenderID == userID && !msg.DeletedBySender {
			out = append(out, *msg)
		}
	}
	sortMailNewestFirst(out)
	return out, nil
}

func sortMailNewestFirst(messages []models.MailMessage) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID > messages[j].ID
		}
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
}

func (m *MockMailMessageRepository) MarkRead(id uint, at time.Time) error {
	msg, ok := m.messages[id]
	if !ok {
		return errors.New("record not found")
	}
	if !msg.IsRead {
		msg.IsRead = true
		stamp := at
		msg.ReadAt = &stamp
	}
	return nil
}

func (m *MockMailMessageRepository) SetStarred(id uint, starred bool) error {
	msg, ok := m.messages[id]
	if !ok {
		return errors.New("record not found")
	}
	msg.IsStarred = starred
	return nil
}

func (m *MockMailMessageRepository) MarkDeletedBySender(id uint) error {
	msg, ok := m.messages[id]
	if !ok {
		return errors.New("record not found")
	}
	msg.DeletedBySender = true
	return nil
}

func (m *MockMailMessageRepository) MarkDeletedByRecipient(id uint) error {
	msg, ok := m.messages[id]
	if !ok {
		return errors.New("record not found")
	}
	msg.DeletedByRecipient = true
	return nil
}

func (m *MockMailMessageRepository) FindPurgeable(limit int) ([]models.MailMessage, error) {
	var out []models.MailMessage
	for _, msg := range m.messages {
		if msg.DeletedBySender && msg.DeletedByRecipient {
			out = append(out, *msg)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockMailMessageRepository) Purge(id uint) error {
	delete(m.messages, id)
	return nil
}

// MemoryBlobStore keeps blobs in a map
type MemoryBlobStore struct {
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *MemoryBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectStat, error) {
	if m.failPut {
		return storage.ObjectStat{}, errors.New("upload failed")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectStat{}, err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return storage.ObjectStat{Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectStat, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectStat{}, storage.ErrObjectNotFound
	}
	st := storage.ObjectStat{Size: int64(len(data)), ContentType: m.types[key]}
	return io.NopCloser(bytes.NewReader(data)), st, nil
}

func (m *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

func TestComposeValidation(t *testing.T) {
	s := NewMailService(NewMockMailMessageRepository(), NewMemoryBlobStore())

	tests := []struct {
		name string
		in   ComposeInput
	}{
		{"zero recipient", ComposeInput{Subject: "hi", Body: "there"}},
		{"empty subject", ComposeInput{RecipientID: 2, Body: "there"}},
		{"whitespace subject", ComposeInput{RecipientID: 2, Subject: "   ", Body: "there"}},
		{"empty body", ComposeInput{RecipientID: 2, Subject: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Compose(context.Background(), 1, tt.in)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Compose error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestComposeWithoutAttachment(t *testing.T) {
	repo := NewMockMailMessageRepository()
	s := NewMailService(repo, NewMemoryBlobStore())

	msg, err := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Budget review",
		Body:        "See you Thursday.",
	})
	if err != nil {
		t.Fatalf("Compose error = %v", err)
	}
	if msg.HasAttachment() {
		t.Errorf("HasAttachment() = true for plain message")
	}
	if _, err := repo.FindByID(msg.ID); err != nil {
		t.Errorf("composed message not persisted: %v", err)
	}
}

func TestComposeAttachmentRoundTrip(t *testing.T) {
	repo := NewMockMailMessageRepository()
	blobs := NewMemoryBlobStore()
	s := NewMailService(repo, blobs)

	payload := []byte("%PDF-1.4 minutes of the meeting")
	msg, err := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Minutes",
		Body:        "Attached.",
		Attachment: &AttachmentUpload{
			Reader:      bytes.NewReader(payload),
			DisplayName: "minutes.pdf",
			ByteSize:    int64(len(payload)),
			ContentType: "application/pdf",
		},
	})
	if err != nil {
		t.Fatalf("Compose error = %v", err)
	}
	if !msg.HasAttachment() {
		t.Fatalf("HasAttachment() = false after attachment compose")
	}
	if msg.AttachmentName != "minutes.pdf" {
		t.Errorf("AttachmentName = %q, want %q", msg.AttachmentName, "minutes.pdf")
	}
	if msg.AttachmentSize != int64(len(payload)) {
		t.Errorf("AttachmentSize = %d, want %d", msg.AttachmentSize, len(payload))
	}

	body, st, name, err := s.FetchAttachment(context.Background(), 2, msg.ID)
	if err != nil {
		t.Fatalf("FetchAttachment error = %v", err)
	}
	defer body.Close()
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("attachment bytes differ from upload")
	}
	if st.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want %q", st.ContentType, "application/pdf")
	}
	if name != "minutes.pdf" {
		t.Errorf("name = %q, want %q", name, "minutes.pdf")
	}
}

func TestComposeFailedUploadPersistsNothing(t *testing.T) {
	repo := NewMockMailMessageRepository()
	blobs := NewMemoryBlobStore()
	blobs.failPut = true
	s := NewMailService(repo, blobs)

	_, err := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Minutes",
		Body:        "Attached.",
		Attachment: &AttachmentUpload{
			Reader:      bytes.NewReader([]byte("data")),
			DisplayName: "minutes.pdf",
			ByteSize:    4,
		},
	})
	if !errors.Is(err, errs.ErrDependency) {
		t.Fatalf("Compose error = %v, want ErrDependency", err)
	}
	if len(repo.messages) != 0 {
		t.Errorf("a row was persisted despite the failed upload")
	}
}

func TestComposeFailedInsertCleansUpBlob(t *testing.T) {
	repo := NewMockMailMessageRepository()
	repo.failCreate = true
	blobs := NewMemoryBlobStore()
	s := NewMailService(repo, blobs)

	_, err := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Minutes",
		Body:        "Attached.",
		Attachment: &AttachmentUpload{
			Reader:      bytes.NewReader([]byte("data")),
			DisplayName: "minutes.pdf",
			ByteSize:    4,
		},
	})
	if !errors.Is(err, errs.ErrDependency) {
		t.Fatalf("Compose error = %v, want ErrDependency", err)
	}
	if len(blobs.objects) != 0 {
		t.Errorf("orphan blob left behind after failed insert")
	}
}

func TestComposeOversizeAttachmentRejected(t *testing.T) {
	s := NewMailService(NewMockMailMessageRepository(), NewMemoryBlobStore())

	_, err := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Big",
		Body:        "Attached.",
		Attachment: &AttachmentUpload{
			Reader:   bytes.NewReader([]byte("data")),
			ByteSize: 1 << 40,
		},
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Compose error = %v, want ErrValidation", err)
	}
}

func TestReadStampsOnceForRecipientOnly(t *testing.T) {
	repo := NewMockMailMessageRepository()
	s := NewMailService(repo, nil)

	msg, err := s.Compose(context.Background(), 1, ComposeInput{RecipientID: 2, Subject: "hi", Body: "there"})
	if err != nil {
		t.Fatalf("Compose error = %v", err)
	}

	// Sender viewing their own sent message does not consume the unread state.
	viewed, err := s.Read(1, msg.ID)
	if err != nil {
		t.Fatalf("Read error = %v", err)
	}
	if viewed.IsRead {
		t.Errorf("sender view marked the message read")
	}

	viewed, err = s.Read(2, msg.ID)
	if err != nil {
		t.Fatalf("Read error = %v", err)
	}
	if !viewed.IsRead || viewed.ReadAt == nil {
		t.Fatalf("recipient view did not stamp the read transition")
	}
	stamp := *repo.messages[msg.ID].ReadAt

	viewed, err = s.Read(2, msg.ID)
	if err != nil {
		t.Fatalf("second Read error = %v", err)
	}
	if !repo.messages[msg.ID].ReadAt.Equal(stamp) {
		t.Errorf("repeat view moved the read stamp")
	}
}

func TestToggleStarIsSharedAndFlips(t *testing.T) {
	repo := NewMockMailMessageRepository()
	s := NewMailService(repo, nil)

	msg, _ := s.Compose(context.Background(), 1, ComposeInput{RecipientID: 2, Subject: "hi", Body: "there"})

	starred, err := s.ToggleStar(1, msg.ID)
	if err != nil {
		t.Fatalf("ToggleStar error = %v", err)
	}
	if !starred.IsStarred {
		t.Errorf("IsStarred = false after first toggle")
	}

	// The other party sees the same flag and can flip it back.
	inbox, _ := s.Inbox(2)
	if len(inbox) != 1 || !inbox[0].IsStarred {
		t.Errorf("recipient does not see the shared star")
	}
	unstarred, err := s.ToggleStar(2, msg.ID)
	if err != nil {
		t.Fatalf("ToggleStar error = %v", err)
	}
	if unstarred.IsStarred {
		t.Errorf("IsStarred = true after second toggle")
	}
}

// Recipient deletes: the message leaves their inbox but stays in the
// sender's sent view with every flag intact, star included.
func TestDeleteIsPerParty(t *testing.T) {
	repo := NewMockMailMessageRepository()
	s := NewMailService(repo, nil)

	msg, _ := s.Compose(context.Background(), 1, ComposeInput{RecipientID: 2, Subject: "hi", Body: "there"})
	if _, err := s.ToggleStar(1, msg.ID); err != nil {
		t.Fatalf("ToggleStar error = %v", err)
	}

	if err := s.Delete(2, msg.ID); err != nil {
		t.Fatalf("Delete error = %v", err)
	}

	inbox, _ := s.Inbox(2)
	if len(inbox) != 0 {
		t.Errorf("inbox still shows a deleted message")
	}
	sent, _ := s.Sent(1)
	if len(sent) != 1 {
		t.Fatalf("sender's sent view lost the message")
	}
	if !sent[0].IsStarred {
		t.Errorf("star flag lost after the other party's delete")
	}

	// The deleting party can no longer address the message at all.
	if _, err := s.Read(2, msg.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Read after own delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(2, msg.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("repeat Delete error = %v, want ErrNotFound", err)
	}
}

func TestVisibilityNeverLeaksExistence(t *testing.T) {
	repo := NewMockMailMessageRepository()
	s := NewMailService(repo, nil)

	msg, _ := s.Compose(context.Background(), 1, ComposeInput{RecipientID: 2, Subject: "hi", Body: "there"})

	// A third party gets the same answer as for a message that never existed.
	if _, err := s.Read(9, msg.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("outsider Read error = %v, want ErrNotFound", err)
	}
	if _, err := s.Read(9, 404); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing message Read error = %v, want ErrNotFound", err)
	}
	if _, err := s.ToggleStar(9, msg.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("outsider ToggleStar error = %v, want ErrNotFound", err)
	}
}

func TestFetchAttachmentAuthorization(t *testing.T) {
	repo := NewMockMailMessageRepository()
	blobs := NewMemoryBlobStore()
	s := NewMailService(repo, blobs)

	msg, err := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Minutes",
		Body:        "Attached.",
		Attachment: &AttachmentUpload{
			Reader:      bytes.NewReader([]byte("data")),
			DisplayName: "minutes.pdf",
			ByteSize:    4,
		},
	})
	if err != nil {
		t.Fatalf("Compose error = %v", err)
	}

	if _, _, _, err := s.FetchAttachment(context.Background(), 9, msg.ID); !errors.Is(err, errs.ErrAuthorization) {
		t.Errorf("outsider FetchAttachment error = %v, want ErrAuthorization", err)
	}
	if _, _, _, err := s.FetchAttachment(context.Background(), 1, 404); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing message FetchAttachment error = %v, want ErrNotFound", err)
	}
}

func TestFetchAttachmentMissingCases(t *testing.T) {
	repo := NewMockMailMessageRepository()
	blobs := NewMemoryBlobStore()
	s := NewMailService(repo, blobs)

	plain, _ := s.Compose(context.Background(), 1, ComposeInput{RecipientID: 2, Subject: "hi", Body: "there"})
	if _, _, _, err := s.FetchAttachment(context.Background(), 1, plain.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("no-attachment FetchAttachment error = %v, want ErrNotFound", err)
	}

	withBlob, _ := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Minutes",
		Body:        "Attached.",
		Attachment: &AttachmentUpload{
			Reader:   bytes.NewReader([]byte("data")),
			ByteSize: 4,
		},
	})
	// Blob purged out of band; the dangling reference must read as not found.
	if err := blobs.Delete(context.Background(), withBlob.AttachmentRef); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if _, _, _, err := s.FetchAttachment(context.Background(), 1, withBlob.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("purged-blob FetchAttachment error = %v, want ErrNotFound", err)
	}
}

func TestPurgeDeletedRemovesRowsAndBlobs(t *testing.T) {
	repo := NewMockMailMessageRepository()
	blobs := NewMemoryBlobStore()
	s := NewMailService(repo, blobs)

	msg, _ := s.Compose(context.Background(), 1, ComposeInput{
		RecipientID: 2,
		Subject:     "Minutes",
		Body:        "Attached.",
		Attachment: &AttachmentUpload{
			Reader:   bytes.NewReader([]byte("data")),
			ByteSize: 4,
		},
	})
	keep, _ := s.Compose(context.Background(), 1, ComposeInput{RecipientID: 2, Subject: "keep", Body: "only one side deleted"})

	if err := s.Delete(1, msg.ID); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if err := s.Delete(2, msg.ID); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if err := s.Delete(1, keep.ID); err != nil {
		t.Fatalf("Delete error = %v", err)
	}

	purged, err := s.PurgeDeleted(context.Background(), 0)
	if err != nil {
		t.Fatalf("PurgeDeleted error = %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if _, ok := repo.messages[msg.ID]; ok {
		t.Errorf("purged row still present")
	}
	if _, ok := repo.messages[keep.ID]; !ok {
		t.Errorf("half-deleted row was purged")
	}
	if len(blobs.objects) != 0 {
		t.Errorf("purged message's blob still in the store")
	}
}
