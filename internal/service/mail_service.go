package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/campuslink/comms-backend/internal/errs"
	"github.com/campuslink/comms-backend/internal/models"
	"github.com/campuslink/comms-backend/internal/repository"
	"github.com/campuslink/comms-backend/internal/storage"
	"github.com/campuslink/comms-backend/internal/validation"
	"github.com/google/uuid"
)

type MailService struct {
	mailRepo repository.MailMessageRepositoryInterface
	blobs    storage.BlobStore
	now      func() time.Time
}

func NewMailService(mailRepo repository.MailMessageRepositoryInterface, blobs storage.BlobStore) *MailService {
	return &MailService{
		mailRepo: mailRepo,
		blobs:    blobs,
		now:      time.Now,
	}
}

// AttachmentUpload is one incoming attachment from a compose request.
type AttachmentUpload struct {
	Reader      io.Reader
	DisplayName string
	ByteSize    int64
	ContentType string
}

type ComposeInput struct {
	RecipientID uint
	Subject     string
	Body        string
	Attachment  *AttachmentUpload
}

// Compose validates, uploads the attachment (if any) to the blob store,
// and only then persists the mail row. A failed upload fails the whole
// compose; a failed insert removes the just-uploaded blob, so no row ever
// references a missing blob and no blob is orphaned by a lost row.
func (s *MailService) Compose(ctx context.Context, senderID uint, in ComposeInput) (*models.MailMessage, error) {
	in.Subject = validation.TrimAndLimit(in.Subject, validation.MaxMailSubjectLength())
	in.Body = validation.TrimAndLimit(in.Body, validation.MaxMailBodyLength())

	if in.RecipientID == 0 {
		return nil, fmt.Errorf("%w: recipient_id is required", errs.ErrValidation)
	}
	if in.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", errs.ErrValidation)
	}
	if in.Body == "" {
		return nil, fmt.Errorf("%w: body is required", errs.ErrValidation)
	}

	message := &models.MailMessage{
		SenderID:    senderID,
		RecipientID: in.RecipientID,
		Subject:     in.Subject,
		Body:        in.Body,
	}

	if in.Attachment != nil {
		if s.blobs == nil {
			return nil, fmt.Errorf("%w: attachment store not configured", errs.ErrDependency)
		}
		if in.Attachment.ByteSize > validation.MaxAttachmentBytes() {
			return nil, fmt.Errorf("%w: attachment exceeds %d bytes", errs.ErrValidation, validation.MaxAttachmentBytes())
		}
		key := fmt.Sprintf("mail/%d/%s", senderID, uuid.NewString())
		st, err := s.blobs.Put(ctx, key, in.Attachment.Reader, in.Attachment.ByteSize, in.Attachment.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: attachment upload: %v", errs.ErrDependency, err)
		}
		message.AttachmentRef = key
		message.AttachmentName = in.Attachment.DisplayName
		message.AttachmentSize = st.Size
	}

	if err := s.mailRepo.Create(message); err != nil {
		if message.HasAttachment() {
			if delErr := s.blobs.Delete(ctx, message.AttachmentRef); delErr != nil {
				log.Printf("mail: orphan blob cleanup failed for %s: %v", message.AttachmentRef, delErr)
			}
		}
		return nil, fmt.Errorf("%w: persist mail message: %v", errs.ErrDependency, err)
	}

	return message, nil
}

func (s *MailService) Inbox(userID uint) ([]models.MailMessage, error) {
	messages, err := s.mailRepo.Inbox(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch inbox: %v", errs.ErrDependency, err)
	}
	return messages, nil
}

func (s *MailService) Sent(userID uint) ([]models.MailMessage, error) {
	messages, err := s.mailRepo.Sent(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch sent: %v", errs.ErrDependency, err)
	}
	return messages, nil
}

// visibleMessage fetches a message the viewer can still see. Non-existent
// rows, non-participants, and the viewer's own soft-deleted messages all
// come back as not found; existence is never leaked.
func (s *MailService) visibleMessage(viewerID, messageID uint) (*models.MailMessage, error) {
	message, err := s.mailRepo.FindByID(messageID)
	if err != nil {
		return nil, fmt.Errorf("%w: mail message %d", errs.ErrNotFound, messageID)
	}
	if !message.VisibleTo(viewerID) {
		return nil, fmt.Errorf("%w: mail message %d", errs.ErrNotFound, messageID)
	}
	return message, nil
}

// Read returns the message for display. When the viewer is the recipient
// the read transition is stamped once; a repeat view is a no-op. A failed
// stamp is logged and swallowed: staleness of a read receipt is tolerable,
// losing the message view is not.
func (s *MailService) Read(viewerID, messageID uint) (*models.MailMessage, error) {
	message, err := s.visibleMessage(viewerID, messageID)
	if err != nil {
		return nil, err
	}

	if viewerID == message.RecipientID && !message.IsRead {
		at := s.now().UTC()
		if err := s.mailRepo.MarkRead(messageID, at); err != nil {
			log.Printf("mail: mark read failed for message %d: %v", messageID, err)
		} else {
			message.IsRead = true
			message.ReadAt = &at
		}
	}

	return message, nil
}

// ToggleStar flips the shared star flag. Either party may toggle for the
// lifetime of the record.
func (s *MailService) ToggleStar(viewerID, messageID uint) (*models.MailMessage, error) {
	message, err := s.visibleMessage(viewerID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.mailRepo.SetStarred(messageID, !message.IsStarred); err != nil {
		return nil, fmt.Errorf("%w: toggle star: %v", errs.ErrDependency, err)
	}
	message.IsStarred = !message.IsStarred
	return message, nil
}

// Delete flips the acting party's own deletion flag. Permanent, and
// invisible to the other party; the row survives until both flags are set.
func (s *MailService) Delete(viewerID, messageID uint) error {
	message, err := s.visibleMessage(viewerID, messageID)
	if err != nil {
		return err
	}

	switch viewerID {
	case message.SenderID:
		err = s.mailRepo.MarkDeletedBySender(messageID)
	case message.RecipientID:
		err = s.mailRepo.MarkDeletedByRecipient(messageID)
	}
	if err != nil {
		return fmt.Errorf("%w: mark deleted: %v", errs.ErrDependency, err)
	}
	return nil
}

// FetchAttachment streams the attachment blob. Callers that are neither
// sender nor recipient get an authorization error; a reference whose blob
// was purged externally comes back not found.
func (s *MailService) FetchAttachment(ctx context.Context, viewerID, messageID uint) (io.ReadCloser, storage.ObjectStat, string, error) {
	message, err := s.mailRepo.FindByID(messageID)
	if err != nil {
		return nil, storage.ObjectStat{}, "", fmt.Errorf("%w: mail message %d", errs.ErrNotFound, messageID)
	}
	if !message.IsParticipant(viewerID) {
		return nil, storage.ObjectStat{}, "", fmt.Errorf("%w: message %d", errs.ErrAuthorization, messageID)
	}
	if !message.HasAttachment() {
		return nil, storage.ObjectStat{}, "", fmt.Errorf("%w: message %d has no attachment", errs.ErrNotFound, messageID)
	}
	if s.blobs == nil {
		return nil, storage.ObjectStat{}, "", fmt.Errorf("%w: attachment store not configured", errs.ErrDependency)
	}

	body, st, err := s.blobs.Get(ctx, message.AttachmentRef)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectStat{}, "", fmt.Errorf("%w: attachment blob purged", errs.ErrNotFound)
		}
		return nil, storage.ObjectStat{}, "", fmt.Errorf("%w: attachment fetch: %v", errs.ErrDependency, err)
	}
	return body, st, message.AttachmentName, nil
}

// PurgeDeleted physically removes messages both parties have deleted,
// blobs first. Scheduling is the operator's concern; this is just the
// capability.
func (s *MailService) PurgeDeleted(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	purgeable, err := s.mailRepo.FindPurgeable(limit)
	if err != nil {
		return 0, fmt.Errorf("%w: list purgeable: %v", errs.ErrDependency, err)
	}

	purged := 0
	for _, message := range purgeable {
		if message.HasAttachment() && s.blobs != nil {
			if err := s.blobs.Delete(ctx, message.AttachmentRef); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				log.Printf("mail: purge blob failed for message %d: %v", message.ID, err)
				continue
			}
		}
		if err := s.mailRepo.Purge(message.ID); err != nil {
			log.Printf("mail: purge row failed for message %d: %v", message.ID, err)
			continue
		}
		purged++
	}
	return purged, nil
}
