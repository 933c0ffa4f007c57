package repository

import (
	"time"

	"github.com/campuslink/comms-backend/internal/models"
	"gorm.io/gorm"
)

type MailMessageRepository struct {
	db *gorm.DB
}

func NewMailMessageRepository(db *gorm.DB) *MailMessageRepository {
	return &MailMessageRepository{db: db}
}

func (r *MailMessageRepository) Create(message *models.MailMessage) error {
	return r.db.Create(message).Error
}

func (r *MailMessageRepository) FindByID(id uint) (*models.MailMessage, error) {
	var message models.MailMessage
	err := r.db.First(&message, id).Error
	return &message, err
}

func (r *MailMessageRepository) Inbox(userID uint) ([]models.MailMessage, error) {
	var messages []models.MailMessage
	err := r.db.
		Where("recipient_id = ? AND deleted_by_recipient = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&messages).Error
	return messages, err
}

func (r *MailMessageRepository) Sent(userID uint) ([]models.MailMessage, error) {
	var messages []models.MailMessage
	err := r.db.
		Where("sender_id = ? AND deleted_by_sender = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&messages).Error
	return messages, err
}

// MarkRead stamps the read transition once; the is_read guard keeps
// duplicate requests from rewriting read_at.
func (r *MailMessageRepository) MarkRead(id uint, at time.Time) error {
	return r.db.Model(&models.MailMessage{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		}).Error
}

func (r *MailMessageRepository) SetStarred(id uint, starred bool) error {
	return r.db.Model(&models.MailMessage{}).
		Where("id = ?", id).
		Update("is_starred", starred).Error
}

func (r *MailMessageRepository) MarkDeletedBySender(id uint) error {
	return r.db.Model(&models.MailMessage{}).
		Where("id = ?", id).
		Update("deleted_by_sender", true).Error
}

func (r *MailMessageRepository) MarkDeletedByRecipient(id uint) error {
	return r.db.Model(&models.MailMessage{}).
		Where("id = ?", id).
		Update("deleted_by_recipient", true).Error
}

// FindPurgeable lists rows both parties have deleted; only these may be
// physically removed.
func (r *MailMessageRepository) FindPurgeable(limit int) ([]models.MailMessage, error) {
	var messages []models.MailMessage
	err := r.db.
		Where("deleted_by_sender = ? AND deleted_by_recipient = ?", true, true).
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *MailMessageRepository) Purge(id uint) error {
	return r.db.Delete(&models.MailMessage{}, id).Error
}
