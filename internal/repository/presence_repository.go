package repository

import (
	"time"

	"github.com/campuslink/comms-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Upsert writes the latest state for a user, keyed on user_id. The
// ON CONFLICT clause makes concurrent heartbeats from duplicated tabs a
// last-write-wins overwrite instead of a unique-constraint failure.
func (r *PresenceRepository) Upsert(userID uint, isOnline bool, at time.Time) error {
	rec := models.Presence{
		UserID:   userID,
		IsOnline: isOnline,
		LastSeen: at,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_seen", "updated_at"}),
	}).Create(&rec).Error
}

func (r *PresenceRepository) FindAll() ([]models.Presence, error) {
	var records []models.Presence
	err := r.db.Find(&records).Error
	return records, err
}

func (r *PresenceRepository) FindByUser(userID uint) (*models.Presence, error) {
	var rec models.Presence
	err := r.db.Where("user_id = ?", userID).First(&rec).Error
	return &rec, err
}
