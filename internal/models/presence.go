package models

import (
	"time"
)

// Presence records the last known online state of one user. There is at
// most one row per user; every heartbeat overwrites it.
type Presence struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	IsOnline bool      `gorm:"default:false" json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// EffectiveOnline is the only trustworthy online check. The stored flag is
// written by the last known client and goes stale when that client crashes
// without a graceful mark-offline, so a record older than ttl counts as
// offline regardless of the flag.
func (p *Presence) EffectiveOnline(now time.Time, ttl time.Duration) bool {
	return p.IsOnline && now.Sub(p.LastSeen) < ttl
}

type PresenceResponse struct {
	UserID   uint      `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// ToResponse reports the derived state, never the raw stored flag.
func (p *Presence) ToResponse(now time.Time, ttl time.Duration) PresenceResponse {
	return PresenceResponse{
		UserID:   p.UserID,
		IsOnline: p.EffectiveOnline(now, ttl),
		LastSeen: p.LastSeen,
	}
}
