package service

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/campuslink/comms-backend/internal/bus"
	"github.com/campuslink/comms-backend/internal/errs"
	"github.com/campuslink/comms-backend/internal/models"
	"github.com/campuslink/comms-backend/internal/repository"
)

const (
	// DefaultPresenceTTL must stay well above the client heartbeat
	// interval (30s) so one or two missed beats don't flip status.
	DefaultPresenceTTL = 90 * time.Second

	// HeartbeatInterval is how often live clients (and the hub, for
	// connected sockets) refresh presence.
	HeartbeatInterval = 30 * time.Second
)

// PresenceFastPath is the slice of the cache layer the presence service
// needs; *cache.PresenceCache is the production implementation.
type PresenceFastPath interface {
	SetOnline(userID uint, ttl time.Duration) error
	SetOffline(userID uint) error
	IsOnline(userID uint) bool
}

type PresenceService struct {
	presenceRepo  repository.PresenceRepositoryInterface
	presenceCache PresenceFastPath
	bus           *bus.Bus
	ttl           time.Duration
	now           func() time.Time
}

func NewPresenceService(presenceRepo repository.PresenceRepositoryInterface, presenceCache PresenceFastPath, b *bus.Bus) *PresenceService {
	return &PresenceService{
		presenceRepo:  presenceRepo,
		presenceCache: presenceCache,
		bus:           b,
		ttl:           presenceTTLFromEnv(),
		now:           time.Now,
	}
}

func presenceTTLFromEnv() time.Duration {
	s := os.Getenv("PRESENCE_TTL_SECONDS")
	if s == "" {
		return DefaultPresenceTTL
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs < 1 {
		return DefaultPresenceTTL
	}
	return time.Duration(secs) * time.Second
}

func (s *PresenceService) TTL() time.Duration {
	return s.ttl
}

// Heartbeat upserts the caller's record as online. The repository upsert is
// keyed on user_id, so concurrent beats from duplicated tabs last-write-win
// instead of failing.
func (s *PresenceService) Heartbeat(userID uint) error {
	at := s.now().UTC()
	if err := s.presenceRepo.Upsert(userID, true, at); err != nil {
		return fmt.Errorf("%w: presence upsert: %v", errs.ErrDependency, err)
	}
	if err := s.presenceCache.SetOnline(userID, s.ttl); err != nil {
		// Cache is a fast path only; the record is already written.
		log.Printf("presence: cache set online failed for user %d: %v", userID, err)
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicPresence, "heartbeat")
	}
	return nil
}

// MarkOffline records a graceful disconnect. Best effort: a client that
// never calls this ages out through the TTL instead.
func (s *PresenceService) MarkOffline(userID uint) error {
	at := s.now().UTC()
	if err := s.presenceRepo.Upsert(userID, false, at); err != nil {
		return fmt.Errorf("%w: presence upsert: %v", errs.ErrDependency, err)
	}
	if err := s.presenceCache.SetOffline(userID); err != nil {
		log.Printf("presence: cache set offline failed for user %d: %v", userID, err)
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicPresence, "offline")
	}
	return nil
}

// Snapshot returns the full current presence table.
func (s *PresenceService) Snapshot() ([]models.Presence, error) {
	records, err := s.presenceRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("%w: presence snapshot: %v", errs.ErrDependency, err)
	}
	return records, nil
}

// SnapshotResponses returns the snapshot with derived online state applied.
func (s *PresenceService) SnapshotResponses() ([]models.PresenceResponse, error) {
	records, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	responses := make([]models.PresenceResponse, len(records))
	for i, rec := range records {
		responses[i] = rec.ToResponse(now, s.ttl)
	}
	return responses, nil
}

// EffectiveOnline is the derived predicate every consumer must use; the raw
// stored flag lies for crashed clients.
func (s *PresenceService) EffectiveOnline(rec *models.Presence) bool {
	if rec == nil || !rec.IsOnline {
		// A stored offline flag is authoritative: mark-offline may have
		// failed to clear the cache key, which then lies until it expires.
		return false
	}
	// The cache fast path expires on the same TTL, so a hit is equivalent
	// to the predicate below evaluating true.
	if s.presenceCache.IsOnline(rec.UserID) {
		return true
	}
	return rec.EffectiveOnline(s.now().UTC(), s.ttl)
}
