package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/campuslink/comms-backend/internal/bus"
	"github.com/campuslink/comms-backend/internal/directory"
	"github.com/campuslink/comms-backend/internal/errs"
	"github.com/campuslink/comms-backend/internal/models"
	"github.com/campuslink/comms-backend/internal/repository"
	"github.com/campuslink/comms-backend/internal/validation"
)

const (
	defaultHistoryPage = 50

	// maxHistoryPage is both the page-size cap and the canonical cache
	// window: the cache only ever stores the newest maxHistoryPage
	// messages of a pair, and every smaller page is a trim of it.
	maxHistoryPage = 200
)

// ConversationCache is the slice of the cache layer the chat service
// needs; *cache.ChatCache is the production implementation.
type ConversationCache interface {
	GetConversation(userID1, userID2 uint) ([]models.ChatMessage, bool)
	SetConversation(userID1, userID2 uint, messages []models.ChatMessage) error
	InvalidateConversation(userID1, userID2 uint) error
}

type ChatService struct {
	chatRepo  repository.ChatMessageRepositoryInterface
	presence  *PresenceService
	directory directory.Directory
	bus       *bus.Bus
	chatCache ConversationCache
	now       func() time.Time
}

func NewChatService(chatRepo repository.ChatMessageRepositoryInterface, presence *PresenceService, dir directory.Directory, b *bus.Bus, chatCache ConversationCache) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		presence:  presence,
		directory: dir,
		bus:       b,
		chatCache: chatCache,
		now:       time.Now,
	}
}

// Send persists a message and signals both parties' open views. A failed
// persist is surfaced; there is no fire-and-forget success.
func (s *ChatService) Send(senderID, recipientID uint, body string) (*models.ChatMessage, error) {
	body = validation.TrimAndLimit(body, validation.MaxChatBodyLength())
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", errs.ErrValidation)
	}
	if recipientID == 0 {
		return nil, fmt.Errorf("%w: recipient_id is required", errs.ErrValidation)
	}
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: cannot send a message to yourself", errs.ErrValidation)
	}

	message := &models.ChatMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
	}
	if err := s.chatRepo.Create(message); err != nil {
		return nil, fmt.Errorf("%w: persist chat message: %v", errs.ErrDependency, err)
	}

	if err := s.chatCache.InvalidateConversation(senderID, recipientID); err != nil {
		log.Printf("chat: cache invalidation failed for pair (%d,%d): %v", senderID, recipientID, err)
	}
	if s.bus != nil {
		s.bus.Publish(bus.ChatTopic(senderID, recipientID), "message")
	}

	return message, nil
}

// History returns a page of the pair's conversation in creation order.
// Both permutations of the pair return the identical ordered set. A
// non-zero beforeID pages back past older messages; the full conversation
// is reachable by walking beforeID from the oldest id of each page.
// Only the newest window (beforeID == 0) is cached, always at the
// canonical maxHistoryPage size; smaller limits trim that window so the
// first caller's page size never shapes what later callers see.
func (s *ChatService) History(userA, userB uint, limit int, beforeID uint) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryPage
	}
	if limit > maxHistoryPage {
		limit = maxHistoryPage
	}

	if beforeID > 0 {
		messages, err := s.chatRepo.FindConversation(userA, userB, limit, beforeID)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch conversation: %v", errs.ErrDependency, err)
		}
		return messages, nil
	}

	if cached, ok := s.chatCache.GetConversation(userA, userB); ok {
		if len(cached) > limit {
			cached = cached[len(cached)-limit:]
		}
		return cached, nil
	}

	window, err := s.chatRepo.FindConversation(userA, userB, maxHistoryPage, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch conversation: %v", errs.ErrDependency, err)
	}
	if len(window) > 0 {
		if err := s.chatCache.SetConversation(userA, userB, window); err != nil {
			log.Printf("chat: cache set failed for pair (%d,%d): %v", userA, userB, err)
		}
	}
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window, nil
}

// MarkConversationRead stamps every unread message from counterpart to
// viewer in one batch. Idempotent: a second call finds nothing unread.
func (s *ChatService) MarkConversationRead(viewerID, counterpartID uint) (int64, error) {
	updated, err := s.chatRepo.MarkConversationRead(viewerID, counterpartID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: mark conversation read: %v", errs.ErrDependency, err)
	}
	if updated > 0 {
		if err := s.chatCache.InvalidateConversation(viewerID, counterpartID); err != nil {
			log.Printf("chat: cache invalidation failed for pair (%d,%d): %v", viewerID, counterpartID, err)
		}
		if s.bus != nil {
			s.bus.Publish(bus.ChatTopic(viewerID, counterpartID), "read")
		}
	}
	return updated, nil
}

// Contact is one entry in a user's contact list: a directory user
// annotated with derived presence and the viewer's unread count.
type Contact struct {
	UserID      uint       `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	IsOnline    bool       `json:"is_online"`
	LastSeen    *time.Time `json:"last_seen"`
	UnreadCount int64      `json:"unread_count"`
}

// ListContacts returns the directory minus self, online contacts first,
// alphabetical by display name within each group. Stateless: recomputed on
// every call.
func (s *ChatService) ListContacts(ctx context.Context, userID uint) ([]Contact, error) {
	users, err := s.directory.ListUsers(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.presence.Snapshot()
	if err != nil {
		return nil, err
	}
	byUser := make(map[uint]*models.Presence, len(records))
	for i := range records {
		byUser[records[i].UserID] = &records[i]
	}

	contacts := make([]Contact, 0, len(users))
	for _, u := range users {
		contact := Contact{
			UserID:      u.UserID,
			DisplayName: u.DisplayName,
			Role:        u.Role,
		}
		if rec, ok := byUser[u.UserID]; ok {
			contact.IsOnline = s.presence.EffectiveOnline(rec)
			lastSeen := rec.LastSeen
			contact.LastSeen = &lastSeen
		}
		unread, err := s.chatRepo.CountUnread(userID, u.UserID)
		if err != nil {
			// Non-critical annotation; show the contact without a badge.
			log.Printf("chat: unread count failed for viewer %d peer %d: %v", userID, u.UserID, err)
		} else {
			contact.UnreadCount = unread
		}
		contacts = append(contacts, contact)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		if contacts[i].IsOnline != contacts[j].IsOnline {
			return contacts[i].IsOnline
		}
		return strings.ToLower(contacts[i].DisplayName) < strings.ToLower(contacts[j].DisplayName)
	})

	return contacts, nil
}
