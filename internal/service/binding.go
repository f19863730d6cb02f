package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// BindRequestStore is the persistence contract for bind requests. ClaimUser
// must be a compare-and-set executed by the store: set the user only if
// currently unset, reporting whether a row was affected.
type BindRequestStore interface {
	Create(ctx context.Context, req *domain.ChatBindRequest) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ChatBindRequest, error)
	ClaimUser(ctx context.Context, id, userID uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChatBindingStore is the persistence contract for bindings. Bind must
// atomically consume the request, revoke any active binding for the same
// chat identity and insert the new row, returning a Conflict AppError when
// a concurrent confirm wins.
type ChatBindingStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ChatBinding, error)
	ActiveForChat(ctx context.Context, platform domain.Platform, chatID string) (*domain.ChatBinding, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.ChatBinding, error)
	Bind(ctx context.Context, requestID, groupID, boundBy uuid.UUID) (*domain.ChatBinding, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

// BindRequestService issues and consumes single-use, time-bounded
// chat-binding nonces.
type BindRequestService struct {
	store   BindRequestStore
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// NewBindRequestService creates a new BindRequestService.
func NewBindRequestService(store BindRequestStore, ttl time.Duration, baseURL string) *BindRequestService {
	return &BindRequestService{store: store, ttl: ttl, baseURL: baseURL, now: time.Now}
}

// hashNonce is the one-way mapping under which nonces are stored.
func hashNonce(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return hex.EncodeToString(sum[:])
}

// Issue creates a bind request for a chat identity and returns the plaintext
// nonce exactly once, for embedding in the one-time URL. Only the hash is
// persisted, and the plaintext is never logged.
func (s *BindRequestService) Issue(ctx context.Context, platform domain.Platform, chatID string) (*domain.IssueBindRequestResponse, error) {
	if !domain.ValidPlatform(platform) {
		return nil, domain.ErrBadRequest(fmt.Sprintf("unknown platform %q", platform))
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, domain.ErrInternal("failed to generate nonce", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now()
	req := &domain.ChatBindRequest{
		ID:        uuid.New(),
		Platform:  platform,
		ChatID:    chatID,
		NonceHash: hashNonce(nonce),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, domain.ErrInternal("failed to store bind request", err)
	}

	return &domain.IssueBindRequestResponse{
		RequestID: req.ID,
		Nonce:     nonce,
		BindURL:   fmt.Sprintf("%s?request=%s&nonce=%s", s.baseURL, req.ID, nonce),
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// Claim attributes the request to a web-authenticated user, exactly once.
// Two racing claims resolve at the store: one sees the conditional update
// apply, the other gets Conflict.
func (s *BindRequestService) Claim(ctx context.Context, id, actingUser uuid.UUID) error {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to load bind request", err)
	}
	if req == nil {
		return domain.ErrNotFound("bind request not found")
	}
	if req.Expired(s.now()) {
		return domain.ErrExpired("bind request expired")
	}

	ok, err := s.store.ClaimUser(ctx, id, actingUser)
	if err != nil {
		return domain.ErrInternal("failed to claim bind request", err)
	}
	if !ok {
		return domain.ErrConflict("bind request already claimed", domain.ReasonAlreadyClaimed)
	}
	return nil
}

// Verify checks the nonce, the expiry and that the request was claimed by
// expectedUser. Mismatches all report nonce-mismatch so a caller cannot
// tell which part failed.
func (s *BindRequestService) Verify(ctx context.Context, id uuid.UUID, nonce string, expectedUser uuid.UUID) (*domain.ChatBindRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to load bind request", err)
	}
	if req == nil {
		return nil, domain.ErrNotFound("bind request not found")
	}
	if req.Expired(s.now()) {
		return nil, domain.ErrExpired("bind request expired")
	}
	if subtle.ConstantTimeCompare([]byte(hashNonce(nonce)), []byte(req.NonceHash)) != 1 {
		return nil, domain.ErrUnauthorized(domain.ReasonNonceMismatch)
	}
	if req.UserID == nil || *req.UserID != expectedUser {
		return nil, domain.ErrUnauthorized(domain.ReasonNonceMismatch)
	}
	return req, nil
}

// ChatBindingService turns consumed bind requests into active bindings and
// handles revocation.
type ChatBindingService struct {
	requests *BindRequestService
	store    ChatBindingStore
}

// NewChatBindingService creates a new ChatBindingService.
func NewChatBindingService(requests *BindRequestService, store ChatBindingStore) *ChatBindingService {
	return &ChatBindingService{requests: requests, store: store}
}

// Confirm verifies the bind request and atomically replaces any active
// binding for the chat identity with a new one bound to targetGroup. Of two
// racing confirms for one chat, exactly one wins; the loser gets Conflict
// and no half-applied state. A replay of a consumed request also fails.
func (s *ChatBindingService) Confirm(ctx context.Context, requestID uuid.UUID, nonce string, actingUser, targetGroup uuid.UUID) (*domain.ChatBinding, error) {
	if _, err := s.requests.Verify(ctx, requestID, nonce, actingUser); err != nil {
		return nil, err
	}
	binding, err := s.store.Bind(ctx, requestID, targetGroup, actingUser)
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("failed to bind chat", err)
	}
	return binding, nil
}

// Revoke deactivates a binding. Idempotent: revoking an already-revoked
// binding is a no-op success.
func (s *ChatBindingService) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Revoke(ctx, id); err != nil {
		return domain.ErrInternal("failed to revoke binding", err)
	}
	return nil
}

// Get returns a binding by ID.
func (s *ChatBindingService) Get(ctx context.Context, id uuid.UUID) (*domain.ChatBinding, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to load binding", err)
	}
	if b == nil {
		return nil, domain.ErrNotFound("binding not found")
	}
	return b, nil
}

// ListByGroup returns the bindings attached to a group.
func (s *ChatBindingService) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.ChatBinding, error) {
	bindings, err := s.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list bindings", err)
	}
	return bindings, nil
}
