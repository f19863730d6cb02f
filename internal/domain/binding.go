package domain

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies a chat platform behind the relay.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
)

// ValidPlatform reports whether p names a supported platform.
func ValidPlatform(p Platform) bool {
	return p == PlatformTelegram || p == PlatformDiscord
}

// ChatBindRequest is a pending chat-to-group binding attempt. Only the
// SHA-256 of the nonce is ever stored; the plaintext is returned once at
// creation. UserID stays nil until a web session claims the request.
type ChatBindRequest struct {
	ID        uuid.UUID  `json:"id"`
	Platform  Platform   `json:"platform"`
	ChatID    string     `json:"chatId"`
	NonceHash string     `json:"-"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Expired reports whether the request is past its TTL.
func (r *ChatBindRequest) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// Binding statuses. A revoked row is terminal; rebinding the same chat
// creates a new row.
const (
	BindingActive  = "active"
	BindingRevoked = "revoked"
)

// ChatBinding is the durable association of one external chat to one expense
// group. At most one row per (platform, chat id) is active at any instant.
type ChatBinding struct {
	ID        uuid.UUID  `json:"id"`
	GroupID   uuid.UUID  `json:"groupId"`
	Platform  Platform   `json:"platform"`
	ChatID    string     `json:"chatId"`
	Status    string     `json:"status"`
	BoundBy   uuid.UUID  `json:"boundBy"`
	BoundAt   time.Time  `json:"boundAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// Active reports whether the binding is live.
func (b *ChatBinding) Active() bool {
	return b.Status == BindingActive && b.RevokedAt == nil
}

// AuthSource tags the two credential paths.
type AuthSource string

const (
	SourceWeb  AuthSource = "web"
	SourceChat AuthSource = "chat"
)

// AuthContext is the resolved per-request identity. It is constructed fresh
// per request and never persisted. GroupID is set only for chat-sourced
// contexts, where it scopes every group reference in the payload.
type AuthContext struct {
	Source  AuthSource
	UserID  uuid.UUID
	GroupID *uuid.UUID
}

// IssueBindRequestPayload is the relay's input for starting a bind.
type IssueBindRequestPayload struct {
	Platform Platform `json:"platform" validate:"required"`
	ChatID   string   `json:"chatId" validate:"required,max=128"`
}

// IssueBindRequestResponse returns the one-time URL material. Nonce is the
// only place the plaintext ever appears.
type IssueBindRequestResponse struct {
	RequestID uuid.UUID `json:"requestId"`
	Nonce     string    `json:"nonce"`
	BindURL   string    `json:"bindUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AcceptBindingPayload is the web session's input for confirming a bind.
type AcceptBindingPayload struct {
	RequestID uuid.UUID `json:"requestId" validate:"required"`
	Nonce     string    `json:"nonce" validate:"required"`
	GroupID   uuid.UUID `json:"groupId" validate:"required"`
}
