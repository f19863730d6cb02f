package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/contextkeys"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/handler"
	"github.com/mustafamilyas/expense-tracker/internal/logger"
	"github.com/mustafamilyas/expense-tracker/internal/service"
)

const maxRelayBody = 1 << 20 // 1 MiB

// TokenVerifier verifies a bearer credential and yields the web principal.
type TokenVerifier interface {
	VerifyToken(token string) (uuid.UUID, error)
}

// BindingResolver loads a binding for the chat credential path.
type BindingResolver interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ChatBinding, error)
}

// AuthResolver resolves every inbound request to exactly one of the two
// context variants: web (bearer token) or chat (relay signature + binding).
type AuthResolver struct {
	tokens   TokenVerifier
	relay    *service.RelayVerifier
	bindings BindingResolver
}

// NewAuthResolver creates a new AuthResolver.
func NewAuthResolver(tokens TokenVerifier, relay *service.RelayVerifier, bindings BindingResolver) *AuthResolver {
	return &AuthResolver{tokens: tokens, relay: relay, bindings: bindings}
}

// Middleware returns the resolver as chi middleware. Presence of both
// credential kinds, or neither, is a hard failure; a request never falls
// through from one path to the other.
func (a *AuthResolver) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasBearer := r.Header.Get("Authorization") != ""
			hasRelay := r.Header.Get("X-Relay-Signature") != "" || r.Header.Get("X-Chat-Binding") != ""

			switch {
			case hasBearer && hasRelay:
				deny(w, r, domain.ErrUnauthorized(domain.ReasonAmbiguousCred))
			case hasBearer:
				a.resolveWeb(w, r, next)
			case hasRelay:
				a.resolveChat(w, r, next)
			default:
				deny(w, r, domain.ErrUnauthorized(domain.ReasonMissingCred))
			}
		})
	}
}

func (a *AuthResolver) resolveWeb(w http.ResponseWriter, r *http.Request, next http.Handler) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		deny(w, r, domain.ErrUnauthorized(domain.ReasonMalformedToken))
		return
	}

	userID, err := a.tokens.VerifyToken(parts[1])
	if err != nil {
		deny(w, r, err)
		return
	}

	auth := &domain.AuthContext{Source: domain.SourceWeb, UserID: userID}
	next.ServeHTTP(w, r.WithContext(withAuth(r.Context(), auth)))
}

func (a *AuthResolver) resolveChat(w http.ResponseWriter, r *http.Request, next http.Handler) {
	sig := r.Header.Get("X-Relay-Signature")
	bindingHdr := r.Header.Get("X-Chat-Binding")
	if sig == "" || bindingHdr == "" {
		deny(w, r, domain.ErrUnauthorized(domain.ReasonMissingCred))
		return
	}

	// The signature covers the exact raw bytes, so capture them before any
	// parsing and hand the handler a fresh reader.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRelayBody))
	if err != nil {
		deny(w, r, domain.ErrUnauthorized(domain.ReasonBadSignature))
		return
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	if err := a.relay.Verify(body, sig); err != nil {
		deny(w, r, err)
		return
	}

	bindingID, err := uuid.Parse(bindingHdr)
	if err != nil {
		deny(w, r, domain.ErrUnauthorized(domain.ReasonUnknownBinding))
		return
	}
	binding, err := a.bindings.Get(r.Context(), bindingID)
	if err != nil {
		handler.Error(w, domain.ErrInternal("failed to load binding", err))
		return
	}
	if binding == nil {
		deny(w, r, domain.ErrUnauthorized(domain.ReasonUnknownBinding))
		return
	}
	if !binding.Active() {
		deny(w, r, domain.ErrUnauthorized(domain.ReasonRevokedBinding))
		return
	}

	groupID := binding.GroupID
	auth := &domain.AuthContext{
		Source:  domain.SourceChat,
		UserID:  binding.BoundBy,
		GroupID: &groupID,
	}
	next.ServeHTTP(w, r.WithContext(withAuth(r.Context(), auth)))
}

// deny logs the internal reason for auditing and answers with the uniform
// status; clients never learn which check failed.
func deny(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := domain.AsAppError(err); ok && appErr.Reason != "" {
		logger.Log.Warn().
			Str("reason", appErr.Reason).
			Str("path", r.URL.Path).
			Msg("authentication rejected")
	}
	handler.Error(w, err)
}

func withAuth(ctx context.Context, auth *domain.AuthContext) context.Context {
	return context.WithValue(ctx, contextkeys.AuthContext, auth)
}

// AuthFromContext extracts the resolved context set by the middleware.
func AuthFromContext(ctx context.Context) (*domain.AuthContext, bool) {
	auth, ok := ctx.Value(contextkeys.AuthContext).(*domain.AuthContext)
	return auth, ok
}
