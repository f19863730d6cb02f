package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/service"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	userID uuid.UUID
	err    error
}

func (s *stubTokens) VerifyToken(string) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return s.userID, nil
}

type stubBindings struct {
	bindings map[uuid.UUID]*domain.ChatBinding
}

func (s *stubBindings) Get(_ context.Context, id uuid.UUID) (*domain.ChatBinding, error) {
	return s.bindings[id], nil
}

type resolverFixture struct {
	relay    *service.RelayVerifier
	tokens   *stubTokens
	bindings *stubBindings
	handler  http.Handler
	captured *domain.AuthContext
	body     string
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	f := &resolverFixture{
		relay:    service.NewRelayVerifier("relay-secret"),
		tokens:   &stubTokens{userID: uuid.New()},
		bindings: &stubBindings{bindings: make(map[uuid.UUID]*domain.ChatBinding)},
	}
	resolver := NewAuthResolver(f.tokens, f.relay, f.bindings)
	f.handler = resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ok := AuthFromContext(r.Context())
		require.True(t, ok)
		f.captured = auth
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	return f
}

func (f *resolverFixture) addBinding(status string) *domain.ChatBinding {
	b := &domain.ChatBinding{
		ID:       uuid.New(),
		GroupID:  uuid.New(),
		Platform: domain.PlatformTelegram,
		ChatID:   "chat-42",
		Status:   status,
		BoundBy:  uuid.New(),
		BoundAt:  time.Now().UTC(),
	}
	if status == domain.BindingRevoked {
		now := time.Now().UTC()
		b.RevokedAt = &now
	}
	f.bindings.bindings[b.ID] = b
	return b
}

func TestAuthResolverCredentialSelection(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		f := newResolverFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("both credentials is ambiguous", func(t *testing.T) {
		f := newResolverFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		req.Header.Set("Authorization", "Bearer token")
		req.Header.Set("X-Relay-Signature", "sha256=00")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Nil(t, f.captured)
	})

	t.Run("bearer with chat binding header is still ambiguous", func(t *testing.T) {
		f := newResolverFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		req.Header.Set("Authorization", "Bearer token")
		req.Header.Set("X-Chat-Binding", uuid.NewString())
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthResolverWebPath(t *testing.T) {
	t.Run("valid bearer token resolves web context", func(t *testing.T) {
		f := newResolverFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, domain.SourceWeb, f.captured.Source)
		require.Equal(t, f.tokens.userID, f.captured.UserID)
		require.Nil(t, f.captured.GroupID)
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		f := newResolverFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		req.Header.Set("Authorization", "just-a-token")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		f := newResolverFixture(t)
		f.tokens.err = domain.ErrUnauthorized(domain.ReasonExpiredToken)
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthResolverChatPath(t *testing.T) {
	const payload = `{"groupId":"x","amount":"12.50"}`

	chatRequest := func(f *resolverFixture, bindingID, body, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
		req.Header.Set("X-Relay-Signature", sig)
		req.Header.Set("X-Chat-Binding", bindingID)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid signature and active binding resolve chat context", func(t *testing.T) {
		f := newResolverFixture(t)
		binding := f.addBinding(domain.BindingActive)
		rec := chatRequest(f, binding.ID.String(), payload, f.relay.Sign([]byte(payload)))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, domain.SourceChat, f.captured.Source)
		require.Equal(t, binding.BoundBy, f.captured.UserID)
		require.NotNil(t, f.captured.GroupID)
		require.Equal(t, binding.GroupID, *f.captured.GroupID)
	})

	t.Run("handler sees the original body after verification", func(t *testing.T) {
		f := newResolverFixture(t)
		binding := f.addBinding(domain.BindingActive)
		rec := chatRequest(f, binding.ID.String(), payload, f.relay.Sign([]byte(payload)))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, payload, f.body)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newResolverFixture(t)
		binding := f.addBinding(domain.BindingActive)
		rec := chatRequest(f, binding.ID.String(), payload, "sha256=deadbeef")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Nil(t, f.captured)
	})

	t.Run("signature without binding header is incomplete", func(t *testing.T) {
		f := newResolverFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(payload))
		req.Header.Set("X-Relay-Signature", f.relay.Sign([]byte(payload)))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown binding id", func(t *testing.T) {
		f := newResolverFixture(t)
		rec := chatRequest(f, uuid.NewString(), payload, f.relay.Sign([]byte(payload)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-uuid binding header", func(t *testing.T) {
		f := newResolverFixture(t)
		rec := chatRequest(f, "not-a-uuid", payload, f.relay.Sign([]byte(payload)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revoked binding", func(t *testing.T) {
		f := newResolverFixture(t)
		binding := f.addBinding(domain.BindingRevoked)
		rec := chatRequest(f, binding.ID.String(), payload, f.relay.Sign([]byte(payload)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Nil(t, f.captured)
	})
}
