package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/stretchr/testify/require"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *memUserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *memUserStore) Exists(ctx context.Context, email string) (bool, error) {
	u, err := s.FindByEmail(ctx, email)
	return u != nil, err
}

func newTestAuthService(secrets []string) (*AuthService, *memUserStore) {
	store := newMemUserStore()
	return NewAuthService(secrets, time.Hour, store), store
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService([]string{"secret-a"})

	t.Run("register returns a session", func(t *testing.T) {
		resp, err := svc.Register(ctx, "a@example.com", "hunter22")
		require.NoError(t, err)
		require.NotEmpty(t, resp.Token)
		require.Equal(t, "a@example.com", resp.User.Email)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := svc.Register(ctx, "a@example.com", "hunter22")
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusConflict, appErr.Code)
	})

	t.Run("login with valid credentials", func(t *testing.T) {
		resp, err := svc.Login(ctx, "a@example.com", "hunter22")
		require.NoError(t, err)
		require.NotEmpty(t, resp.Token)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "a@example.com", "wrong")
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusUnauthorized, appErr.Code)
	})

	t.Run("login with unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "hunter22")
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusUnauthorized, appErr.Code)
	})
}

func TestVerifyToken(t *testing.T) {
	userID := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		svc, _ := newTestAuthService([]string{"secret-a"})
		token, err := svc.IssueToken(userID)
		require.NoError(t, err)

		got, err := svc.VerifyToken(token)
		require.NoError(t, err)
		require.Equal(t, userID, got)
	})

	t.Run("expired token", func(t *testing.T) {
		svc, _ := newTestAuthService([]string{"secret-a"})
		token, err := svc.IssueToken(userID)
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = svc.VerifyToken(token)
		requireReason(t, err, domain.ReasonExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		issuer, _ := newTestAuthService([]string{"secret-a"})
		verifier, _ := newTestAuthService([]string{"secret-b"})
		token, err := issuer.IssueToken(userID)
		require.NoError(t, err)

		_, err = verifier.VerifyToken(token)
		requireReason(t, err, domain.ReasonInvalidSignature)
	})

	t.Run("rotated secret list still verifies old tokens", func(t *testing.T) {
		issuer, _ := newTestAuthService([]string{"secret-old"})
		token, err := issuer.IssueToken(userID)
		require.NoError(t, err)

		rotated, _ := newTestAuthService([]string{"secret-new", "secret-old"})
		got, err := rotated.VerifyToken(token)
		require.NoError(t, err)
		require.Equal(t, userID, got)
	})

	t.Run("malformed token", func(t *testing.T) {
		svc, _ := newTestAuthService([]string{"secret-a"})
		_, err := svc.VerifyToken("not.a.jwt")
		requireReason(t, err, domain.ReasonMalformedToken)
	})

	t.Run("non-uuid subject is malformed", func(t *testing.T) {
		svc, _ := newTestAuthService([]string{"secret-a"})
		token := signTestToken(t, "secret-a", "web", "not-a-uuid", time.Now().Add(time.Hour))
		_, err := svc.VerifyToken(token)
		requireReason(t, err, domain.ReasonMalformedToken)
	})

	t.Run("wrong typ claim is malformed", func(t *testing.T) {
		svc, _ := newTestAuthService([]string{"secret-a"})
		token := signTestToken(t, "secret-a", "chat", userID.String(), time.Now().Add(time.Hour))
		_, err := svc.VerifyToken(token)
		requireReason(t, err, domain.ReasonMalformedToken)
	})
}

func signTestToken(t *testing.T, secret, typ, sub string, exp time.Time) string {
	t.Helper()
	claims := webClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestAuthService([]string{"secret-a"})

	user := &domain.User{ID: uuid.New(), Email: "b@example.com", Password: "x"}
	require.NoError(t, store.Create(ctx, user))

	t.Run("found", func(t *testing.T) {
		resp, err := svc.GetUser(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, "b@example.com", resp.Email)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.GetUser(ctx, uuid.New())
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusNotFound, appErr.Code)
	})
}
