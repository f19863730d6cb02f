package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence contract the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Exists(ctx context.Context, email string) (bool, error)
}

// webClaims is the token payload. Type must be "web"; chat principals never
// hold tokens.
type webClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// AuthService handles account management and web bearer tokens. Tokens are
// signed with the first secret and verified against every secret in order,
// so rotation keeps previously issued tokens valid until they expire.
type AuthService struct {
	secrets  []string
	tokenTTL time.Duration
	users    UserStore
	now      func() time.Time
}

// NewAuthService creates a new AuthService. secrets must be non-empty.
func NewAuthService(secrets []string, tokenTTL time.Duration, users UserStore) *AuthService {
	return &AuthService{
		secrets:  secrets,
		tokenTTL: tokenTTL,
		users:    users,
		now:      time.Now,
	}
}

// Register creates a new account and returns a logged-in session.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrConflict("email already registered", "")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	now := s.now()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}

	return s.session(user)
}

// Login validates credentials and returns a web token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized("invalid-credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid-credentials")
	}
	return s.session(user)
}

func (s *AuthService) session(user *domain.User) (*domain.LoginResponse, error) {
	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{Token: token, User: user.Public()}, nil
}

// IssueToken signs a web token for the user with the newest secret.
func (s *AuthService) IssueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := webClaims{
		Type: "web",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secrets[0]))
	if err != nil {
		return "", domain.ErrInternal("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken checks the signature against every configured secret, the
// expiry claim, and the web type marker, and returns the subject. The error
// carries an internal reason (invalid-signature, expired, malformed) for
// auditing; callers surface a uniform 401.
func (s *AuthService) VerifyToken(tokenStr string) (uuid.UUID, error) {
	for _, secret := range s.secrets {
		claims := &webClaims{}
		_, err := jwt.ParseWithClaims(tokenStr, claims,
			func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(s.now),
			jwt.WithExpirationRequired(),
		)
		switch {
		case err == nil:
			if claims.Type != "web" {
				return uuid.Nil, domain.ErrUnauthorized(domain.ReasonMalformedToken)
			}
			sub, perr := uuid.Parse(claims.Subject)
			if perr != nil {
				return uuid.Nil, domain.ErrUnauthorized(domain.ReasonMalformedToken)
			}
			return sub, nil
		case errors.Is(err, jwt.ErrTokenMalformed):
			// No secret can repair a malformed token.
			return uuid.Nil, domain.ErrUnauthorized(domain.ReasonMalformedToken)
		case errors.Is(err, jwt.ErrTokenExpired):
			// Signature checked out for this secret; the token is simply old.
			return uuid.Nil, domain.ErrUnauthorized(domain.ReasonExpiredToken)
		default:
			// Signature mismatch for this secret, try the next one.
		}
	}
	return uuid.Nil, domain.ErrUnauthorized(domain.ReasonInvalidSignature)
}

// GetUser returns the public profile for an authenticated user.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*domain.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	resp := user.Public()
	return &resp, nil
}
