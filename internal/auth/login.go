package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// LoginService authenticates credentials and creates accounts.
type LoginService struct {
	users   UserRepository
	access  *AccessTokenService
	refresh *RefreshTokenService
}

// NewLoginService creates a login service.
func NewLoginService(users UserRepository, access *AccessTokenService, refresh *RefreshTokenService) *LoginService {
	return &LoginService{users: users, access: access, refresh: refresh}
}

// Login checks email and password and issues a token pair. Unknown email,
// inactive account and wrong password all produce the same
// InvalidCredentials error; the cause distinguishes them in logs.
func (s *LoginService) Login(ctx context.Context, email, password string) (TokenObject, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenObject{}, InvalidCredentials(errors.New("missing email or password"))
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenObject{}, InvalidCredentials(err)
		}
		return TokenObject{}, fmt.Errorf("looking up user: %w", err)
	}
	if !user.Status {
		return TokenObject{}, InvalidCredentials(ErrUserInactive)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return TokenObject{}, InvalidCredentials(err)
	}
	if !ok {
		return TokenObject{}, InvalidCredentials(errors.New("password mismatch"))
	}

	identity := user.ToIdentity()
	accessToken, err := s.access.Generate(identity)
	if err != nil {
		return TokenObject{}, err
	}
	return s.refresh.Generate(ctx, identity, accessToken)
}

// Signup creates an inactive account with DefaultPermissions. The account
// cannot log in until it is activated.
func (s *LoginService) Signup(ctx context.Context, req NewUser) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Status:       false,
		Permissions:  append([]PermissionKey(nil), DefaultPermissions...),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// NewUserID returns a new lexically sortable user id.
func NewUserID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}
