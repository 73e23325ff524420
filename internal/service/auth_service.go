package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/jwt"
	"github.com/xxxsen/studymate/internal/pkg/password"
	"github.com/xxxsen/studymate/internal/pkg/timeutil"
)

const (
	minUsernameLen = 5
	maxUsernameLen = 20
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthService struct {
	users     UserStore
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users UserStore, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: secret, jwtTTL: ttl}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type ProfileInput struct {
	Username string
	Email    string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if err := validateIdentity(username, email); err != nil {
		return nil, "", err
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, "", fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, "", err
	}
	now := timeutil.NowUnix()
	user := &model.User{
		ID:           newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, "", fmt.Errorf("%w: user already exists", appErr.ErrConflict)
		}
		return nil, "", err
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID))
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || plainPassword == "" {
		return nil, "", fmt.Errorf("%w: email and password are required", appErr.ErrInvalid)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, "", appErr.ErrUnauthorized
		}
		return nil, "", err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return fmt.Errorf("%w: current and new password are required", appErr.ErrInvalid)
	}
	if err := password.Validate(next); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := password.Compare(user.PasswordHash, current); err != nil {
		return fmt.Errorf("%w: current password is incorrect", appErr.ErrUnauthorized)
	}
	hash, err := password.Hash(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash, timeutil.NowUnix())
}

// UpdateProfile changes the username and email. An empty field keeps the
// stored value. A fresh token is returned since the token carries the email.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = user.Username
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		email = user.Email
	}
	if err := validateIdentity(username, email); err != nil {
		return nil, "", err
	}
	now := timeutil.NowUnix()
	if err := s.users.UpdateProfile(ctx, userID, username, email, now); err != nil {
		if appErr.IsConflict(err) {
			return nil, "", fmt.Errorf("%w: username or email already in use", appErr.ErrConflict)
		}
		return nil, "", err
	}
	user.Username = username
	user.Email = email
	user.Mtime = now
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	logutil.GetLogger(ctx).Info("user profile updated", zap.String("user_id", user.ID))
	return user, token, nil
}

func validateIdentity(username, email string) error {
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", appErr.ErrInvalid, minUsernameLen, maxUsernameLen)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email", appErr.ErrInvalid)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
