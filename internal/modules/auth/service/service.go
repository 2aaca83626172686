package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/modules/auth/dto"
	userRepo "anoa.com/yamdb/internal/modules/user/repository"
	user "anoa.com/yamdb/internal/modules/user/service"
	"anoa.com/yamdb/pkg/apperror"
	"anoa.com/yamdb/pkg/mailer"
	"anoa.com/yamdb/pkg/ratelimiter"
	"anoa.com/yamdb/pkg/token"
	"anoa.com/yamdb/pkg/validator"
)

const confirmationSubject = "Your confirmation code"


type Limiter interface {
	Acquire(ctx context.Context, subject string, scope ratelimiter.Scope) (func(), error)
}

type AuthService interface {
	Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error)
	Token(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)
}

type authService struct {
	repo     userRepo.UserRepository
	issuer   *token.Issuer
	mail     mailer.Sender
	limiter  Limiter
	codeTTL  time.Duration
	hashCost int
	now      func() time.Time
}

func NewAuthService(repo userRepo.UserRepository, issuer *token.Issuer, mail mailer.Sender, limiter Limiter, codeTTL time.Duration) AuthService {
	return &authService{
		repo:     repo,
		issuer:   issuer,
		mail:     mail,
		limiter:  limiter,
		codeTTL:  codeTTL,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Signup registers a user, or resends the code when exactly this
// username and email pair is already registered.
func (s *authService) Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error) {
	email := user.NormalizeEmail(req.Email)

	vErr := &apperror.ValidationError{}
	if msg := validator.ValidUsername(req.Username); msg != "" {
		vErr.Add("username", msg)
	}
	if email == "" {
		vErr.Add("email", "this field is required")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	target, err := s.resolveSignup(ctx, req.Username, email)
	if err != nil {
		return nil, err
	}

	release, err := s.limiter.Acquire(ctx, req.Username, ratelimiter.ScopeSignup)
	if err != nil {
		return nil, err
	}

	code, hash, err := s.newCode()
	if err != nil {
		release()
		return nil, err
	}
	expiresAt := s.now().Add(s.codeTTL)

	if target == nil {
		target = &entity.User{
			Username:              req.Username,
			Email:                 &email,
			Role:                  authz.RoleUser,
			ConfirmationCodeHash:  hash,
			ConfirmationExpiresAt: &expiresAt,
		}
		if err := s.repo.Create(ctx, target); err != nil {
			release()
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperror.NewValidationError("username", "a user with that username or email already exists")
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	} else if err := s.repo.SetConfirmation(ctx, target.ID, hash, expiresAt); err != nil {
		release()
		return nil, fmt.Errorf("failed to store confirmation code: %w", err)
	}

	body := fmt.Sprintf("Hello %s,\n\nyour confirmation code is %s\nIt expires at %s.\n",
		target.Username, code, expiresAt.UTC().Format(time.RFC1123))
	if err := s.mail.Send(ctx, email, confirmationSubject, body); err != nil {
		release()
		return nil, fmt.Errorf("failed to send confirmation code: %w", err)
	}

	return &dto.SignupResponse{Email: email, Username: target.Username}, nil
}

// resolveSignup returns the existing user for a resend, nil for a new
// signup, or field errors when the username or email belongs to someone else.
func (s *authService) resolveSignup(ctx context.Context, username, email string) (*entity.User, error) {
	byName, err := s.repo.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if byName != nil && byName.EmailValue() == email {
		return byName, nil
	}

	vErr := &apperror.ValidationError{}
	if byName != nil {
		vErr.Add("username", "a user with that username already exists")
	}

	byEmail, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if byEmail != nil {
		vErr.Add("email", "a user with that email already exists")
	}

	if vErr.HasErrors() {
		return nil, vErr
	}
	return nil, nil
}

func (s *authService) Token(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	u, err := s.repo.FindByUsername(ctx, req.Username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if u.ConfirmationCodeHash == "" || u.ConfirmationExpiresAt == nil || s.now().After(*u.ConfirmationExpiresAt) {
		return nil, apperror.NewValidationError("confirmation_code", "invalid or expired confirmation code")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.ConfirmationCodeHash), []byte(req.ConfirmationCode)); err != nil {
		return nil, apperror.NewValidationError("confirmation_code", "invalid or expired confirmation code")
	}

	signed, _, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ClearConfirmation(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("failed to consume confirmation code: %w", err)
	}

	return &dto.TokenResponse{Token: signed}, nil
}

// newCode returns a 12 hex digit code and its bcrypt hash.
func (s *authService) newCode() (string, string, error) {
	id := uuid.New()
	code := hex.EncodeToString(id[:6])

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash confirmation code: %w", err)
	}
	return code, string(hash), nil
}
