package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/entity"
	"anoa.com/yamdb/internal/logging"
	review "anoa.com/yamdb/internal/modules/review/service"
	"anoa.com/yamdb/internal/modules/user/dto"
	"anoa.com/yamdb/internal/modules/user/repository"
	"anoa.com/yamdb/pkg/apperror"
	commonDto "anoa.com/yamdb/pkg/dto"
	"anoa.com/yamdb/pkg/validator"
)

var errUserNotFound = fmt.Errorf("user not found: %w", apperror.ErrNotFound)

type UserService interface {
	ListUsers(ctx context.Context, p authz.Principal, filter commonDto.SearchFilter) (*commonDto.PaginatedResponse[dto.UserResponse], error)
	CreateUser(ctx context.Context, p authz.Principal, req dto.CreateUserRequest) (*dto.UserResponse, error)
	GetUser(ctx context.Context, p authz.Principal, username string) (*dto.UserResponse, error)
	UpdateUser(ctx context.Context, p authz.Principal, username string, req dto.UpdateUserRequest) (*dto.UserResponse, error)
	DeleteUser(ctx context.Context, p authz.Principal, username string) error

	GetMe(ctx context.Context, p authz.Principal) (*dto.UserResponse, error)
	UpdateMe(ctx context.Context, p authz.Principal, req dto.UpdateUserRequest) (*dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	authz     authz.Authorizer
	listeners []review.RatingListener
}

// NewUserService wires user management. Listeners hear about ratings that
// change when a user and their reviews are deleted.
func NewUserService(repo repository.UserRepository, authorizer authz.Authorizer, listeners ...review.RatingListener) UserService {
	return &userService{repo: repo, authz: authorizer, listeners: listeners}
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) ListUsers(ctx context.Context, p authz.Principal, filter commonDto.SearchFilter) (*commonDto.PaginatedResponse[dto.UserResponse], error) {
	if err := s.authz.Require(p, authz.ResourceUser, authz.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}

	q := filter.PaginationQuery.Normalize()
	users, total, err := s.repo.FindAll(ctx, filter.Search, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	results := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		results = append(results, dto.NewUserResponse(u))
	}
	return commonDto.NewPage(results, total, q), nil
}

func (s *userService) CreateUser(ctx context.Context, p authz.Principal, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := s.authz.Require(p, authz.ResourceUser, authz.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	email := NormalizeEmail(req.Email)
	vErr := &apperror.ValidationError{}
	if msg := validator.ValidUsername(req.Username); msg != "" {
		vErr.Add("username", msg)
	}
	if email == "" {
		vErr.Add("email", "this field is required")
	}

	role := authz.RoleUser
	if req.Role != "" {
		parsed, err := authz.ParseRole(req.Role)
		if err != nil {
			vErr.Add("role", "unknown role")
		}
		role = parsed
	}

	if err := s.checkUnique(ctx, uuid.Nil, req.Username, email, vErr); err != nil {
		return nil, err
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	u := &entity.User{
		Username:  req.Username,
		Email:     &email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      role,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, translateWriteError(err)
	}

	res := dto.NewUserResponse(u)
	return &res, nil
}

func (s *userService) GetUser(ctx context.Context, p authz.Principal, username string) (*dto.UserResponse, error) {
	if err := s.authz.Require(p, authz.ResourceUser, authz.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}

	u, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	res := dto.NewUserResponse(u)
	return &res, nil
}

func (s *userService) UpdateUser(ctx context.Context, p authz.Principal, username string, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if err := s.authz.Require(p, authz.ResourceUser, authz.ActionUpdate, uuid.Nil); err != nil {
		return nil, err
	}

	u, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u.IsSuperuser && !p.Superuser {
		return nil, fmt.Errorf("only a superuser may modify a superuser: %w", apperror.ErrForbidden)
	}

	return s.applyAll(ctx, u, req)
}

func (s *userService) DeleteUser(ctx context.Context, p authz.Principal, username string) error {
	if err := s.authz.Require(p, authz.ResourceUser, authz.ActionDelete, uuid.Nil); err != nil {
		return err
	}

	u, err := s.findByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u.IsSuperuser && !p.Superuser {
		return fmt.Errorf("only a superuser may delete a superuser: %w", apperror.ErrForbidden)
	}

	ratings, err := s.repo.Delete(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	for titleID, rating := range ratings {
		for _, l := range s.listeners {
			if err := l.OnRatingChanged(ctx, titleID, rating); err != nil {
				logging.Warn().Err(err).Uint("title_id", titleID).Msg("rating listener failed")
			}
		}
	}
	return nil
}

func (s *userService) GetMe(ctx context.Context, p authz.Principal) (*dto.UserResponse, error) {
	if err := s.authz.Require(p, authz.ResourceSelf, authz.ActionRead, p.UserID); err != nil {
		return nil, err
	}

	u, err := s.findByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	res := dto.NewUserResponse(u)
	return &res, nil
}

// UpdateMe has two branches. Admins and superusers update every field of
// their own record; everyone else updates all fields but role, and a role
// in the request is discarded without error.
func (s *userService) UpdateMe(ctx context.Context, p authz.Principal, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if err := s.authz.Require(p, authz.ResourceSelf, authz.ActionUpdate, p.UserID); err != nil {
		return nil, err
	}

	u, err := s.findByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		return s.applyAll(ctx, u, req)
	}
	return s.applyProfile(ctx, u, req)
}

func (s *userService) applyAll(ctx context.Context, u *entity.User, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	vErr := &apperror.ValidationError{}
	columns := profileColumns(u, req, vErr)

	if req.Role != nil {
		role, err := authz.ParseRole(*req.Role)
		if err != nil {
			vErr.Add("role", "unknown role")
		} else {
			columns["role"] = role
			u.Role = role
		}
	}

	return s.save(ctx, u, req, columns, vErr)
}

func (s *userService) applyProfile(ctx context.Context, u *entity.User, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	vErr := &apperror.ValidationError{}
	columns := profileColumns(u, req, vErr)
	return s.save(ctx, u, req, columns, vErr)
}

func (s *userService) save(ctx context.Context, u *entity.User, req dto.UpdateUserRequest, columns map[string]interface{}, vErr *apperror.ValidationError) (*dto.UserResponse, error) {
	var username, email string
	if req.Username != nil {
		username = *req.Username
	}
	if req.Email != nil {
		email = u.EmailValue()
	}
	if err := s.checkUnique(ctx, u.ID, username, email, vErr); err != nil {
		return nil, err
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	if err := s.repo.Update(ctx, u.ID, columns); err != nil {
		return nil, translateWriteError(err)
	}

	res := dto.NewUserResponse(u)
	return &res, nil
}

// profileColumns applies every field except role to u and returns the changed columns.
func profileColumns(u *entity.User, req dto.UpdateUserRequest, vErr *apperror.ValidationError) map[string]interface{} {
	columns := map[string]interface{}{}

	if req.Username != nil {
		if msg := validator.ValidUsername(*req.Username); msg != "" {
			vErr.Add("username", msg)
		} else {
			u.Username = *req.Username
			columns["username"] = u.Username
		}
	}
	if req.Email != nil {
		email := NormalizeEmail(*req.Email)
		if email == "" {
			vErr.Add("email", "this field may not be blank")
		} else {
			u.Email = &email
			columns["email"] = email
		}
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
		columns["first_name"] = u.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
		columns["last_name"] = u.LastName
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
		columns["bio"] = u.Bio
	}
	return columns
}

// checkUnique adds field errors for a username or email held by a user other than self.
func (s *userService) checkUnique(ctx context.Context, self uuid.UUID, username, email string, vErr *apperror.ValidationError) error {
	if username != "" {
		other, err := s.repo.FindByUsername(ctx, username)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if other != nil && other.ID != self {
			vErr.Add("username", "a user with that username already exists")
		}
	}
	if email != "" {
		other, err := s.repo.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if other != nil && other.ID != self {
			vErr.Add("email", "a user with that email already exists")
		}
	}
	return nil
}

func (s *userService) findByUsername(ctx context.Context, username string) (*entity.User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func (s *userService) findByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.NewValidationError("username", "a user with that username or email already exists")
	}
	return fmt.Errorf("failed to save user: %w", err)
}
