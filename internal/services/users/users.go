package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/generics"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
)

// passwordChangeSkew backdates passwordChangedAt so the token issued with the
// change is not older than the change itself.
const passwordChangeSkew = time.Second

var sensitiveFields = []string{"passwordHash", "passwordChangedAt"}

type Store interface {
	AddUser(ctx context.Context, user mongodb.UserDb) (mongodb.UserDb, error)
	GetUserById(ctx context.Context, id string) (mongodb.UserDb, error)
	GetUserByEmail(ctx context.Context, email string) (mongodb.UserDb, error)
	GetUsers(ctx context.Context, spec query.Spec) ([]mongodb.UserDb, error)
	CountUsers(ctx context.Context, filter bson.M) (int64, error)
	UpdateUser(ctx context.Context, id string, fields bson.M) (int64, error)
	SetUserPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (int64, error)
	DeleteUser(ctx context.Context, id string) (int64, error)
}

type Service struct {
	store     Store
	secret    string
	expiresIn time.Duration
	now       func() time.Time
}

func NewService(store Store, secret string, expiresIn time.Duration) *Service {
	return &Service{store: store, secret: secret, expiresIn: expiresIn, now: time.Now}
}

// Signup creates a user with the "user" role and logs it in.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := generics.Validate(req); err != nil {
		return AuthResult{}, err
	}
	if !IsValidEmail(req.Email) {
		return AuthResult{}, ErrInvalidEmail
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return AuthResult{}, apperrors.InternalError(fmt.Errorf("hash password: %w", err))
	}

	created, err := s.store.AddUser(ctx, mongodb.UserDb{
		Name:         req.Name,
		Email:        req.Email,
		Role:         string(auth.RoleUser),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, mongodb.ErrDuplicateKey) {
			return AuthResult{}, apperrors.Wrap(ErrEmailTaken, err)
		}
		return AuthResult{}, apperrors.InternalError(fmt.Errorf("add user: %w", err))
	}

	logx.FromContext(ctx).Info().Str("user_id", created.Id).Msg("user signed up")

	return s.issue(created)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return AuthResult{}, ErrMissingCredentials
	}

	userDb, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return AuthResult{}, auth.ErrInvalidCredentials
		}
		return AuthResult{}, apperrors.InternalError(fmt.Errorf("get user by email: %w", err))
	}

	if err := auth.CheckPasswordHash(userDb.PasswordHash, req.Password); err != nil {
		return AuthResult{}, err
	}

	return s.issue(userDb)
}

func (s *Service) GetMe(principal mongodb.UserDb) User {
	return MapDbUserToApiUser(principal)
}

func (s *Service) UpdateMe(ctx context.Context, principal mongodb.UserDb, req UpdateMeRequest) (User, error) {
	if req.Password != nil {
		return User{}, ErrPasswordNotAllowed
	}
	if req.Role != nil {
		return User{}, ErrRoleNotAllowed
	}

	fields := bson.M{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
		fields["name"] = name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
		fields["email"] = email
	}
	if err := generics.Validate(req); err != nil {
		return User{}, err
	}
	if len(fields) == 0 {
		return User{}, ErrEmptyUpdate
	}

	affected, err := s.store.UpdateUser(ctx, principal.Id, fields)
	if err != nil {
		if errors.Is(err, mongodb.ErrDuplicateKey) {
			return User{}, apperrors.Wrap(ErrEmailTaken, err)
		}
		return User{}, apperrors.InternalError(fmt.Errorf("update user %s: %w", principal.Id, err))
	}
	if affected == 0 {
		return User{}, ErrUserNotFound
	}

	return s.GetUser(ctx, principal.Id)
}

func (s *Service) DeleteMe(ctx context.Context, principal mongodb.UserDb) error {
	affected, err := s.store.DeleteUser(ctx, principal.Id)
	if err != nil {
		return apperrors.InternalError(fmt.Errorf("delete user %s: %w", principal.Id, err))
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword checks the current password, stores the new one and issues a
// fresh token. Tokens issued before the change stop being accepted.
func (s *Service) UpdatePassword(ctx context.Context, principal mongodb.UserDb, req UpdatePasswordRequest) (AuthResult, error) {
	if err := generics.Validate(req); err != nil {
		return AuthResult{}, err
	}

	userDb, err := s.store.GetUserById(ctx, principal.Id)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, apperrors.InternalError(fmt.Errorf("get user %s: %w", principal.Id, err))
	}

	if err := auth.CheckPasswordHash(userDb.PasswordHash, req.PasswordCurrent); err != nil {
		return AuthResult{}, ErrWrongCurrentPassword
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return AuthResult{}, apperrors.InternalError(fmt.Errorf("hash password: %w", err))
	}

	changedAt := s.now().Add(-passwordChangeSkew)
	affected, err := s.store.SetUserPassword(ctx, userDb.Id, hash, changedAt)
	if err != nil {
		return AuthResult{}, apperrors.InternalError(fmt.Errorf("set password of user %s: %w", userDb.Id, err))
	}
	if affected == 0 {
		return AuthResult{}, ErrUserNotFound
	}

	userDb.PasswordHash = hash
	userDb.PasswordChangedAt = &changedAt

	logx.FromContext(ctx).Info().Str("user_id", userDb.Id).Msg("password changed")

	return s.issue(userDb)
}

func (s *Service) GetUser(ctx context.Context, userId string) (User, error) {
	userDb, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, apperrors.InternalError(fmt.Errorf("get user %s: %w", userId, err))
	}
	return MapDbUserToApiUser(userDb), nil
}

// ListUsers lists users with the usual query parameters. Password fields can
// be neither filtered, sorted nor projected on.
func (s *Service) ListUsers(ctx context.Context, params query.Params) (generics.Page[User], error) {
	for key, value := range params {
		if isSensitive(key) {
			return generics.Page[User]{}, ErrSensitiveFilter
		}
		if key == "sort" || key == "fields" {
			if list, ok := value.(string); ok && mentionsSensitive(list) {
				return generics.Page[User]{}, ErrSensitiveFilter
			}
		}
	}

	spec, err := query.New(params).Filter().Sort().LimitFields().Paginate(ctx, s.store.CountUsers)
	if err != nil {
		return generics.Page[User]{}, apperrors.Ensure(err)
	}

	usersDb, err := s.store.GetUsers(ctx, spec)
	if err != nil {
		return generics.Page[User]{}, apperrors.InternalError(fmt.Errorf("get users: %w", err))
	}

	return generics.NewPage(spec, generics.Map(usersDb, MapDbUserToApiUser)), nil
}

func (s *Service) issue(userDb mongodb.UserDb) (AuthResult, error) {
	token, err := auth.MakeJWT(userDb.Id, s.secret, s.expiresIn)
	if err != nil {
		return AuthResult{}, apperrors.InternalError(fmt.Errorf("sign token: %w", err))
	}

	return AuthResult{
		Token:     token,
		ExpiresAt: s.now().Add(s.expiresIn),
		User:      MapDbUserToApiUser(userDb),
	}, nil
}

func isSensitive(field string) bool {
	for _, sensitive := range sensitiveFields {
		if field == sensitive || strings.HasPrefix(field, sensitive+".") {
			return true
		}
	}
	return false
}

func mentionsSensitive(list string) bool {
	for _, item := range strings.Split(list, ",") {
		if isSensitive(strings.TrimPrefix(strings.TrimSpace(item), "-")) {
			return true
		}
	}
	return false
}
