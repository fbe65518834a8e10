package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tecnm-sys/apiserver/internal/auth"
	"github.com/tecnm-sys/apiserver/internal/logger"
	"github.com/tecnm-sys/apiserver/internal/metrics"
	"github.com/tecnm-sys/apiserver/internal/store"
	"github.com/tecnm-sys/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	EmailInUse(ctx context.Context, email string, excludeID int) (bool, error)
	UsernameInUse(ctx context.Context, username string, excludeID int) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, password string) error
	UpdateRole(ctx context.Context, email string, role types.Role) error
	UpdateProfile(ctx context.Context, id int, patch types.ProfilePatch) (types.User, error)
}

// RegisterInput is the data accepted by Register.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	Phone       string
	Institution string
	Username    string
}

// FullProfileInput combines an optional password change with a profile patch.
type FullProfileInput struct {
	Patch           types.ProfilePatch
	CurrentPassword string
	NewPassword     string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string
	User  types.User
}

// UserService encapsulates account and authentication use-cases.
type UserService struct {
	repo    UserRepository
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	metrics *metrics.Metrics
	events  *eventEmitter
	avatars ObjectStore
}

// UserOption customises a UserService.
type UserOption func(*UserService)

// WithMetrics records auth outcomes on m.
func WithMetrics(m *metrics.Metrics) UserOption {
	return func(s *UserService) {
		s.metrics = m
	}
}

// WithEvents publishes auth events to channel.
func WithEvents(publisher EventPublisher, channel string) UserOption {
	return func(s *UserService) {
		if publisher == nil {
			return
		}
		s.events = &eventEmitter{publisher: publisher, channel: channel, now: time.Now}
	}
}

// WithAvatarStorage keeps avatar images in object storage instead of inline.
func WithAvatarStorage(store ObjectStore) UserOption {
	return func(s *UserService) {
		s.avatars = store
	}
}

func NewUserService(repo UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService, opts ...UserOption) *UserService {
	s := &UserService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with role "user" and returns a token for it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Password == "" || in.FullName == "" {
		s.metrics.Registration(metrics.OutcomeInvalid)
		return AuthResult{}, newError(ErrValidation, msgRegisterRequired)
	}
	if err := validatePassword(in.Password, msgPasswordTooShort); err != nil {
		s.metrics.Registration(metrics.OutcomeInvalid)
		return AuthResult{}, err
	}

	taken, err := s.repo.EmailInUse(ctx, in.Email, 0)
	if err != nil {
		s.metrics.Registration(metrics.OutcomeError)
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		s.metrics.Registration(metrics.OutcomeConflict)
		return AuthResult{}, newError(ErrConflict, msgEmailRegistered)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		s.metrics.Registration(metrics.OutcomeInvalid)
		return AuthResult{}, err
	}

	username := in.Username
	if username == "" {
		username, _, _ = strings.Cut(in.Email, "@")
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:    username,
		Email:       in.Email,
		Password:    hash,
		Role:        types.RoleUser,
		FullName:    in.FullName,
		Phone:       strings.TrimSpace(in.Phone),
		Institution: strings.TrimSpace(in.Institution),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.metrics.Registration(metrics.OutcomeConflict)
			return AuthResult{}, newError(ErrConflict, msgEmailRegistered)
		}
		s.metrics.Registration(metrics.OutcomeError)
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(auth.ClaimsForUser(user))
	if err != nil {
		s.metrics.Registration(metrics.OutcomeError)
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.Registration(metrics.OutcomeSuccess)
	s.events.emit(ctx, EventUserRegistered, user)
	return AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and returns a token. A legacy plaintext
// password is replaced by a hash before the token is issued.
func (s *UserService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.Login(metrics.OutcomeInvalid)
		return AuthResult{}, newError(ErrValidation, msgLoginRequired)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Login(metrics.OutcomeInvalidCredentials)
			return AuthResult{}, newError(ErrUnauthenticated, msgInvalidCredentials)
		}
		s.metrics.Login(metrics.OutcomeError)
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		s.metrics.Login(metrics.OutcomeInactive)
		return AuthResult{}, newError(ErrUnauthenticated, msgInvalidCredentials)
	}

	verification := s.hasher.Verify(password, user.Password)
	if !verification.Valid {
		s.metrics.Login(metrics.OutcomeInvalidCredentials)
		return AuthResult{}, newError(ErrUnauthenticated, msgInvalidCredentials)
	}

	if verification.NeedsRehash {
		if err := s.rehash(ctx, user, password); err != nil {
			s.metrics.Login(metrics.OutcomeError)
			return AuthResult{}, err
		}
	}

	token, err := s.tokens.Issue(auth.ClaimsForUser(user))
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	s.events.emit(ctx, EventUserLogin, user)
	return AuthResult{Token: token, User: user}, nil
}

func (s *UserService) rehash(ctx context.Context, user types.User, password string) error {
	hash, err := s.hasher.Rehash(password)
	if err != nil {
		return fmt.Errorf("rehash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("persist rehashed password: %w", err)
	}

	logger.FromContext(ctx).Info().Int("user_id", user.ID).Msg("legacy password migrated to bcrypt")
	s.metrics.LegacyMigration()
	s.events.emit(ctx, EventUserPasswordMigrate, user)
	return nil
}

// Profile returns user id.
func (s *UserService) Profile(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, newError(ErrNotFound, msgUserNotFound)
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateProfile applies patch to user id.
func (s *UserService) UpdateProfile(ctx context.Context, id int, patch types.ProfilePatch) (types.User, error) {
	patch = normalizePatch(patch)
	if patch.Empty() {
		return types.User{}, newError(ErrValidation, msgNothingToUpdate)
	}
	current, err := s.Profile(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := s.checkPatch(ctx, id, patch); err != nil {
		return types.User{}, err
	}
	return s.applyPatch(ctx, current, patch)
}

// ChangePassword replaces the password of user id after verifying current.
func (s *UserService) ChangePassword(ctx context.Context, id int, current, next string) error {
	if current == "" || next == "" {
		return newError(ErrValidation, msgPasswordsRequired)
	}
	user, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkPasswordChange(user, current, next); err != nil {
		return err
	}
	return s.storePassword(ctx, user, next)
}

// UpdateFullProfile changes the password when NewPassword is set and then
// applies the profile patch. Every check runs before anything is written.
func (s *UserService) UpdateFullProfile(ctx context.Context, id int, in FullProfileInput) (types.User, error) {
	patch := normalizePatch(in.Patch)
	changePassword := in.NewPassword != ""
	if patch.Empty() && !changePassword {
		return types.User{}, newError(ErrValidation, msgNothingToUpdate)
	}

	user, err := s.Profile(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if changePassword {
		if in.CurrentPassword == "" {
			return types.User{}, newError(ErrValidation, msgPasswordsRequired)
		}
		if err := s.checkPasswordChange(user, in.CurrentPassword, in.NewPassword); err != nil {
			return types.User{}, err
		}
	}
	if !patch.Empty() {
		if err := s.checkPatch(ctx, id, patch); err != nil {
			return types.User{}, err
		}
	}

	if changePassword {
		if err := s.storePassword(ctx, user, in.NewPassword); err != nil {
			return types.User{}, err
		}
	}
	if patch.Empty() {
		return s.Profile(ctx, id)
	}
	return s.applyPatch(ctx, user, patch)
}

// UpdateAvatar replaces the avatar of user id.
func (s *UserService) UpdateAvatar(ctx context.Context, id int, avatar string) (types.User, error) {
	if strings.TrimSpace(avatar) == "" {
		return types.User{}, newError(ErrValidation, msgAvatarRequired)
	}
	return s.UpdateProfile(ctx, id, types.ProfilePatch{Avatar: &avatar})
}

// SetRole assigns role to the user owning email.
func (s *UserService) SetRole(ctx context.Context, email string, role types.Role) error {
	if !role.Valid() {
		return newError(ErrValidation, fmt.Sprintf("Rol inválido: %s", role))
	}
	if err := s.repo.UpdateRole(ctx, normalizeEmail(email), role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, msgUserNotFound)
		}
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

func (s *UserService) checkPasswordChange(user types.User, current, next string) error {
	if !s.hasher.Verify(current, user.Password).Valid {
		return newError(ErrUnauthenticated, msgCurrentPasswordWrong)
	}
	return validatePassword(next, msgNewPasswordTooShort)
}

func (s *UserService) storePassword(ctx context.Context, user types.User, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, msgUserNotFound)
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.events.emit(ctx, EventUserPasswordChanged, user)
	return nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", newError(ErrValidation, msgPasswordTooLong)
		}
		return "", err
	}
	return hash, nil
}

// checkPatch validates patch against other users without writing.
func (s *UserService) checkPatch(ctx context.Context, id int, patch types.ProfilePatch) error {
	if patch.Email != nil {
		if *patch.Email == "" {
			return newError(ErrValidation, msgEmailEmpty)
		}
		taken, err := s.repo.EmailInUse(ctx, *patch.Email, id)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return newError(ErrConflict, msgEmailInUse)
		}
	}
	if patch.Username != nil {
		if *patch.Username == "" {
			return newError(ErrValidation, msgUsernameEmpty)
		}
		taken, err := s.repo.UsernameInUse(ctx, *patch.Username, id)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return newError(ErrConflict, msgUsernameInUse)
		}
	}
	if patch.Avatar != nil {
		if *patch.Avatar == "" {
			return newError(ErrValidation, msgAvatarRequired)
		}
		if len(*patch.Avatar) > MaxAvatarBytes {
			return newError(ErrValidation, msgAvatarTooLarge)
		}
	}
	return nil
}

func (s *UserService) applyPatch(ctx context.Context, current types.User, patch types.ProfilePatch) (types.User, error) {
	if patch.Avatar != nil {
		ref, err := s.prepareAvatar(ctx, current.ID, *patch.Avatar)
		if err != nil {
			return types.User{}, err
		}
		patch.Avatar = &ref
	}

	updated, err := s.repo.UpdateProfile(ctx, current.ID, patch)
	if err != nil {
		s.discardAvatar(ctx, patch.Avatar)
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.User{}, newError(ErrConflict, msgEmailInUse)
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, newError(ErrNotFound, msgUserNotFound)
		}
		return types.User{}, fmt.Errorf("update profile: %w", err)
	}

	if patch.Avatar != nil && current.Avatar != nil && *current.Avatar != *patch.Avatar {
		s.discardAvatar(ctx, current.Avatar)
	}
	s.events.emit(ctx, EventUserProfileUpdated, updated)
	return updated, nil
}

// normalizePatch trims the text fields of patch. The avatar is kept verbatim.
func normalizePatch(patch types.ProfilePatch) types.ProfilePatch {
	trim := func(value *string) *string {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		return &trimmed
	}
	patch.Username = trim(patch.Username)
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
	}
	patch.FullName = trim(patch.FullName)
	patch.Phone = trim(patch.Phone)
	patch.Institution = trim(patch.Institution)
	return patch
}

// normalizeEmail lowercases email. Emails are unique regardless of case.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password, tooShortMessage string) error {
	if err := auth.ValidateNewPassword(password); err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return newError(ErrValidation, tooShortMessage)
		}
		return newError(ErrValidation, err.Error())
	}
	return nil
}
