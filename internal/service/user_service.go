package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/circles/internal/auth"
	"github.com/mmynk/circles/internal/directory"
	"github.com/mmynk/circles/internal/metrics"
	"github.com/mmynk/circles/internal/models"
	"github.com/mmynk/circles/internal/session"
)

const (
	// UsersCollection is the directory collection holding user accounts.
	UsersCollection = "users"

	fieldEmail = "email"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FullName string
	Email    string
	Phone    string
	Address  string
	Age      int
	Password string

	// ConfirmPassword is checked against Password when non-empty.
	ConfirmPassword string
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged. Email is the account key and cannot be edited.
type ProfileUpdate struct {
	FullName *string
	Phone    *string
	Address  *string
	Age      *int
	Image    *string
}

// UserService registers users, checks credentials and edits profiles.
// Successful calls populate the caller's session.
type UserService struct {
	store  directory.Store
	hasher auth.CredentialHasher
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(store directory.Store, hasher auth.CredentialHasher, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		hasher: hasher,
		logger: logger,
	}
}

// Init installs the unique email index.
func (s *UserService) Init(ctx context.Context) error {
	if err := s.store.EnsureUnique(ctx, UsersCollection, fieldEmail); err != nil {
		return fmt.Errorf("failed to index user emails: %w", err)
	}
	return nil
}

// Register creates a new account and signs sess in as the new user.
func (s *UserService) Register(ctx context.Context, sess *session.Context, in RegisterInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	email := NormalizeEmail(in.Email)

	if err := validateRegistration(in, email); err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}

	s.logger.Info("Register request", "email", email)

	existing, err := s.findByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		metrics.AuthAttempts.WithLabelValues("register", "duplicate").Inc()
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	user := &models.User{
		FullName:     in.FullName,
		Email:        email,
		Phone:        in.Phone,
		Address:      in.Address,
		Age:          in.Age,
		PasswordHash: hash,
		Image:        models.DefaultImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := s.store.Insert(ctx, UsersCollection, user)
	if err != nil {
		// Another registration for the same email won the race.
		if errors.Is(err, directory.ErrDuplicate) {
			metrics.AuthAttempts.WithLabelValues("register", "duplicate").Inc()
			return nil, ErrDuplicateEmail
		}
		s.logger.Error("Registration failed", "email", email, "error", err)
		metrics.AuthAttempts.WithLabelValues("register", "error").Inc()
		return nil, persistence("create user", err)
	}
	user.ID = id

	sess.Set(user.Profile())
	metrics.AuthAttempts.WithLabelValues("register", "ok").Inc()
	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)

	return user, nil
}

func validateRegistration(in RegisterInput, email string) error {
	if err := required("full_name", in.FullName); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePhone(in.Phone); err != nil {
		return err
	}
	if err := required("address", in.Address); err != nil {
		return err
	}
	if err := validateAge(in.Age); err != nil {
		return err
	}
	if in.Password == "" {
		return invalid("password", "required")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return invalid("password", fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength))
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		return invalid("confirm_password", "passwords do not match")
	}
	return nil
}

// Authenticate checks the email and password and signs sess in on success.
func (s *UserService) Authenticate(ctx context.Context, sess *session.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "invalid").Inc()
		return nil, err
	}
	if password == "" {
		metrics.AuthAttempts.WithLabelValues("login", "invalid").Inc()
		return nil, invalid("password", "required")
	}

	user, err := s.findByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("Login failed", "email", email, "reason", "unknown email")
		metrics.AuthAttempts.WithLabelValues("login", "denied").Inc()
		return nil, ErrAuthentication
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.logger.Warn("Login failed", "email", email, "reason", "wrong password")
		metrics.AuthAttempts.WithLabelValues("login", "denied").Inc()
		return nil, ErrAuthentication
	}

	sess.Set(user.Profile())
	metrics.AuthAttempts.WithLabelValues("login", "ok").Inc()
	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)

	return user, nil
}

// GetProfile returns the account registered under email.
func (s *UserService) GetProfile(ctx context.Context, email string) (*models.User, error) {
	return s.findByEmail(ctx, NormalizeEmail(email))
}

// UpdateProfile edits the signed-in user's own profile and refreshes sess.
func (s *UserService) UpdateProfile(ctx context.Context, sess *session.Context, upd ProfileUpdate) (*models.User, error) {
	current, ok := sess.Get()
	if !ok {
		return nil, ErrAuthentication
	}

	user, err := s.findByEmail(ctx, current.Email)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if err := required("full_name", name); err != nil {
			return nil, err
		}
		user.FullName = name
		fields["full_name"] = name
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		if err := validatePhone(phone); err != nil {
			return nil, err
		}
		user.Phone = phone
		fields["phone"] = phone
	}
	if upd.Address != nil {
		address := strings.TrimSpace(*upd.Address)
		if err := required("address", address); err != nil {
			return nil, err
		}
		user.Address = address
		fields["address"] = address
	}
	if upd.Age != nil {
		if err := validateAge(*upd.Age); err != nil {
			return nil, err
		}
		user.Age = *upd.Age
		fields["age"] = *upd.Age
	}
	if upd.Image != nil {
		image := strings.TrimSpace(*upd.Image)
		if image == "" {
			image = models.DefaultImage
		}
		user.Image = image
		fields["image"] = image
	}
	if len(fields) == 0 {
		return user, nil
	}

	user.UpdatedAt = time.Now().Unix()
	fields["updated_at"] = user.UpdatedAt

	if err := s.store.Update(ctx, UsersCollection, user.ID, fields); err != nil {
		s.logger.Error("Profile update failed", "user_id", user.ID, "error", err)
		return nil, persistence("update profile", err)
	}

	sess.Set(user.Profile())
	s.logger.Info("Profile updated", "user_id", user.ID, "fields", len(fields)-1)

	return user, nil
}

// Logout clears the session.
func (s *UserService) Logout(sess *session.Context) {
	if p, ok := sess.Get(); ok {
		s.logger.Info("User logged out", "email", p.Email)
	}
	sess.Clear()
}

func (s *UserService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	records, err := s.store.QueryEquals(ctx, UsersCollection, fieldEmail, email)
	if err != nil {
		s.logger.Error("User lookup failed", "email", email, "error", err)
		return nil, persistence("find user", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}

	var user models.User
	if err := records[0].Decode(&user); err != nil {
		return nil, persistence("decode user", err)
	}
	user.ID = records[0].ID
	return &user, nil
}
