package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"

	"github.com/parleyhq/parley/internal/credentials"
	"github.com/parleyhq/parley/internal/privilege"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/shared"
)

// Mailer enqueues outbound account mail. Delivery itself happens in the
// background worker.
type Mailer interface {
	EnqueueResetEmail(ctx context.Context, email, locale string) error
}

// Service wraps account business rules: registration with the credential
// security gate, authentication, and password lifecycle.
type Service struct {
	repo     Repository
	sessions *session.Store
	mailer   Mailer
	policy   credentials.Policy
	csrf     *shared.CSRFManager
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, sessions *session.Store, mailer Mailer, policy credentials.Policy, csrf *shared.CSRFManager, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		mailer:   mailer,
		policy:   policy,
		csrf:     csrf,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterInput is the registration form as submitted.
type RegisterInput struct {
	Username        string `validate:"required,min=4,max=64"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// Register creates a pending account after the full credential security
// gate: form validation (all fields reported together), policy
// compliance, commonality, and duplicate detection. Nothing is persisted
// unless every check passes.
func (s *Service) Register(ctx context.Context, input RegisterInput) (int64, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if fields := s.validateInput(input); fields.Any() {
		return 0, fields
	}

	if verdict := credentials.IsCompliant(input.Password, s.policy); !verdict.OK {
		return 0, fmt.Errorf("%s: %w", verdict.Reason, shared.ErrPolicyRejected)
	}
	if verdict := credentials.CredentialsAreCommon(input.Username, input.Email, input.Password); !verdict.OK {
		return 0, fmt.Errorf("%s: %w", verdict.Reason, shared.ErrPolicyRejected)
	}

	existing, err := s.repo.FindByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return 0, err
	}
	if credentials.UsernameOrEmailExists(input.Username, input.Email, existing) {
		return 0, shared.ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("account: hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, &User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         privilege.RoleLecturer,
		Status:       StatusPending,
		Locale:       "en",
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", id), slog.String("username", input.Username))
	return id, nil
}

// Authenticate validates email/password credentials. Every failure mode
// collapses into the same error so callers cannot probe which part was
// wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and promotes a fresh session for the user. The
// previous session, if any, is destroyed first so a pre-login token
// cannot be fixated onto the authenticated user.
func (s *Service) Login(ctx context.Context, email, password, priorToken, ip, agent string) (*User, *session.Record, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	if priorToken != "" {
		if err := s.sessions.Destroy(ctx, priorToken); err != nil {
			s.logger.Warn("destroy prior session", slog.Any("error", err))
		}
	}

	rec, err := s.sessions.Create(ctx, ip, agent)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessions.AuthorizeUser(ctx, rec.ID, user.ID, NormalizeLocale(user.Locale)); err != nil {
		return nil, nil, err
	}

	rec, err = s.sessions.Get(ctx, rec.ID)
	if err != nil {
		return nil, nil, err
	}

	// Cookie-borne sessions need a CSRF token for mutating requests.
	if s.csrf != nil {
		if _, err := s.csrf.EnsureToken(ctx, rec); err == nil {
			if err := s.sessions.Commit(ctx, rec); err != nil {
				return nil, nil, err
			}
		}
	}
	return user, rec, nil
}

// Logout destroys the session. Idempotent: a missing token is fine.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// RequestPasswordReset queues a reset email when the address is known.
// The caller always receives success so the endpoint cannot be used to
// enumerate accounts; misses are only logged.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Info("password reset for unknown email")
			return nil
		}
		return err
	}
	return s.mailer.EnqueueResetEmail(ctx, user.Email, NormalizeLocale(user.Locale))
}

// ChangePassword re-runs the credential security gate against the new
// password before re-hashing. Reusing the current password is refused.
func (s *Service) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if verdict := credentials.IsCompliant(newPassword, s.policy); !verdict.OK {
		return fmt.Errorf("%s: %w", verdict.Reason, shared.ErrPolicyRejected)
	}
	if verdict := credentials.CredentialsAreCommon(user.Username, user.Email, newPassword); !verdict.OK {
		return fmt.Errorf("%s: %w", verdict.Reason, shared.ErrPolicyRejected)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return fmt.Errorf("new password must differ from the current one: %w", shared.ErrPolicyRejected)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.Int64("user_id", userID))
	return nil
}

func (s *Service) validateInput(input RegisterInput) shared.ValidationErrors {
	fields := make(shared.ValidationErrors)
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldName(fieldErr.Field())] = validationMessage(fieldErr)
			}
		} else {
			fields["form"] = "invalid submission"
		}
	}
	return fields
}

func fieldName(structField string) string {
	switch structField {
	case "Username":
		return "username"
	case "Email":
		return "email"
	case "Password":
		return "password"
	case "ConfirmPassword":
		return "confirm_password"
	}
	return strings.ToLower(structField)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "is too short"
	case "max":
		return "is too long"
	case "eqfield":
		return "does not match the password"
	}
	return "is invalid"
}

// NormalizeLocale canonicalises a locale tag, defaulting to English when
// the tag is missing or unparseable.
func NormalizeLocale(locale string) string {
	if locale == "" {
		return "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}
