// Package auth регистрирует пользователей и выдаёт токены доступа.
// При входе открывается сессия пользователя и проверяется срок действия тарифа.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/questgen/internal/lib/jwt"
	"github.com/magabrotheeeer/questgen/internal/lib/password"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/services/subscription"
	"github.com/magabrotheeeer/questgen/internal/session"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

var (
	// ErrInvalidCredentials - неизвестная почта или неверный пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken - почта уже зарегистрирована.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnauthorized - токен недействителен или пользователь удалён.
	ErrUnauthorized = errors.New("unauthorized")
)

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) error
	ResolveUser(ctx context.Context, ref models.UserRef) (models.User, error)
}

// ExpiryChecker проверяет срок действия тарифа при смене пользователя сессии.
type ExpiryChecker interface {
	CheckExpiry(ctx context.Context, user models.User) subscription.ExpiryStatus
}

// Sessions открывает сессии пользователей.
type Sessions interface {
	Open(user models.User) *session.Session
}

// Service отвечает за регистрацию, вход и проверку токенов.
type Service struct {
	users    UserRepository
	tokens   jwt.Maker
	expiry   ExpiryChecker
	sessions Sessions
	admins   map[string]struct{}
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service. Почты из adminEmails при регистрации получают роль администратора.
func New(users UserRepository, tokens jwt.Maker, expiry ExpiryChecker, sessions Sessions, adminEmails []string, log *slog.Logger) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		expiry:   expiry,
		sessions: sessions,
		admins:   admins,
		log:      log,
		now:      time.Now,
	}
}

// RegisterInput - данные для регистрации.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Mobile     string
	SchoolName string
}

// Register создаёт учителя на бесплатном тарифе.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	const op = "auth.Register"

	hash, err := password.GetHash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	email := strings.TrimSpace(in.Email)
	role := models.RoleTeacher
	if _, ok := s.admins[strings.ToLower(email)]; ok {
		role = models.RoleAdmin
	}
	user := models.User{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(in.Name),
		Email:            email,
		Mobile:           in.Mobile,
		SchoolName:       in.SchoolName,
		PasswordHash:     hash,
		Role:             role,
		SubscriptionPlan: models.PlanFree,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("op", op), slog.String("email", email), slog.String("role", string(role)))
	return user, nil
}

// LoginResult - результат входа.
type LoginResult struct {
	Token            string                    `json:"token"`
	User             models.User               `json:"user"`
	Usage            entitlement.Decision      `json:"usage"`
	Expiry           subscription.ExpiryStatus `json:"expiry"`
	UpgradeSuggested bool                      `json:"upgrade_suggested"`
}

// Login проверяет пароль, выпускает токен и открывает сессию пользователя.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (LoginResult, error) {
	const op = "auth.Login"
	log := s.log.With(slog.String("op", op), slog.String("email", email))

	user, err := s.users.ResolveUser(ctx, models.UserRef{Email: strings.TrimSpace(email)})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if user.PasswordHash == "" {
		return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		log.Info("wrong password", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.sessions.Open(user)
	status := s.expiry.CheckExpiry(ctx, user)

	log.Info("user logged in")
	return LoginResult{
		Token:            token,
		User:             user.Public(),
		Usage:            entitlement.CanGenerate(user, s.now()),
		Expiry:           status,
		UpgradeSuggested: UpgradeSuggested(user),
	}, nil
}

// UpgradeSuggested сообщает, что учитель исчерпал бесплатную генерацию.
func UpgradeSuggested(user models.User) bool {
	if user.IsAdmin() || user.SubscriptionPlan != models.PlanFree {
		return false
	}
	terms, _ := models.PlanFree.Terms()
	return user.PapersGenerated >= terms.PaperLimit
}

// Authenticate проверяет токен и возвращает актуальную запись пользователя.
func (s *Service) Authenticate(ctx context.Context, token string) (models.User, error) {
	const op = "auth.Authenticate"

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
	}
	user, err := s.users.ResolveUser(ctx, models.UserRef{ID: claims.UserID, Email: claims.Email})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
