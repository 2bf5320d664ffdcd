package app

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"ncapportal/internal/util"
	"ncapportal/pkg/auth"
	"ncapportal/pkg/domain"
	"ncapportal/pkg/storage"
	"ncapportal/services/portal/internal/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	JWTSecret      string
	SessionTTL     time.Duration
	AdminEmails    []string
	PresignTTL     time.Duration
	MaxUploadBytes int64

	Store    store.Store
	Sessions store.SessionStore
	Objects  storage.ObjectStore

	// Rand seeds the analysis stub; tests inject a fixed source.
	Rand *rand.Rand
	// Now overrides the clock; tests inject a fixed time.
	Now func() time.Time
}

// App is the core application service wiring storage, sessions, object
// storage, and the lifecycle rules together.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	objects        storage.ObjectStore
	adminEmails    map[string]struct{}
	presignTTL     time.Duration
	maxUploadBytes int64
	analyzer       *analyzer
	now            func() time.Time
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch {
		case strings.TrimSpace(cfg.JWTSecret) != "":
			sessionStore = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
		case strings.TrimSpace(cfg.RedisAddr) != "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("jwtSecret or redisAddr required for session strategy")
		}
	}

	adminEmails := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		email = strings.TrimSpace(strings.ToLower(email))
		if email != "" {
			adminEmails[email] = struct{}{}
		}
	}

	return &App{
		store:          dataStore,
		sessions:       sessionStore,
		objects:        cfg.Objects,
		adminEmails:    adminEmails,
		presignTTL:     cfg.PresignTTL,
		maxUploadBytes: cfg.MaxUploadBytes,
		analyzer:       newAnalyzer(cfg.Rand),
		now:            cfg.Now,
	}, nil
}

// SignUp registers a new user and issues a session token. Accounts on the
// admin allow-list are created with role admin; the role is persisted and
// resolved server-side on every request.
func (a *App) SignUp(name, email, password string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", fmt.Errorf("%w: email already registered", ErrValidation)
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	role := domain.RoleCitizen
	if _, ok := a.adminEmails[email]; ok {
		role = domain.RoleAdmin
	}
	now := a.now()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout invalidates a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}
