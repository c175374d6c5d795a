package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elonr01/survey-server/internal/repository"
	"github.com/elonr01/survey-server/internal/repository/models"
)

const (
	// BootstrapAdmin always signs in as Master with unlimited credits.
	BootstrapAdmin   = "admin"
	unlimitedCredits = 999999
	defaultCredits   = 500
	defaultTokenTTL  = 12 * time.Hour
	tokenIssuer      = "survey-server"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type claims struct {
	Role            models.Role `json:"role"`
	Credits         int         `json:"credits"`
	LinkedCompanyID string      `json:"linked_company_id,omitempty"`
	jwt.RegisteredClaims
}

// AccountOptions configures AccountService.
type AccountOptions struct {
	Secret   []byte
	TokenTTL time.Duration
	Hasher   PasswordHasher
}

// AccountService signs administrators in and manages their accounts and the
// platform settings.
type AccountService struct {
	users    UserStore
	settings SettingsStore
	secret   []byte
	ttl      time.Duration
	hasher   PasswordHasher
	logger   *zap.Logger
	now      func() time.Time
}

func NewAccountService(users UserStore, settings SettingsStore, opts AccountOptions, logger *zap.Logger) *AccountService {
	if users == nil || settings == nil {
		panic("storage must not be nil")
	}
	if len(opts.Secret) == 0 {
		panic("token secret must not be empty")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.Hasher == nil {
		opts.Hasher = BcryptHasher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		users:    users,
		settings: settings,
		secret:   opts.Secret,
		ttl:      opts.TokenTTL,
		hasher:   opts.Hasher,
		logger:   logger.Named("account"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func principalOf(u models.AdminUser) Principal {
	p := Principal{
		Username:        u.Username,
		Role:            u.Role,
		Credits:         u.Credits,
		LinkedCompanyID: u.LinkedCompanyID,
	}
	if u.Username == BootstrapAdmin {
		p.Role = models.RoleMaster
		p.Credits = unlimitedCredits
	}
	return p
}

// Login checks the credentials and returns a signed token.
func (s *AccountService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	username = strings.TrimSpace(username)
	u, err := s.users.GetUser(dbCtx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, storageErr(err)
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", zap.String("username", username))
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now()
	if u.ValidUntil != nil && dateOf(now).After(dateOf(*u.ValidUntil)) {
		return LoginResult{}, ErrAccessExpired
	}

	p := principalOf(u)
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role:            p.Role,
		Credits:         p.Credits,
		LinkedCompanyID: p.LinkedCompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("login", zap.String("username", p.Username), zap.String("role", string(p.Role)))
	return LoginResult{Token: signed, ExpiresAt: expires, Principal: p}, nil
}

// ParseToken verifies a token issued by Login.
func (s *AccountService) ParseToken(raw string) (Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Principal{
		Username:        c.Subject,
		Role:            c.Role,
		Credits:         c.Credits,
		LinkedCompanyID: c.LinkedCompanyID,
	}, nil
}

// EnsureBootstrapAdmin creates the admin account when it does not exist yet.
func (s *AccountService) EnsureBootstrapAdmin(ctx context.Context, password string) error {
	if password == "" {
		return nil
	}
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.users.GetUser(dbCtx, BootstrapAdmin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return storageErr(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := s.users.SaveUser(dbCtx, models.AdminUser{
		Username:     BootstrapAdmin,
		PasswordHash: hash,
		Role:         models.RoleMaster,
		Credits:      unlimitedCredits,
	}); err != nil {
		return storageErr(err)
	}
	s.logger.Info("bootstrap admin created")
	return nil
}

func (s *AccountService) ListUsers(ctx context.Context, p Principal) ([]models.AdminUser, error) {
	if !p.IsMaster() {
		return nil, ErrForbidden
	}
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	users, err := s.users.ListUsers(dbCtx)
	if err != nil {
		return nil, storageErr(err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *AccountService) CreateUser(ctx context.Context, p Principal, in UserInput) (models.AdminUser, error) {
	if !p.IsMaster() {
		return models.AdminUser{}, ErrForbidden
	}
	if err := validateRequest(in); err != nil {
		return models.AdminUser{}, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	username := strings.TrimSpace(in.Username)
	if _, err := s.users.GetUser(dbCtx, username); err == nil {
		return models.AdminUser{}, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return models.AdminUser{}, storageErr(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.AdminUser{}, fmt.Errorf("hash password: %w", err)
	}

	u := models.AdminUser{
		Username:        username,
		PasswordHash:    hash,
		Role:            in.Role,
		Credits:         defaultCredits,
		LinkedCompanyID: in.LinkedCompanyID,
	}
	if in.Role == models.RoleMaster {
		u.Credits = unlimitedCredits
	}
	if in.ValidUntil != nil {
		v := dateOf(*in.ValidUntil)
		u.ValidUntil = &v
	}

	if err := s.users.SaveUser(dbCtx, u); err != nil {
		return models.AdminUser{}, storageErr(err)
	}
	s.logger.Info("user created", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *AccountService) DeleteUser(ctx context.Context, p Principal, username string) error {
	if !p.IsMaster() {
		return ErrForbidden
	}
	if username == p.Username || username == BootstrapAdmin {
		return fmt.Errorf("%w: cannot delete %q", ErrForbidden, username)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := s.users.DeleteUser(dbCtx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return storageErr(err)
	}
	s.logger.Info("user deleted", zap.String("username", username))
	return nil
}

func (s *AccountService) Settings(ctx context.Context) (models.PlatformSettings, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	settings, err := s.settings.GetSettings(dbCtx)
	if err != nil {
		return models.PlatformSettings{}, storageErr(err)
	}
	return settings, nil
}

func (s *AccountService) UpdateSettings(ctx context.Context, p Principal, in SettingsInput) (models.PlatformSettings, error) {
	if !p.IsMaster() {
		return models.PlatformSettings{}, ErrForbidden
	}
	if err := validateRequest(in); err != nil {
		return models.PlatformSettings{}, err
	}

	settings := models.PlatformSettings{
		Name:        strings.TrimSpace(in.Name),
		Consultancy: strings.TrimSpace(in.Consultancy),
		BaseURL:     strings.TrimRight(strings.TrimSpace(in.BaseURL), "/"),
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	if err := s.settings.SaveSettings(dbCtx, settings); err != nil {
		return models.PlatformSettings{}, storageErr(err)
	}
	return settings, nil
}
