package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"shopdesk/backend/internal/cache"
	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/mail"
	"shopdesk/backend/internal/service"
	"shopdesk/backend/internal/store"
	"shopdesk/backend/internal/xid"
)

// ErrUnauthorized marks credential failures; handlers answer 401.
var ErrUnauthorized = errors.New("unauthorized")

const otpSentMessage = "If the email exists, an OTP has been sent"

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	otps      cache.OTPStore
	mailer    mail.Sender
	log       logrus.FieldLogger
	validate  *validator.Validate
	now       func() time.Time
	users     map[string]credential
}

type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type credential struct {
	username string
	password string
	email    string
	role     string
}

type shopClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

type AuthOptions struct {
	Secret   string
	TokenTTL time.Duration
	OTPs     cache.OTPStore
	Mailer   mail.Sender
	Logger   logrus.FieldLogger
}

func NewAuthManager(userStore UserStore, opts AuthOptions) *AuthManager {
	if opts.Secret == "" {
		opts.Secret = "dev-change-me"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 8 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.OTPs == nil {
		opts.OTPs = cache.NewMemoryOTPStore()
	}
	if opts.Mailer == nil {
		opts.Mailer = mail.LogSender{Log: opts.Logger}
	}

	manager := &AuthManager{
		secret:    []byte(opts.Secret),
		tokenTTL:  opts.TokenTTL,
		userStore: userStore,
		otps:      opts.OTPs,
		mailer:    opts.Mailer,
		log:       opts.Logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		users:     make(map[string]credential),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	manager.bootstrapUsers(ctx)
	return manager
}

func authFailure(message string) error {
	return &service.Error{Kind: ErrUnauthorized, Message: message}
}

func badRequest(message string) error {
	return &service.Error{Kind: store.ErrInvalid, Message: message}
}

// check maps a validation failure to minMessage when only a length rule
// failed, and to requiredMessage otherwise.
func (a *AuthManager) check(req any, requiredMessage, minMessage string) error {
	err := a.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() != "min" {
				return badRequest(requiredMessage)
			}
		}
		if minMessage != "" {
			return badRequest(minMessage)
		}
	}
	return badRequest(requiredMessage)
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := a.check(req, "Username and password are required", ""); err != nil {
		return domain.LoginResponse{}, err
	}
	if err := a.bootstrapUsers(ctx); err != nil {
		return domain.LoginResponse{}, err
	}

	cred, ok := a.lookup(req.Username)
	if !ok || !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, authFailure("Invalid username or password")
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(cred.username, cred.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		Success:   true,
		Message:   "Login successful",
		User:      domain.UserInfo{Username: cred.username, Role: cred.role},
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	if err := a.check(req, "Username, current password, and new password are required", "New password must be at least 6 characters long"); err != nil {
		return err
	}
	if err := a.bootstrapUsers(ctx); err != nil {
		return err
	}

	cred, ok := a.lookup(req.Username)
	if !ok || !verifyPassword(cred.password, req.CurrentPassword) {
		return authFailure("Current password is incorrect")
	}
	return a.setPassword(ctx, cred.username, req.NewPassword)
}

// SendOTP answers the same way whether or not the email belongs to a user.
// Delivery failures are logged, not reported.
func (a *AuthManager) SendOTP(ctx context.Context, req domain.SendOTPRequest) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := a.check(req, "Email is required", ""); err != nil {
		return "", err
	}
	if err := a.bootstrapUsers(ctx); err != nil {
		return "", err
	}
	if _, ok := a.lookupEmail(req.Email); !ok {
		a.log.WithField("email", req.Email).Info("password reset requested for unknown email")
		return otpSentMessage, nil
	}

	code, err := xid.OTP()
	if err != nil {
		return "", err
	}
	if err := a.otps.Save(ctx, req.Email, code, cache.OTPTTL); err != nil {
		return "", err
	}
	if err := a.mailer.SendOTP(ctx, req.Email, code); err != nil {
		a.log.WithError(err).WithField("email", req.Email).Error("failed to deliver password reset code")
	}
	return otpSentMessage, nil
}

func (a *AuthManager) ResetPassword(ctx context.Context, req domain.VerifyOTPRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if err := a.check(req, "Email, OTP, and new password are required", "New password must be at least 6 characters long"); err != nil {
		return err
	}

	if err := a.otps.Verify(ctx, req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, cache.ErrOTPNotFound), errors.Is(err, cache.ErrOTPExpired),
			errors.Is(err, cache.ErrOTPTooManyAttempts), errors.Is(err, cache.ErrOTPInvalid):
			return badRequest(err.Error())
		default:
			return err
		}
	}

	if err := a.bootstrapUsers(ctx); err != nil {
		return err
	}
	cred, ok := a.lookupEmail(req.Email)
	if !ok {
		return &service.Error{Kind: store.ErrNotFound, Message: "User not found"}
	}
	if err := a.setPassword(ctx, cred.username, req.NewPassword); err != nil {
		return err
	}
	return a.otps.Remove(ctx, req.Email)
}

func (a *AuthManager) setPassword(ctx context.Context, username, password string) error {
	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := a.userStore.UpdateUserPassword(ctx, username, hashed); err != nil {
		return err
	}
	a.mu.Lock()
	if cred, ok := a.users[userKey(username)]; ok {
		cred.password = hashed
		a.users[userKey(username)] = cred
	}
	a.mu.Unlock()
	return nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &shopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer("shopdesk"))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "shopdesk",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func userKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (a *AuthManager) lookup(username string) (credential, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cred, ok := a.users[userKey(username)]
	return cred, ok
}

func (a *AuthManager) lookupEmail(email string) (credential, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, cred := range a.users {
		if cred.email != "" && strings.EqualFold(cred.email, email) {
			return cred, true
		}
	}
	return credential{}, false
}

// bootstrapUsers reloads the credential cache from the user store so edits
// made directly in the workbook are picked up. Legacy plain-text passwords
// are upgraded to bcrypt hashes in the store.
func (a *AuthManager) bootstrapUsers(ctx context.Context) error {
	if a.userStore == nil {
		return nil
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		a.log.WithError(err).Error("failed to load users")
		return err
	}

	loaded := make(map[string]credential, len(users))
	for _, user := range users {
		key := userKey(user.Username)
		if key == "" {
			continue
		}
		password := user.Password
		if password != "" && !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				if err := a.userStore.UpdateUserPassword(ctx, user.Username, hashed); err != nil {
					a.log.WithError(err).WithField("username", user.Username).Warn("failed to upgrade plain-text password")
				}
			}
		}
		role := user.Role
		if role == "" {
			role = "admin"
		}
		loaded[key] = credential{
			username: strings.TrimSpace(user.Username),
			password: password,
			email:    strings.TrimSpace(user.Email),
			role:     role,
		}
	}

	a.mu.Lock()
	a.users = loaded
	a.mu.Unlock()
	return nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// HashPassword is exported for seeding the first admin account.
func HashPassword(password string) (string, error) {
	return hashPassword(password)
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
