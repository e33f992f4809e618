package security

import (
	"errors"
	"fmt"
	"time"

	"resourcehive/internal/repository"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")
var ErrAccountDisabled = errors.New("account is disabled")

// mailer is the slice of the notification bus the authenticator needs for
// reset emails.
type mailer interface {
	SendEmail(to, subject, body string)
}

// Authenticator verifies credentials and issues session-bound tokens.
type Authenticator struct {
	r          *repository.Repository
	sessions   *SessionStore
	jwtSecret  []byte
	sessionAge time.Duration
	resetTTL   time.Duration
	mailer     mailer
	log        *zap.Logger
}

func NewAuthenticator(r *repository.Repository, sessions *SessionStore, jwtSecret string, sessionAge, resetTTL time.Duration, m mailer, log *zap.Logger) *Authenticator {
	return &Authenticator{
		r:          r,
		sessions:   sessions,
		jwtSecret:  []byte(jwtSecret),
		sessionAge: sessionAge,
		resetTTL:   resetTTL,
		mailer:     m,
		log:        log,
	}
}

// AuthenticateUser checks the password and the account's active state.
// A disabled account whose auto_enable_at has passed is re-enabled here;
// the scheduler never sweeps this field.
func (a *Authenticator) AuthenticateUser(username, password string) (*models.User, error) {
	var user models.User

	query := a.r.GoquDBWrapper.
		Select("id", "username", "password_hash", "fullname", "email", "phone",
			"department", "role", "is_active", "auto_enable_at", "has_limited_access").
		From("users").
		Where(goqu.Ex{"username": username})

	found, err := query.Executor().ScanStruct(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if !found {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		if user.AutoEnableAt != nil && !user.AutoEnableAt.After(time.Now()) {
			if err := a.reactivate(user.ID); err != nil {
				return nil, err
			}
			user.IsActive = true
			user.AutoEnableAt = nil
			a.log.Info("account auto-reactivated on login", zap.Int("user_id", user.ID))
		} else {
			return nil, ErrAccountDisabled
		}
	}

	return &user, nil
}

func (a *Authenticator) reactivate(userID int) error {
	if _, err := a.r.GoquDBWrapper.Update("users").
		Set(goqu.Record{"is_active": true, "auto_enable_at": nil}).
		Where(goqu.Ex{"id": userID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to reactivate user: %w", err)
	}
	return nil
}

// Login authenticates and establishes the user's single live session,
// returning a signed token carrying the session key.
func (a *Authenticator) Login(username, password string) (string, *models.User, error) {
	user, err := a.AuthenticateUser(username, password)
	if err != nil {
		return "", nil, err
	}

	sessionKey := uuid.NewString()
	expiresAt := time.Now().Add(a.sessionAge)

	if err := a.sessions.Replace(user.ID, sessionKey, expiresAt); err != nil {
		return "", nil, err
	}

	token, err := a.GenerateJWT(user, sessionKey, expiresAt)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

func (a *Authenticator) Logout(userID int) error {
	return a.sessions.Delete(userID)
}

func (a *Authenticator) GenerateJWT(user *models.User, sessionKey string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userID":   user.ID,
		"role":     user.Role,
		"username": user.Username,
		"sid":      sessionKey,
		"exp":      expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
