package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrResetTokenInvalid = errors.New("reset token is invalid or expired")
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// Only the SHA-256 of the token is stored; the raw token exists solely in
// the email.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestPasswordReset issues a one-time reset token and mails it to the
// account's address. Unknown addresses are silently ignored so the endpoint
// cannot be used to enumerate accounts.
func (a *Authenticator) RequestPasswordReset(email string) error {
	var user models.User
	found, err := a.r.GoquDBWrapper.
		Select("id", "email", "fullname").
		From("users").
		Where(goqu.Ex{"email": email, "is_active": true}).
		Executor().ScanStruct(&user)
	if err != nil {
		return fmt.Errorf("failed to look up user by email: %w", err)
	}
	if !found {
		return nil
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(a.resetTTL)

	// One live token per user.
	if _, err := a.r.GoquDBWrapper.Delete("password_reset_tokens").
		Where(goqu.Ex{"user_id": user.ID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to clear previous reset tokens: %w", err)
	}

	if _, err := a.r.GoquDBWrapper.Insert("password_reset_tokens").Rows(goqu.Record{
		"user_id":    user.ID,
		"token_hash": hashResetToken(token),
		"expires_at": expiresAt,
	}).Executor().Exec(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if a.mailer != nil {
		a.mailer.SendEmail(user.Email, "Password reset request",
			fmt.Sprintf("Hello %s,\n\nUse this code to reset your password: %s\n\nThe code expires in %d minute(s). If you did not request a reset, you can ignore this message.",
				user.Fullname, token, int(a.resetTTL.Minutes())))
	}

	a.log.Info("password reset requested", zap.Int("user_id", user.ID))
	return nil
}

type resetTokenRow struct {
	ID        int       `db:"id"`
	UserID    int       `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// ResetPassword consumes a reset token, sets the new password, and drops the
// user's live session so old tokens stop working immediately.
func (a *Authenticator) ResetPassword(token, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	var row resetTokenRow
	found, err := a.r.GoquDBWrapper.
		Select("id", "user_id", "expires_at").
		From("password_reset_tokens").
		Where(goqu.Ex{"token_hash": hashResetToken(token)}).
		Executor().ScanStruct(&row)
	if err != nil {
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if !found {
		return ErrResetTokenInvalid
	}
	if row.ExpiresAt.Before(time.Now()) {
		if _, err := a.r.GoquDBWrapper.Delete("password_reset_tokens").
			Where(goqu.Ex{"id": row.ID}).
			Executor().Exec(); err != nil {
			return fmt.Errorf("failed to drop expired reset token: %w", err)
		}
		return ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := a.r.GoquDBWrapper.Update("users").
		Set(goqu.Record{"password_hash": string(hash)}).
		Where(goqu.Ex{"id": row.UserID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if _, err := a.r.GoquDBWrapper.Delete("password_reset_tokens").
		Where(goqu.Ex{"user_id": row.UserID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to drop reset tokens: %w", err)
	}

	if err := a.sessions.Delete(row.UserID); err != nil {
		return err
	}

	a.log.Info("password reset completed", zap.Int("user_id", row.UserID))
	return nil
}
