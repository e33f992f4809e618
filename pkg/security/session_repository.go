package security

import (
	"fmt"
	"time"

	"resourcehive/internal/repository"

	"github.com/doug-martin/goqu/v9"
)

// SessionStore owns the single-session invariant: at most one row per user.
type SessionStore struct {
	r *repository.Repository
}

func NewSessionStore(r *repository.Repository) *SessionStore {
	return &SessionStore{r: r}
}

// Replace deletes any prior session row before inserting the new one, so a
// login elsewhere invalidates the older session key on its next use.
func (s *SessionStore) Replace(userID int, sessionKey string, expiresAt time.Time) error {
	return repository.WithTransaction(s.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		if _, err := tx.Delete("user_sessions").
			Where(goqu.Ex{"user_id": userID}).
			Executor().Exec(); err != nil {
			return fmt.Errorf("failed to delete prior session: %w", err)
		}

		if _, err := tx.Insert("user_sessions").Rows(goqu.Record{
			"user_id":     userID,
			"session_key": sessionKey,
			"created_at":  time.Now(),
			"expires_at":  expiresAt,
		}).Executor().Exec(); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		return nil
	})
}

// IsValid reports whether the key is the user's current, unexpired session.
func (s *SessionStore) IsValid(userID int, sessionKey string) (bool, error) {
	var count int64
	query := s.r.GoquDBWrapper.
		From("user_sessions").
		Where(goqu.Ex{"user_id": userID, "session_key": sessionKey}).
		Where(goqu.C("expires_at").Gt(time.Now())).
		Select(goqu.COUNT("*"))

	if _, err := query.Executor().ScanVal(&count); err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}

	return count > 0, nil
}

func (s *SessionStore) Delete(userID int) error {
	if _, err := s.r.GoquDBWrapper.Delete("user_sessions").
		Where(goqu.Ex{"user_id": userID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}
