package notify

import (
	"fmt"
	"time"

	"resourcehive/internal/repository"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type NotificationRepository struct {
	r *repository.Repository
}

func NewNotificationRepository(r *repository.Repository) *NotificationRepository {
	return &NotificationRepository{r: r}
}

// InsertTx writes an in-app notification inside the caller's transaction so
// it commits with the business mutation.
func (nr *NotificationRepository) InsertTx(tx *goqu.TxDatabase, userID int, message, remarks string) error {
	query := tx.Insert("notifications").Rows(goqu.Record{
		"user_id":    userID,
		"message":    message,
		"remarks":    remarks,
		"is_read":    false,
		"created_at": time.Now(),
	})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

// Insert writes a standalone notification, used by the scheduler outside any
// business transaction.
func (nr *NotificationRepository) Insert(userID int, message, remarks string) error {
	query := nr.r.GoquDBWrapper.Insert("notifications").Rows(goqu.Record{
		"user_id":    userID,
		"message":    message,
		"remarks":    remarks,
		"is_read":    false,
		"created_at": time.Now(),
	})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

func (nr *NotificationRepository) GetForUser(userID int, unreadOnly bool) ([]models.Notification, error) {
	var notifications []models.Notification

	query := nr.r.GoquDBWrapper.
		Select("id", "user_id", "message", "remarks", "is_read", "created_at").
		From("notifications").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.C("created_at").Desc())

	if unreadOnly {
		query = query.Where(goqu.Ex{"is_read": false})
	}

	if err := query.Executor().ScanStructs(&notifications); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for notifications: %w", err)
	}

	return notifications, nil
}

func (nr *NotificationRepository) MarkRead(notificationID, userID int) error {
	query := nr.r.GoquDBWrapper.Update("notifications").
		Set(goqu.Record{"is_read": true}).
		Where(goqu.Ex{"id": notificationID, "user_id": userID})

	result, err := query.Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d not found for user %d", notificationID, userID)
	}

	return nil
}

func (nr *NotificationRepository) MarkAllRead(userID int) error {
	query := nr.r.GoquDBWrapper.Update("notifications").
		Set(goqu.Record{"is_read": true}).
		Where(goqu.Ex{"user_id": userID, "is_read": false})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to mark notifications as read: %w", err)
	}

	return nil
}
