package activity

import (
	"fmt"
	"time"

	"resourcehive/internal/repository"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// Loggable is anything that can describe itself as an audit row.
type Loggable interface {
	CreateLogView() models.ActivityLog
}

// Recorder appends activity-log and history rows. Every method takes the
// caller's transaction so the audit trail commits or rolls back with the
// mutation it describes.
type Recorder struct {
	r *repository.Repository
}

func NewRecorder(r *repository.Repository) *Recorder {
	return &Recorder{r: r}
}

func (rec *Recorder) Record(tx *goqu.TxDatabase, userID int, action string, entity Loggable, description string) error {
	entry := entity.CreateLogView()
	entry.UserID = userID
	entry.Action = action
	entry.Description = description
	entry.CreatedAt = time.Now()

	query := tx.Insert("activity_logs").Rows(goqu.Record{
		"user_id":     entry.UserID,
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"description": entry.Description,
		"created_at":  entry.CreatedAt,
	})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert activity log entry: %w", err)
	}

	return nil
}

// RecordSupplyChange appends one field-level diff for a supply.
func (rec *Recorder) RecordSupplyChange(tx *goqu.TxDatabase, change models.SupplyHistory) error {
	query := tx.Insert("supply_history").Rows(goqu.Record{
		"supply_id":  change.SupplyID,
		"field_name": change.FieldName,
		"old_value":  change.OldValue,
		"new_value":  change.NewValue,
		"actor_id":   change.ActorID,
		"remarks":    change.Remarks,
		"created_at": time.Now(),
	})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert supply history entry: %w", err)
	}

	return nil
}

func (rec *Recorder) RecordPropertyChange(tx *goqu.TxDatabase, change models.PropertyHistory) error {
	query := tx.Insert("property_history").Rows(goqu.Record{
		"property_id": change.PropertyID,
		"field_name":  change.FieldName,
		"old_value":   change.OldValue,
		"new_value":   change.NewValue,
		"actor_id":    change.ActorID,
		"remarks":     change.Remarks,
		"created_at":  time.Now(),
	})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert property history entry: %w", err)
	}

	return nil
}

// GetSupplyHistory returns the change stream for one supply, newest first.
func (rec *Recorder) GetSupplyHistory(supplyID int) ([]models.SupplyHistory, error) {
	var history []models.SupplyHistory
	query := rec.r.GoquDBWrapper.
		Select("id", "supply_id", "field_name", "old_value", "new_value", "actor_id", "remarks", "created_at").
		From("supply_history").
		Where(goqu.Ex{"supply_id": supplyID}).
		Order(goqu.C("created_at").Desc())

	if err := query.Executor().ScanStructs(&history); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply history: %w", err)
	}

	return history, nil
}

func (rec *Recorder) GetPropertyHistory(propertyID int) ([]models.PropertyHistory, error) {
	var history []models.PropertyHistory
	query := rec.r.GoquDBWrapper.
		Select("id", "property_id", "field_name", "old_value", "new_value", "actor_id", "remarks", "created_at").
		From("property_history").
		Where(goqu.Ex{"property_id": propertyID}).
		Order(goqu.C("created_at").Desc())

	if err := query.Executor().ScanStructs(&history); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for property history: %w", err)
	}

	return history, nil
}

// GetActivityLogs lists recent audit rows, newest first.
func (rec *Recorder) GetActivityLogs(limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var logs []models.ActivityLog
	query := rec.r.GoquDBWrapper.
		Select("id", "user_id", "action", "entity_type", "entity_id", "description", "created_at").
		From("activity_logs").
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit))

	if err := query.Executor().ScanStructs(&logs); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for activity logs: %w", err)
	}

	return logs, nil
}
