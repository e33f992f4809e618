package incidents

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type IncidentRepository struct {
	r *repository.Repository
}

func NewIncidentRepository(r *repository.Repository) *IncidentRepository {
	return &IncidentRepository{r: r}
}

func (ir *IncidentRepository) InsertDamageReport(tx *goqu.TxDatabase, report *models.DamageReport) (int, error) {
	var reportID int
	if _, err := tx.Insert("damage_reports").Rows(goqu.Record{
		"user_id":     report.UserID,
		"property_id": report.PropertyID,
		"description": report.Description,
		"status":      report.Status,
		"report_date": report.ReportDate,
	}).Returning("id").Executor().ScanVal(&reportID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert damage report")
	}

	return reportID, nil
}

func (ir *IncidentRepository) GetDamageReport(reportID int) (*models.DamageReport, error) {
	var report models.DamageReport
	found, err := ir.r.GoquDBWrapper.
		Select("id", "user_id", "property_id", "description", "status", "resolution", "remarks", "report_date").
		From("damage_reports").
		Where(goqu.Ex{"id": reportID}).
		Executor().ScanStruct(&report)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for damage report: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Damage report %d not found", reportID)
	}

	return &report, nil
}

func (ir *IncidentRepository) ListDamageReports(status string) ([]models.DamageReport, error) {
	query := ir.r.GoquDBWrapper.
		Select("id", "user_id", "property_id", "description", "status", "resolution", "remarks", "report_date").
		From("damage_reports").
		Order(goqu.C("report_date").Desc())
	if status != "" {
		query = query.Where(goqu.Ex{"status": status})
	}

	var reports []models.DamageReport
	if err := query.Executor().ScanStructs(&reports); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for damage reports: %w", err)
	}

	return reports, nil
}

func (ir *IncidentRepository) UpdateDamageReport(tx *goqu.TxDatabase, reportID int, fields goqu.Record) error {
	if _, err := tx.Update("damage_reports").
		Set(fields).
		Where(goqu.Ex{"id": reportID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update damage report: %w", err)
	}

	return nil
}

func (ir *IncidentRepository) InsertLostItem(tx *goqu.TxDatabase, item *models.LostItem) (int, error) {
	var itemID int
	if _, err := tx.Insert("lost_items").Rows(goqu.Record{
		"user_id":     item.UserID,
		"property_id": item.PropertyID,
		"description": item.Description,
		"status":      item.Status,
		"report_date": item.ReportDate,
	}).Returning("id").Executor().ScanVal(&itemID); err != nil {
		return 0, apperrors.FromDBError(err, "failed to insert lost item report")
	}

	return itemID, nil
}

func (ir *IncidentRepository) GetLostItem(itemID int) (*models.LostItem, error) {
	var item models.LostItem
	found, err := ir.r.GoquDBWrapper.
		Select("id", "user_id", "property_id", "description", "status", "resolution", "remarks", "report_date").
		From("lost_items").
		Where(goqu.Ex{"id": itemID}).
		Executor().ScanStruct(&item)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement for lost item: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "Lost item report %d not found", itemID)
	}

	return &item, nil
}

func (ir *IncidentRepository) ListLostItems(status string) ([]models.LostItem, error) {
	query := ir.r.GoquDBWrapper.
		Select("id", "user_id", "property_id", "description", "status", "resolution", "remarks", "report_date").
		From("lost_items").
		Order(goqu.C("report_date").Desc())
	if status != "" {
		query = query.Where(goqu.Ex{"status": status})
	}

	var items []models.LostItem
	if err := query.Executor().ScanStructs(&items); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for lost items: %w", err)
	}

	return items, nil
}

func (ir *IncidentRepository) UpdateLostItem(tx *goqu.TxDatabase, itemID int, fields goqu.Record) error {
	if _, err := tx.Update("lost_items").
		Set(fields).
		Where(goqu.Ex{"id": itemID}).
		Executor().Exec(); err != nil {
		return fmt.Errorf("failed to update lost item report: %w", err)
	}

	return nil
}
