package incidents

import (
	"fmt"
	"strings"
	"time"

	"resourcehive/internal/activity"
	"resourcehive/internal/inventory"
	"resourcehive/internal/notify"
	"resourcehive/internal/permissions"
	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

// IncidentService tracks damage and lost-item reports. Resolving a report
// applies the matching condition to the property through the inventory
// service, so the condition history stays on one code path.
type IncidentService struct {
	r         *repository.Repository
	incidents *IncidentRepository
	inventory *inventory.InventoryService
	recorder  *activity.Recorder
	bus       *notify.Bus
	arbiter   *permissions.Arbiter
	log       *zap.Logger
}

func NewIncidentService(
	r *repository.Repository,
	incidents *IncidentRepository,
	inv *inventory.InventoryService,
	recorder *activity.Recorder,
	bus *notify.Bus,
	arbiter *permissions.Arbiter,
	log *zap.Logger,
) *IncidentService {
	return &IncidentService{
		r:         r,
		incidents: incidents,
		inventory: inv,
		recorder:  recorder,
		bus:       bus,
		arbiter:   arbiter,
		log:       log,
	}
}

// ReportDamage records a damage report. Any authenticated user may report
// damage on a property they have in hand.
func (s *IncidentService) ReportDamage(userID, propertyID int, description string) (*models.DamageReport, error) {
	if strings.TrimSpace(description) == "" {
		return nil, apperrors.InvalidInput("A description of the damage is required")
	}

	report := &models.DamageReport{
		UserID:      userID,
		PropertyID:  propertyID,
		Description: description,
		Status:      models.IncidentStatusPending,
		ReportDate:  time.Now(),
	}

	err := repository.WithTransaction(s.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		reportID, err := s.incidents.InsertDamageReport(tx, report)
		if err != nil {
			return err
		}
		report.ID = reportID

		description := fmt.Sprintf("Reported damage on property %d", propertyID)
		return s.recorder.Record(tx, userID, "report_damage", report, description)
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

// ReportLost records a lost-item report; requires the report_lost_items
// permission.
func (s *IncidentService) ReportLost(actorID, propertyID int, description string) (*models.LostItem, error) {
	if err := s.arbiter.Check(actorID, permissions.ReportLostItems); err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperrors.InvalidInput("A description is required")
	}

	item := &models.LostItem{
		UserID:      actorID,
		PropertyID:  propertyID,
		Description: description,
		Status:      models.IncidentStatusPending,
		ReportDate:  time.Now(),
	}

	err := repository.WithTransaction(s.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		itemID, err := s.incidents.InsertLostItem(tx, item)
		if err != nil {
			return err
		}
		item.ID = itemID

		description := fmt.Sprintf("Reported property %d as lost", propertyID)
		return s.recorder.Record(tx, actorID, "report_lost_item", item, description)
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// ResolveDamage closes a damage report and applies the resolution's condition
// to the property.
func (s *IncidentService) ResolveDamage(actorID, reportID int, resolution, remarks string) (*models.DamageReport, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageLostItems); err != nil {
		return nil, err
	}

	condition, ok := models.ConditionForResolution(resolution)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "Unknown resolution: %s", resolution)
	}

	report, err := s.incidents.GetDamageReport(reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == models.IncidentStatusResolved {
		return report, nil
	}

	if _, err := s.inventory.SetPropertyCondition(actorID, report.PropertyID, condition,
		fmt.Sprintf("Damage report #%d resolved: %s", reportID, resolution)); err != nil {
		return nil, err
	}

	err = repository.WithTransaction(s.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		if err := s.incidents.UpdateDamageReport(tx, reportID, goqu.Record{
			"status":     models.IncidentStatusResolved,
			"resolution": resolution,
			"remarks":    remarks,
		}); err != nil {
			return err
		}

		description := fmt.Sprintf("Resolved damage report #%d as %s", reportID, resolution)
		if err := s.recorder.Record(tx, actorID, "resolve_damage_report", report, description); err != nil {
			return err
		}

		return s.bus.NotifyTx(tx, report.UserID,
			fmt.Sprintf("Your damage report #%d has been resolved (%s).", reportID, resolution), remarks)
	})
	if err != nil {
		return nil, err
	}

	return s.incidents.GetDamageReport(reportID)
}

// ResolveLost closes a lost-item report and applies the resolution's
// condition to the property.
func (s *IncidentService) ResolveLost(actorID, itemID int, resolution, remarks string) (*models.LostItem, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageLostItems); err != nil {
		return nil, err
	}

	condition, ok := models.ConditionForResolution(resolution)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "Unknown resolution: %s", resolution)
	}

	item, err := s.incidents.GetLostItem(itemID)
	if err != nil {
		return nil, err
	}
	if item.Status == models.IncidentStatusResolved {
		return item, nil
	}

	if _, err := s.inventory.SetPropertyCondition(actorID, item.PropertyID, condition,
		fmt.Sprintf("Lost item report #%d resolved: %s", itemID, resolution)); err != nil {
		return nil, err
	}

	err = repository.WithTransaction(s.r.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		if err := s.incidents.UpdateLostItem(tx, itemID, goqu.Record{
			"status":     models.IncidentStatusResolved,
			"resolution": resolution,
			"remarks":    remarks,
		}); err != nil {
			return err
		}

		description := fmt.Sprintf("Resolved lost item report #%d as %s", itemID, resolution)
		if err := s.recorder.Record(tx, actorID, "resolve_lost_item", item, description); err != nil {
			return err
		}

		return s.bus.NotifyTx(tx, item.UserID,
			fmt.Sprintf("Your lost item report #%d has been resolved (%s).", itemID, resolution), remarks)
	})
	if err != nil {
		return nil, err
	}

	return s.incidents.GetLostItem(itemID)
}

func (s *IncidentService) ListDamageReports(actorID int, status string) ([]models.DamageReport, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageLostItems); err != nil {
		return nil, err
	}
	return s.incidents.ListDamageReports(status)
}

func (s *IncidentService) ListLostItems(actorID int, status string) ([]models.LostItem, error) {
	if err := s.arbiter.Check(actorID, permissions.ManageLostItems); err != nil {
		return nil, err
	}
	return s.incidents.ListLostItems(status)
}
