package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"resourcehive/internal/activity"
	"resourcehive/internal/permissions"
	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

// InventoryService owns the canonical state of supplies and properties.
// Every mutation runs in one transaction together with its history append.
type InventoryService struct {
	db         transactor
	supplies   supplyStore
	properties propertyStore
	categories categoryStore
	recorder   auditRecorder
	arbiter    permissionChecker
	log        *zap.Logger
}

func NewInventoryService(
	r *repository.Repository,
	supplies *SupplyRepository,
	properties *PropertyRepository,
	categories *CategoryRepository,
	recorder *activity.Recorder,
	arbiter *permissions.Arbiter,
	log *zap.Logger,
) *InventoryService {
	return &InventoryService{
		db:         r,
		supplies:   supplies,
		properties: properties,
		categories: categories,
		recorder:   recorder,
		arbiter:    arbiter,
		log:        log,
	}
}

func (s *InventoryService) CreateSupply(actorID int, supply *models.Supply) (*models.Supply, error) {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return nil, err
	}
	if supply.Name == "" {
		return nil, apperrors.InvalidInput("Supply name is required")
	}
	if supply.Quantity != nil && supply.Quantity.CurrentQuantity < 0 {
		return nil, apperrors.InvalidInput("Quantity cannot be negative")
	}

	var supplyID int
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		supply.AvailableForRequest = supply.Quantity != nil && supply.Quantity.CurrentQuantity > 0
		if supplyID, err = s.supplies.InsertSupply(tx, supply); err != nil {
			return err
		}

		created := models.Supply{ID: supplyID}
		return s.recorder.Record(tx, actorID, "created", &created,
			fmt.Sprintf("Created supply %q", supply.Name))
	})
	if err != nil {
		return nil, err
	}

	return s.supplies.GetSupply(supplyID)
}

// UpdateSupply applies the changed fields and appends one history row per
// field-level diff.
func (s *InventoryService) UpdateSupply(actorID, supplyID int, fields map[string]string, remarks string) (*models.Supply, error) {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return nil, err
	}

	current, err := s.supplies.GetSupply(supplyID)
	if err != nil {
		return nil, err
	}

	existing := map[string]string{
		"supply_name": current.Name,
		"description": current.Description,
		"unit":        current.Unit,
		"barcode":     current.Barcode,
	}

	updates := goqu.Record{}
	var diffs []models.SupplyHistory
	for field, newValue := range fields {
		oldValue, known := existing[field]
		if !known {
			return nil, apperrors.Newf(apperrors.KindInvalidInput, "Field %q cannot be edited", field)
		}
		if oldValue == newValue {
			continue
		}
		updates[field] = newValue
		diffs = append(diffs, models.SupplyHistory{
			SupplyID:  supplyID,
			FieldName: field,
			OldValue:  oldValue,
			NewValue:  newValue,
			ActorID:   actorID,
			Remarks:   remarks,
		})
	}

	if len(updates) == 0 {
		return current, nil
	}

	err = s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.supplies.UpdateSupplyFields(tx, supplyID, updates); err != nil {
			return err
		}
		for _, diff := range diffs {
			if err := s.recorder.RecordSupplyChange(tx, diff); err != nil {
				return err
			}
		}
		return s.recorder.Record(tx, actorID, "updated", current,
			fmt.Sprintf("Updated supply %q", current.Name))
	})
	if err != nil {
		return nil, err
	}

	return s.supplies.GetSupply(supplyID)
}

// AdjustCurrent is the single deduction/addition path for on-hand supply
// stock. A negative delta requires a reason and is bounded by current stock.
func (s *InventoryService) AdjustCurrent(actorID, supplyID, delta int, reason string) (*models.SupplyQuantity, error) {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, apperrors.InvalidInput("Adjustment delta cannot be zero")
	}
	if delta < 0 && strings.TrimSpace(reason) == "" {
		return nil, apperrors.InvalidInput("A reason is required when removing stock")
	}

	var result *models.SupplyQuantity
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		quantity, err := s.supplies.GetQuantityForUpdate(tx, supplyID)
		if err != nil {
			return err
		}

		newCurrent := quantity.CurrentQuantity + delta
		if newCurrent < 0 {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Cannot remove %d unit(s); only %d on hand", -delta, quantity.CurrentQuantity)
		}
		if quantity.ReservedQuantity > newCurrent {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Cannot remove %d unit(s); %d are reserved", -delta, quantity.ReservedQuantity)
		}

		if err := s.supplies.UpdateQuantities(tx, supplyID, newCurrent, quantity.ReservedQuantity); err != nil {
			return err
		}

		if err := s.recorder.RecordSupplyChange(tx, models.SupplyHistory{
			SupplyID:  supplyID,
			FieldName: "current_quantity",
			OldValue:  strconv.Itoa(quantity.CurrentQuantity),
			NewValue:  strconv.Itoa(newCurrent),
			ActorID:   actorID,
			Remarks:   reason,
		}); err != nil {
			return err
		}

		supply := models.Supply{ID: supplyID}
		if err := s.recorder.Record(tx, actorID, "quantity_adjusted", &supply,
			fmt.Sprintf("Adjusted supply %d quantity by %+d", supplyID, delta)); err != nil {
			return err
		}

		quantity.CurrentQuantity = newCurrent
		result = quantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// AdjustReserved corrects the reserved bucket directly. This exists for
// repairing drift after manual interventions; normal holds are placed and
// released only by request approvals and claims.
func (s *InventoryService) AdjustReserved(actorID, supplyID, delta int, reason string) (*models.SupplyQuantity, error) {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, apperrors.InvalidInput("Adjustment delta cannot be zero")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.InvalidInput("A reason is required for reserved-stock corrections")
	}

	var result *models.SupplyQuantity
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		quantity, err := s.supplies.GetQuantityForUpdate(tx, supplyID)
		if err != nil {
			return err
		}

		newReserved := quantity.ReservedQuantity + delta
		if newReserved < 0 {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Cannot release %d unit(s); only %d are reserved", -delta, quantity.ReservedQuantity)
		}
		if newReserved > quantity.CurrentQuantity {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Cannot reserve %d more unit(s); only %d on hand", delta, quantity.CurrentQuantity)
		}

		if err := s.supplies.UpdateQuantities(tx, supplyID, quantity.CurrentQuantity, newReserved); err != nil {
			return err
		}

		if err := s.recorder.RecordSupplyChange(tx, models.SupplyHistory{
			SupplyID:  supplyID,
			FieldName: "reserved_quantity",
			OldValue:  strconv.Itoa(quantity.ReservedQuantity),
			NewValue:  strconv.Itoa(newReserved),
			ActorID:   actorID,
			Remarks:   reason,
		}); err != nil {
			return err
		}

		supply := models.Supply{ID: supplyID}
		if err := s.recorder.Record(tx, actorID, "reserved_adjusted", &supply,
			fmt.Sprintf("Adjusted supply %d reserved quantity by %+d", supplyID, delta)); err != nil {
			return err
		}

		quantity.ReservedQuantity = newReserved
		result = quantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ReportBadStock removes damaged or unusable supply quantity with a
// mandatory reason, recording both the report and the stock change.
func (s *InventoryService) ReportBadStock(actorID, supplyID, quantity int, reason string) error {
	if err := s.arbiter.Check(actorID, permissions.ReportBadStock); err != nil {
		return err
	}
	if quantity <= 0 {
		return apperrors.InvalidInput("Bad stock quantity must be at least 1")
	}
	if strings.TrimSpace(reason) == "" {
		return apperrors.InvalidInput("A reason is required for bad stock removal")
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		record, err := s.supplies.GetQuantityForUpdate(tx, supplyID)
		if err != nil {
			return err
		}

		newCurrent := record.CurrentQuantity - quantity
		if newCurrent < 0 {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Cannot remove %d unit(s); only %d on hand", quantity, record.CurrentQuantity)
		}
		if record.ReservedQuantity > newCurrent {
			return apperrors.Newf(apperrors.KindInsufficientStock,
				"Cannot remove %d unit(s); %d are reserved", quantity, record.ReservedQuantity)
		}

		if err := s.supplies.UpdateQuantities(tx, supplyID, newCurrent, record.ReservedQuantity); err != nil {
			return err
		}

		if err := s.supplies.InsertBadStockReport(tx, models.BadStockReport{
			SupplyID:   supplyID,
			Quantity:   quantity,
			Reason:     reason,
			ReportedBy: actorID,
		}); err != nil {
			return err
		}

		if err := s.recorder.RecordSupplyChange(tx, models.SupplyHistory{
			SupplyID:  supplyID,
			FieldName: "current_quantity",
			OldValue:  strconv.Itoa(record.CurrentQuantity),
			NewValue:  strconv.Itoa(newCurrent),
			ActorID:   actorID,
			Remarks:   "Bad stock: " + reason,
		}); err != nil {
			return err
		}

		supply := models.Supply{ID: supplyID}
		return s.recorder.Record(tx, actorID, "bad_stock_reported", &supply,
			fmt.Sprintf("Removed %d unit(s) as bad stock: %s", quantity, reason))
	})
}

// ArchiveSupply requires zero stock or a past expiration date.
func (s *InventoryService) ArchiveSupply(actorID, supplyID int) error {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return err
	}

	supply, err := s.supplies.GetSupply(supplyID)
	if err != nil {
		return err
	}
	if supply.IsArchived {
		return nil
	}

	expired := supply.ExpirationDate != nil && supply.ExpirationDate.Before(time.Now())
	if supply.Quantity.CurrentQuantity != 0 && !expired {
		return apperrors.InvalidTransition(
			"Supply can only be archived when stock is zero or the expiration date has passed")
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.supplies.SetArchived(tx, supplyID, true); err != nil {
			return err
		}
		return s.recorder.Record(tx, actorID, "archived", supply,
			fmt.Sprintf("Archived supply %q", supply.Name))
	})
}

func (s *InventoryService) UnarchiveSupply(actorID, supplyID int) error {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return err
	}

	supply, err := s.supplies.GetSupply(supplyID)
	if err != nil {
		return err
	}
	if !supply.IsArchived {
		return nil
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.supplies.SetArchived(tx, supplyID, false); err != nil {
			return err
		}
		return s.recorder.Record(tx, actorID, "unarchived", supply,
			fmt.Sprintf("Unarchived supply %q", supply.Name))
	})
}

func (s *InventoryService) CreateProperty(actorID int, property *models.Property) (*models.Property, error) {
	if err := s.arbiter.Check(actorID, permissions.EditProperty); err != nil {
		return nil, err
	}
	if property.Name == "" {
		return nil, apperrors.InvalidInput("Property name is required")
	}
	if property.Condition == "" {
		property.Condition = models.ConditionGood
	}
	if !models.IsValidCondition(property.Condition) {
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "Unknown condition %q", property.Condition)
	}

	property.PropertyNumber = strings.ToUpper(strings.TrimSpace(property.PropertyNumber))
	property.Availability = models.AvailabilityAvailable
	if models.IsUnusableCondition(property.Condition) {
		property.Availability = models.AvailabilityNotAvailable
	}

	var propertyID int
	err := s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		if propertyID, err = s.properties.InsertProperty(tx, property); err != nil {
			return err
		}

		created := models.Property{ID: propertyID}
		return s.recorder.Record(tx, actorID, "created", &created,
			fmt.Sprintf("Created property %q", property.Name))
	})
	if err != nil {
		return nil, err
	}

	return s.properties.GetProperty(propertyID)
}

// SetPropertyCondition transitions condition; unusable conditions force
// availability to not_available.
func (s *InventoryService) SetPropertyCondition(actorID, propertyID int, condition, remarks string) (*models.Property, error) {
	if err := s.arbiter.Check(actorID, permissions.EditProperty); err != nil {
		return nil, err
	}
	if !models.IsValidCondition(condition) {
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "Unknown condition %q", condition)
	}

	property, err := s.properties.GetProperty(propertyID)
	if err != nil {
		return nil, err
	}
	if property.Condition == condition {
		return property, nil
	}

	updates := goqu.Record{"condition": condition}
	availability := models.AvailabilityAvailable
	if models.IsUnusableCondition(condition) {
		availability = models.AvailabilityNotAvailable
	}
	if availability != property.Availability {
		updates["availability"] = availability
	}

	err = s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.properties.UpdatePropertyFields(tx, propertyID, updates); err != nil {
			return err
		}

		if err := s.recorder.RecordPropertyChange(tx, models.PropertyHistory{
			PropertyID: propertyID,
			FieldName:  "condition",
			OldValue:   property.Condition,
			NewValue:   condition,
			ActorID:    actorID,
			Remarks:    remarks,
		}); err != nil {
			return err
		}
		if availability != property.Availability {
			if err := s.recorder.RecordPropertyChange(tx, models.PropertyHistory{
				PropertyID: propertyID,
				FieldName:  "availability",
				OldValue:   property.Availability,
				NewValue:   availability,
				ActorID:    actorID,
				Remarks:    remarks,
			}); err != nil {
				return err
			}
		}

		return s.recorder.Record(tx, actorID, "condition_changed", property,
			fmt.Sprintf("Property %q condition: %s -> %s", property.Name, property.Condition, condition))
	})
	if err != nil {
		return nil, err
	}

	return s.properties.GetProperty(propertyID)
}

// RenumberProperty keeps the old number and stores the new one uppercased.
// Uniqueness is enforced by the database constraint.
func (s *InventoryService) RenumberProperty(actorID, propertyID int, newNumber string) (*models.Property, error) {
	if err := s.arbiter.Check(actorID, permissions.EditProperty); err != nil {
		return nil, err
	}

	newNumber = strings.ToUpper(strings.TrimSpace(newNumber))
	if newNumber == "" {
		return nil, apperrors.InvalidInput("Property number is required")
	}

	property, err := s.properties.GetProperty(propertyID)
	if err != nil {
		return nil, err
	}
	if property.PropertyNumber == newNumber {
		return property, nil
	}

	err = s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.properties.UpdatePropertyFields(tx, propertyID, goqu.Record{
			"property_number":     newNumber,
			"old_property_number": property.PropertyNumber,
		}); err != nil {
			return err
		}

		if err := s.recorder.RecordPropertyChange(tx, models.PropertyHistory{
			PropertyID: propertyID,
			FieldName:  "property_number",
			OldValue:   property.PropertyNumber,
			NewValue:   newNumber,
			ActorID:    actorID,
			Remarks:    "Renumbered",
		}); err != nil {
			return err
		}

		return s.recorder.Record(tx, actorID, "renumbered", property,
			fmt.Sprintf("Property %q renumbered %s -> %s", property.Name, property.PropertyNumber, newNumber))
	})
	if err != nil {
		return nil, err
	}

	return s.properties.GetProperty(propertyID)
}

// ArchiveProperty requires condition Obsolete or Unserviceable.
func (s *InventoryService) ArchiveProperty(actorID, propertyID int) error {
	if err := s.arbiter.Check(actorID, permissions.EditProperty); err != nil {
		return err
	}

	property, err := s.properties.GetProperty(propertyID)
	if err != nil {
		return err
	}
	if property.IsArchived {
		return nil
	}
	if !models.IsArchivableCondition(property.Condition) {
		return apperrors.InvalidTransition(
			"Property can only be archived when its condition is Obsolete or Unserviceable")
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.properties.SetArchived(tx, propertyID, true); err != nil {
			return err
		}
		return s.recorder.Record(tx, actorID, "archived", property,
			fmt.Sprintf("Archived property %q", property.Name))
	})
}

// DeleteArchivedSupply permanently removes a supply. Only archived supplies
// can be deleted; everything else must be archived first.
func (s *InventoryService) DeleteArchivedSupply(actorID, supplyID int) error {
	if err := s.arbiter.Check(actorID, permissions.DeleteArchivedItems); err != nil {
		return err
	}

	supply, err := s.supplies.GetSupply(supplyID)
	if err != nil {
		return err
	}
	if !supply.IsArchived {
		return apperrors.InvalidTransition("Only archived supplies can be deleted")
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.supplies.DeleteSupply(tx, supplyID); err != nil {
			return err
		}
		return s.recorder.Record(tx, actorID, "deleted", supply,
			fmt.Sprintf("Deleted archived supply %q", supply.Name))
	})
}

// DeleteArchivedProperty permanently removes a property. Only archived
// properties can be deleted.
func (s *InventoryService) DeleteArchivedProperty(actorID, propertyID int) error {
	if err := s.arbiter.Check(actorID, permissions.DeleteArchivedItems); err != nil {
		return err
	}

	property, err := s.properties.GetProperty(propertyID)
	if err != nil {
		return err
	}
	if !property.IsArchived {
		return apperrors.InvalidTransition("Only archived properties can be deleted")
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.properties.DeleteProperty(tx, propertyID); err != nil {
			return err
		}
		return s.recorder.Record(tx, actorID, "deleted", property,
			fmt.Sprintf("Deleted archived property %q", property.Name))
	})
}

func (s *InventoryService) CreateSupplyCategory(actorID int, name string) (*models.SupplyCategory, error) {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return nil, err
	}
	return s.categories.CreateSupplyCategory(name)
}

func (s *InventoryService) DeleteSupplyCategory(actorID, categoryID int) error {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return err
	}
	return s.categories.DeleteSupplyCategory(categoryID)
}

func (s *InventoryService) CreateSubcategory(actorID, categoryID int, name string) (*models.Subcategory, error) {
	if err := s.arbiter.Check(actorID, permissions.EditSupply); err != nil {
		return nil, err
	}
	return s.categories.CreateSubcategory(categoryID, name)
}

func (s *InventoryService) CreatePropertyCategory(actorID int, name string) (*models.PropertyCategory, error) {
	if err := s.arbiter.Check(actorID, permissions.EditProperty); err != nil {
		return nil, err
	}
	return s.categories.CreatePropertyCategory(name)
}

func (s *InventoryService) DeletePropertyCategory(actorID, categoryID int) error {
	if err := s.arbiter.Check(actorID, permissions.EditProperty); err != nil {
		return err
	}
	return s.categories.DeletePropertyCategory(categoryID)
}

func (s *InventoryService) UnarchiveProperty(actorID, propertyID int) error {
	if err := s.arbiter.Check(actorID, permissions.EditProperty); err != nil {
		return err
	}

	property, err := s.properties.GetProperty(propertyID)
	if err != nil {
		return err
	}
	if !property.IsArchived {
		return nil
	}

	return s.db.InTransaction(func(tx *goqu.TxDatabase) error {
		if err := s.properties.SetArchived(tx, propertyID, false); err != nil {
			return err
		}
		return s.recorder.Record(tx, actorID, "unarchived", property,
			fmt.Sprintf("Unarchived property %q", property.Name))
	})
}
