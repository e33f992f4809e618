package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ConditionGood           = "In good condition"
	ConditionNeedingRepair  = "Needing repair"
	ConditionUnserviceable  = "Unserviceable"
	ConditionObsolete       = "Obsolete"
	ConditionNoLongerNeeded = "No longer needed"
	ConditionNotUsedSince   = "Not used since purchased"
	ConditionLost           = "Lost"
)

const (
	AvailabilityAvailable    = "available"
	AvailabilityNotAvailable = "not_available"
)

// unusableConditions force availability to not_available and are the only
// conditions under which a property may be archived (Obsolete, Unserviceable).
var unusableConditions = map[string]bool{
	ConditionNeedingRepair:  true,
	ConditionUnserviceable:  true,
	ConditionObsolete:       true,
	ConditionNoLongerNeeded: true,
	ConditionLost:           true,
}

func IsUnusableCondition(condition string) bool {
	return unusableConditions[condition]
}

func IsArchivableCondition(condition string) bool {
	return condition == ConditionObsolete || condition == ConditionUnserviceable
}

func IsValidCondition(condition string) bool {
	switch condition {
	case ConditionGood, ConditionNeedingRepair, ConditionUnserviceable,
		ConditionObsolete, ConditionNoLongerNeeded, ConditionNotUsedSince, ConditionLost:
		return true
	default:
		return false
	}
}

// Property is a durable asset SKU aggregating identical units.
type Property struct {
	ID                       int               `json:"id" db:"id"`
	PropertyNumber           string            `json:"property_number" db:"property_number"`
	OldPropertyNumber        string            `json:"old_property_number" db:"old_property_number"`
	SerialNumber             string            `json:"serial_number" db:"serial_number"`
	Name                     string            `json:"property_name" db:"property_name"`
	Description              string            `json:"description" db:"description"`
	Category                 *PropertyCategory `json:"category,omitempty" db:"-"`
	Location                 string            `json:"location" db:"location"`
	AccountablePerson        string            `json:"accountable_person" db:"accountable_person"`
	Unit                     string            `json:"unit" db:"unit"`
	UnitValue                decimal.Decimal   `json:"unit_value" db:"unit_value"`
	YearAcquired             int               `json:"year_acquired" db:"year_acquired"`
	OverallQuantity          int               `json:"overall_quantity" db:"overall_quantity"`
	Quantity                 int               `json:"quantity" db:"quantity"`
	ReservedQuantity         int               `json:"reserved_quantity" db:"reserved_quantity"`
	QuantityPerPhysicalCount int               `json:"quantity_per_physical_count" db:"quantity_per_physical_count"`
	Condition                string            `json:"condition" db:"condition"`
	Availability             string            `json:"availability" db:"availability"`
	IsArchived               bool              `json:"is_archived" db:"is_archived"`
}

func (p *Property) AvailableQuantity() int {
	available := p.Quantity - p.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}

func (p *Property) CreateLogView() ActivityLog {
	return ActivityLog{
		EntityID:   p.ID,
		EntityType: "property",
	}
}

type FlatPropertyRecord struct {
	ID                       int             `db:"id"`
	PropertyNumber           string          `db:"property_number"`
	OldPropertyNumber        string          `db:"old_property_number"`
	SerialNumber             string          `db:"serial_number"`
	Name                     string          `db:"property_name"`
	Description              string          `db:"description"`
	Location                 string          `db:"location"`
	AccountablePerson        string          `db:"accountable_person"`
	Unit                     string          `db:"unit"`
	UnitValue                decimal.Decimal `db:"unit_value"`
	YearAcquired             int             `db:"year_acquired"`
	OverallQuantity          int             `db:"overall_quantity"`
	Quantity                 int             `db:"quantity"`
	ReservedQuantity         int             `db:"reserved_quantity"`
	QuantityPerPhysicalCount int             `db:"quantity_per_physical_count"`
	Condition                string          `db:"condition"`
	Availability             string          `db:"availability"`
	IsArchived               bool            `db:"is_archived"`
	CategoryID               *int            `db:"category_id"`
	CategoryName             *string         `db:"category_name"`
}

func (fp *FlatPropertyRecord) TransformToProperty() Property {
	property := Property{
		ID:                       fp.ID,
		PropertyNumber:           fp.PropertyNumber,
		OldPropertyNumber:        fp.OldPropertyNumber,
		SerialNumber:             fp.SerialNumber,
		Name:                     fp.Name,
		Description:              fp.Description,
		Location:                 fp.Location,
		AccountablePerson:        fp.AccountablePerson,
		Unit:                     fp.Unit,
		UnitValue:                fp.UnitValue,
		YearAcquired:             fp.YearAcquired,
		OverallQuantity:          fp.OverallQuantity,
		Quantity:                 fp.Quantity,
		ReservedQuantity:         fp.ReservedQuantity,
		QuantityPerPhysicalCount: fp.QuantityPerPhysicalCount,
		Condition:                fp.Condition,
		Availability:             fp.Availability,
		IsArchived:               fp.IsArchived,
	}

	if fp.CategoryID != nil {
		property.Category = &PropertyCategory{ID: *fp.CategoryID}
		if fp.CategoryName != nil {
			property.Category.Name = *fp.CategoryName
		}
	}

	return property
}

type PropertyHistory struct {
	ID         int       `json:"id" db:"id"`
	PropertyID int       `json:"property_id" db:"property_id"`
	FieldName  string    `json:"field_name" db:"field_name"`
	OldValue   string    `json:"old_value" db:"old_value"`
	NewValue   string    `json:"new_value" db:"new_value"`
	ActorID    int       `json:"actor_id" db:"actor_id"`
	Remarks    string    `json:"remarks" db:"remarks"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
