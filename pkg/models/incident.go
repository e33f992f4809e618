package models

import "time"

const (
	IncidentStatusPending  = "pending"
	IncidentStatusReviewed = "reviewed"
	IncidentStatusResolved = "resolved"
)

// Resolutions an administrator may apply to a damage or lost-item report.
// Each maps to the property condition the resolution leaves behind.
const (
	ResolutionGood          = "good"
	ResolutionNeedsRepair   = "needs_repair"
	ResolutionUnserviceable = "unserviceable"
	ResolutionLost          = "lost"
)

func ConditionForResolution(resolution string) (string, bool) {
	switch resolution {
	case ResolutionGood:
		return ConditionGood, true
	case ResolutionNeedsRepair:
		return ConditionNeedingRepair, true
	case ResolutionUnserviceable:
		return ConditionUnserviceable, true
	case ResolutionLost:
		return ConditionLost, true
	default:
		return "", false
	}
}

type DamageReport struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	PropertyID  int       `json:"property_id" db:"property_id"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	Resolution  *string   `json:"resolution,omitempty" db:"resolution"`
	Remarks     string    `json:"remarks" db:"remarks"`
	ReportDate  time.Time `json:"report_date" db:"report_date"`
}

type LostItem struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	PropertyID  int       `json:"property_id" db:"property_id"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	Resolution  *string   `json:"resolution,omitempty" db:"resolution"`
	Remarks     string    `json:"remarks" db:"remarks"`
	ReportDate  time.Time `json:"report_date" db:"report_date"`
}

func (d *DamageReport) CreateLogView() ActivityLog {
	return ActivityLog{EntityID: d.ID, EntityType: "damage_report"}
}

func (l *LostItem) CreateLogView() ActivityLog {
	return ActivityLog{EntityID: l.ID, EntityType: "lost_item"}
}

// BadStockReport records an administrative removal of supply quantity.
type BadStockReport struct {
	ID         int       `json:"id" db:"id"`
	SupplyID   int       `json:"supply_id" db:"supply_id"`
	Quantity   int       `json:"quantity" db:"quantity"`
	Reason     string    `json:"reason" db:"reason"`
	ReportedBy int       `json:"reported_by" db:"reported_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
