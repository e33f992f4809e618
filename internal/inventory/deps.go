package inventory

import (
	"resourcehive/internal/activity"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// The service talks to its collaborators through these interfaces. The
// concrete repositories satisfy them; tests substitute mocks.

type transactor interface {
	InTransaction(fn func(tx *goqu.TxDatabase) error) error
}

type supplyStore interface {
	GetSupply(supplyID int) (*models.Supply, error)
	InsertSupply(tx *goqu.TxDatabase, supply *models.Supply) (int, error)
	UpdateSupplyFields(tx *goqu.TxDatabase, supplyID int, fields goqu.Record) error
	GetQuantityForUpdate(tx *goqu.TxDatabase, supplyID int) (*models.SupplyQuantity, error)
	UpdateQuantities(tx *goqu.TxDatabase, supplyID, current, reserved int) error
	SetArchived(tx *goqu.TxDatabase, supplyID int, archived bool) error
	InsertBadStockReport(tx *goqu.TxDatabase, report models.BadStockReport) error
	DeleteSupply(tx *goqu.TxDatabase, supplyID int) error
}

type propertyStore interface {
	GetProperty(propertyID int) (*models.Property, error)
	InsertProperty(tx *goqu.TxDatabase, property *models.Property) (int, error)
	UpdatePropertyFields(tx *goqu.TxDatabase, propertyID int, fields goqu.Record) error
	SetArchived(tx *goqu.TxDatabase, propertyID int, archived bool) error
	DeleteProperty(tx *goqu.TxDatabase, propertyID int) error
}

type categoryStore interface {
	CreateSupplyCategory(name string) (*models.SupplyCategory, error)
	DeleteSupplyCategory(categoryID int) error
	CreateSubcategory(categoryID int, name string) (*models.Subcategory, error)
	CreatePropertyCategory(name string) (*models.PropertyCategory, error)
	DeletePropertyCategory(categoryID int) error
}

type auditRecorder interface {
	Record(tx *goqu.TxDatabase, userID int, action string, entity activity.Loggable, description string) error
	RecordSupplyChange(tx *goqu.TxDatabase, change models.SupplyHistory) error
	RecordPropertyChange(tx *goqu.TxDatabase, change models.PropertyHistory) error
}

type permissionChecker interface {
	Check(userID int, codename string) error
}
