package models

import "time"

// Supply stock status derived from the quantity record.
const (
	SupplyStatusAvailable  = "available"
	SupplyStatusLowStock   = "low_stock"
	SupplyStatusOutOfStock = "out_of_stock"
)

type Supply struct {
	ID                  int             `json:"id" db:"id"`
	Barcode             string          `json:"barcode" db:"barcode"`
	Name                string          `json:"supply_name" db:"supply_name"`
	Description         string          `json:"description" db:"description"`
	Unit                string          `json:"unit" db:"unit"`
	Category            *SupplyCategory `json:"category,omitempty" db:"-"`
	Subcategory         *Subcategory    `json:"subcategory,omitempty" db:"-"`
	DateReceived        time.Time       `json:"date_received" db:"date_received"`
	ExpirationDate      *time.Time      `json:"expiration_date,omitempty" db:"expiration_date"`
	AvailableForRequest bool            `json:"available_for_request" db:"available_for_request"`
	IsArchived          bool            `json:"is_archived" db:"is_archived"`
	Quantity            *SupplyQuantity `json:"quantity_info,omitempty" db:"-"`
}

// SupplyQuantity is the two-bucket accounting record. Every non-archived
// supply owns exactly one.
type SupplyQuantity struct {
	SupplyID         int `json:"supply_id" db:"supply_id"`
	CurrentQuantity  int `json:"current_quantity" db:"current_quantity"`
	ReservedQuantity int `json:"reserved_quantity" db:"reserved_quantity"`
	MinimumThreshold int `json:"minimum_threshold" db:"minimum_threshold"`
}

// AvailableQuantity is the amount eligible for a new approval.
func (q *SupplyQuantity) AvailableQuantity() int {
	available := q.CurrentQuantity - q.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}

func (q *SupplyQuantity) StockStatus() string {
	switch {
	case q.CurrentQuantity == 0:
		return SupplyStatusOutOfStock
	case q.CurrentQuantity <= q.MinimumThreshold:
		return SupplyStatusLowStock
	default:
		return SupplyStatusAvailable
	}
}

type FlatSupplyRecord struct {
	ID                  int        `db:"id"`
	Barcode             string     `db:"barcode"`
	Name                string     `db:"supply_name"`
	Description         string     `db:"description"`
	Unit                string     `db:"unit"`
	DateReceived        time.Time  `db:"date_received"`
	ExpirationDate      *time.Time `db:"expiration_date"`
	AvailableForRequest bool       `db:"available_for_request"`
	IsArchived          bool       `db:"is_archived"`
	CategoryID          *int       `db:"category_id"`
	CategoryName        *string    `db:"category_name"`
	SubcategoryID       *int       `db:"subcategory_id"`
	SubcategoryName     *string    `db:"subcategory_name"`
	CurrentQuantity     int        `db:"current_quantity"`
	ReservedQuantity    int        `db:"reserved_quantity"`
	MinimumThreshold    int        `db:"minimum_threshold"`
}

func (fs *FlatSupplyRecord) TransformToSupply() Supply {
	supply := Supply{
		ID:                  fs.ID,
		Barcode:             fs.Barcode,
		Name:                fs.Name,
		Description:         fs.Description,
		Unit:                fs.Unit,
		DateReceived:        fs.DateReceived,
		ExpirationDate:      fs.ExpirationDate,
		AvailableForRequest: fs.AvailableForRequest,
		IsArchived:          fs.IsArchived,
		Quantity: &SupplyQuantity{
			SupplyID:         fs.ID,
			CurrentQuantity:  fs.CurrentQuantity,
			ReservedQuantity: fs.ReservedQuantity,
			MinimumThreshold: fs.MinimumThreshold,
		},
	}

	if fs.CategoryID != nil {
		supply.Category = &SupplyCategory{ID: *fs.CategoryID}
		if fs.CategoryName != nil {
			supply.Category.Name = *fs.CategoryName
		}
	}
	if fs.SubcategoryID != nil {
		supply.Subcategory = &Subcategory{ID: *fs.SubcategoryID}
		if fs.SubcategoryName != nil {
			supply.Subcategory.Name = *fs.SubcategoryName
		}
	}

	return supply
}

func (s *Supply) CreateLogView() ActivityLog {
	return ActivityLog{
		EntityID:   s.ID,
		EntityType: "supply",
	}
}

// SupplyHistory is one field-level change on a supply.
type SupplyHistory struct {
	ID        int       `json:"id" db:"id"`
	SupplyID  int       `json:"supply_id" db:"supply_id"`
	FieldName string    `json:"field_name" db:"field_name"`
	OldValue  string    `json:"old_value" db:"old_value"`
	NewValue  string    `json:"new_value" db:"new_value"`
	ActorID   int       `json:"actor_id" db:"actor_id"`
	Remarks   string    `json:"remarks" db:"remarks"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
