package models

type SupplyCategory struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Subcategory struct {
	ID         int    `json:"id" db:"id"`
	CategoryID int    `json:"category_id" db:"category_id"`
	Name       string `json:"name" db:"name"`
}

type PropertyCategory struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
