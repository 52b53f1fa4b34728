package catalog

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive   = "active"
	StatusDraft    = "draft"
	StatusArchived = "archived"
)

type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"not null;uniqueIndex" json:"email"`
	Name         string    `gorm:"not null" json:"name"`
	PasswordHash string    `json:"-"`
}

// SelectableFields keeps credentials out of projections and filters.
func (Account) SelectableFields() []string {
	return []string{"id", "email", "name"}
}

type Category struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Name     string    `gorm:"not null;uniqueIndex" json:"name"`
	ParentID *uint     `json:"parent_id,omitempty"`
	Parent   *Category `json:"parent,omitempty"`
}

type Product struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	Description     string    `json:"description"`
	Status          string    `gorm:"not null;index" json:"status"`
	Price           float64   `json:"price"`
	Stock           int       `json:"stock"`
	CategoryID      uint      `json:"category_id"`
	Category        *Category `json:"category,omitempty"`
	SupplierID      uuid.UUID `gorm:"type:uuid" json:"supplier_id"`
	Supplier        *Account  `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	CreatedDatetime time.Time `gorm:"not null;index" json:"created_datetime"`
}
