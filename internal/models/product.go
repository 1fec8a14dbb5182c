package models

import (
	"github.com/google/uuid"
)

// Product is a seller-owned catalog entry. Price is integral toman.
type Product struct {
	BaseModel
	SellerID    uuid.UUID `gorm:"type:uuid;index" json:"seller_id"`
	Slug        string    `gorm:"uniqueIndex" json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Discount    int64     `json:"discount"`
	Stock       int       `json:"stock"`
	Category    string    `gorm:"index" json:"category"`
	ImageURL    string    `json:"image_url"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
}
