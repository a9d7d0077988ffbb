// internal/domain/models/product.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductStatus is the lifecycle stage of a product. Transitions between
// stages are unconstrained.
type ProductStatus string

const (
	ProductIdeation    ProductStatus = "ideation"
	ProductDesign      ProductStatus = "design"
	ProductDevelopment ProductStatus = "development"
	ProductLaunch      ProductStatus = "launch"
	ProductRetired     ProductStatus = "retired"
)

// IsValidProductStatus reports whether s is a known lifecycle stage.
func IsValidProductStatus(s ProductStatus) bool {
	switch s {
	case ProductIdeation, ProductDesign, ProductDevelopment, ProductLaunch, ProductRetired:
		return true
	}
	return false
}

// Product is a managed product record. Version starts at 1 and is
// incremented by every update.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	SKU         string             `bson:"sku" json:"sku"`
	Category    string             `bson:"category" json:"category"`
	Brand       string             `bson:"brand" json:"brand"`
	NameCI      string             `bson:"name_ci" json:"-"`
	CategoryCI  string             `bson:"category_ci" json:"-"`
	BrandCI     string             `bson:"brand_ci" json:"-"`
	Price       float64            `bson:"price" json:"price"`
	Stock       int                `bson:"stock" json:"stock"`
	Status      ProductStatus      `bson:"status" json:"status"`
	Tags        []string           `bson:"tags" json:"tags"`
	Images      []string           `bson:"images" json:"images"`
	Specs       map[string]string  `bson:"specs,omitempty" json:"specs,omitempty"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
	Version     int                `bson:"version" json:"version"`
}
