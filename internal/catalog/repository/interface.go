package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is one row of the products table.
type Product struct {
	ID      int64           `db:"id"`
	Barcode string          `db:"barcode"`
	Name    string          `db:"name"`
	Price   decimal.Decimal `db:"price"`
}

// NewProduct contains data for inserting a product. The store assigns the ID.
type NewProduct struct {
	Barcode string
	Name    string
	Price   decimal.Decimal
}

// ProductFilter restricts a product lookup. Zero values mean "no constraint".
type ProductFilter struct {
	NameContains string
	Barcode      string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
}

// IsEmpty reports whether the filter matches every product.
func (f ProductFilter) IsEmpty() bool {
	return f.NameContains == "" && f.Barcode == "" && f.MinPrice == nil && f.MaxPrice == nil
}

// ProductReader is the read side used by the product lookup tool.
type ProductReader interface {
	FindProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
}

// Repository defines catalog storage operations.
type Repository interface {
	ProductReader
	InsertProducts(ctx context.Context, products []NewProduct) (int64, error)
	CountProducts(ctx context.Context) (int, error)
}
