package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const productColumns = "id, barcode, name, price"

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Repo implements the catalog repository.
type Repo struct {
	db DBTX
}

// New creates a new catalog repository.
func New(db DBTX) *Repo {
	return &Repo{db: db}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// FindProducts returns the products matching filter ordered by ID.
// No match yields an empty, non-nil slice.
func (r *Repo) FindProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	query, args := buildFindQuery(filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	items := make([]Product, 0)
	for rows.Next() {
		var product Product
		var price pgtype.Numeric
		if err := rows.Scan(&product.ID, &product.Barcode, &product.Name, &price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		product.Price, err = fromNumeric(price)
		if err != nil {
			return nil, fmt.Errorf("scan product %d price: %w", product.ID, err)
		}
		items = append(items, product)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate products: %w", rows.Err())
	}

	return items, nil
}

// InsertProducts bulk-loads products with COPY and returns the number of rows written.
func (r *Repo) InsertProducts(ctx context.Context, products []NewProduct) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}

	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{"barcode", "name", "price"},
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			p := products[i]
			return []any{p.Barcode, p.Name, toNumeric(p.Price)}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy products: %w", err)
	}
	return n, nil
}

// CountProducts returns the number of rows in the products table.
func (r *Repo) CountProducts(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// buildFindQuery assembles the lookup from fixed SQL fragments. Every filter
// value travels as a bound parameter.
func buildFindQuery(filter ProductFilter) (string, []any) {
	var whereClauses []string
	var args []any
	argIdx := 1

	if filter.NameContains != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("name ILIKE $%d", argIdx))
		args = append(args, "%"+escapeLike(filter.NameContains)+"%")
		argIdx++
	}

	if filter.Barcode != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("barcode = $%d", argIdx))
		args = append(args, filter.Barcode)
		argIdx++
	}

	if filter.MinPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price >= $%d", argIdx))
		args = append(args, toNumeric(*filter.MinPrice))
		argIdx++
	}

	if filter.MaxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, toNumeric(*filter.MaxPrice))
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY id"

	return query, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in s match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.Int == nil {
		return decimal.Zero, fmt.Errorf("null price")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("non-finite price")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
