// Package seed fills the catalog with synthetic products.
package seed

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"catalog_chat/internal/catalog/repository"
	"catalog_chat/platform/events"
	"catalog_chat/platform/logger"
)

const (
	// barcodePrefix is the GS1 prefix for Brazil; the seeded catalog imitates a local grocery list.
	barcodePrefix = "789"
	minPrice      = 10
	maxPrice      = 29
	batchSize     = 1000
	maxNameLength = 100
)

// Writer persists generated products.
type Writer interface {
	InsertProducts(ctx context.Context, products []repository.NewProduct) (int64, error)
}

// Generator produces fake products from a seeded source. Barcodes are unique per generator.
type Generator struct {
	faker    *gofakeit.Faker
	barcodes map[string]struct{}
}

// NewGenerator returns a generator. A zero seed picks a random one.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{faker: gofakeit.New(seed), barcodes: make(map[string]struct{})}
}

// Product returns one synthetic product: commerce name, valid EAN-13 and an integer price in [10, 29].
func (g *Generator) Product() repository.NewProduct {
	name := truncateRunes(g.faker.ProductName(), maxNameLength)
	return repository.NewProduct{
		Barcode: g.barcode(),
		Name:    name,
		Price:   decimal.NewFromInt(int64(g.faker.Number(minPrice, maxPrice))),
	}
}

func (g *Generator) barcode() string {
	for {
		code := EAN13(g.faker.Numerify(barcodePrefix + "#########"))
		if _, taken := g.barcodes[code]; !taken {
			g.barcodes[code] = struct{}{}
			return code
		}
	}
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Products returns n synthetic products.
func (g *Generator) Products(n int) []repository.NewProduct {
	items := make([]repository.NewProduct, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, g.Product())
	}
	return items
}

// EAN13 appends the GS1 check digit to a 12-digit payload.
func EAN13(payload string) string {
	sum := 0
	for i := 0; i < len(payload); i++ {
		digit := int(payload[i] - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	return payload + strconv.Itoa((10-sum%10)%10)
}

// ValidEAN13 reports whether code is 13 digits with a correct check digit.
func ValidEAN13(code string) bool {
	if len(code) != 13 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return EAN13(code[:12]) == code
}

// Seed generates n products and writes them in batches. It returns the number of rows written.
func Seed(ctx context.Context, log *logger.Logger, w Writer, g *Generator, n int) (int64, error) {
	var written int64
	for start := 0; start < n; start += batchSize {
		size := min(batchSize, n-start)
		count, err := w.InsertProducts(ctx, g.Products(size))
		if err != nil {
			return written, fmt.Errorf("seed batch at %d: %w", start, err)
		}
		written += count
		log.Debug("seeded product batch", "offset", start, "rows", count)
	}
	return written, nil
}

// PrintTable renders products as a text table.
func PrintTable(w io.Writer, products []repository.Product) error {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.Barcode,
			p.Name,
			p.Price.StringFixed(2),
		})
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Barcode", "Name", "Price")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("render products table: %w", err)
	}
	return table.Render()
}

// SeededEventName is published after the catalog has been filled.
const SeededEventName = "catalog.seeded"

// Seeded reports how many products a seeding run wrote.
type Seeded struct {
	events.BaseEvent
	Rows int64 `json:"rows"`
}

// EventName implements events.Event.
func (Seeded) EventName() string { return SeededEventName }

// NewSeeded creates the event for a finished run.
func NewSeeded(rows int64) Seeded {
	return Seeded{BaseEvent: events.NewBaseEvent(), Rows: rows}
}
