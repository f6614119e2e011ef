package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	adktool "google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"catalog_chat/internal/catalog/repository"
	"catalog_chat/platform/apperr"
	"catalog_chat/platform/logger"
	"catalog_chat/platform/tracing"
	"catalog_chat/platform/validator"
)

const (
	// FindProductsName is the name the model uses to call the product lookup.
	FindProductsName = "find_products"

	findProductsDescription = "Looks up products in the catalog database. All filters are optional and " +
		"combined with AND; omit every filter to list the whole catalog. name matches a case-insensitive " +
		"fragment of the product name, barcode must equal the full numeric barcode (EAN-13), minPrice and " +
		"maxPrice bound the price inclusively. Returns the matching products with id, barcode, name and price."

	maxNameLength = 100
)

// Criteria holds the optional product filters the model extracts from the user's question.
type Criteria struct {
	Name     string   `json:"name,omitempty" jsonschema:"Case-insensitive fragment of the product name" validate:"omitempty,max=100"`
	Barcode  string   `json:"barcode,omitempty" jsonschema:"Exact numeric barcode (EAN-13), digits only" validate:"omitempty,barcode"`
	MinPrice *float64 `json:"minPrice,omitempty" jsonschema:"Lowest price to include" validate:"omitempty,gte=0"`
	MaxPrice *float64 `json:"maxPrice,omitempty" jsonschema:"Highest price to include" validate:"omitempty,gte=0"`
}

// ProductView is the serialized form of a product returned to the model.
type ProductView struct {
	ID      int64  `json:"id"`
	Barcode string `json:"barcode"`
	Name    string `json:"name"`
	Price   string `json:"price"`
}

// ToolError reports a failed call in-band so the model can explain it to the operator.
type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response is the tool result handed back to the agent runtime.
type Response struct {
	Count    int           `json:"count"`
	Products []ProductView `json:"products"`
	Error    *ToolError    `json:"error,omitempty"`
}

// ProductTool is the product lookup exposed to the agent.
type ProductTool struct {
	reader    repository.ProductReader
	validator *validator.Validator
	log       *logger.Logger
}

// NewProductTool creates the lookup over reader.
func NewProductTool(reader repository.ProductReader, val *validator.Validator, log *logger.Logger) *ProductTool {
	return &ProductTool{reader: reader, validator: val, log: log}
}

var _ ToolProvider = (*ProductTool)(nil)

// Declaration implements ToolProvider.
func (t *ProductTool) Declaration() Declaration {
	return Declaration{
		Name:        FindProductsName,
		Description: findProductsDescription,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Case-insensitive fragment of the product name",
					"maxLength":   maxNameLength,
				},
				"barcode": map[string]any{
					"type":        "string",
					"description": "Exact numeric barcode (EAN-13), digits only",
					"pattern":     "^[0-9]{1,13}$",
				},
				"minPrice": map[string]any{
					"type":        "number",
					"description": "Lowest price to include",
					"minimum":     0,
				},
				"maxPrice": map[string]any{
					"type":        "number",
					"description": "Highest price to include",
					"minimum":     0,
				},
			},
			"additionalProperties": false,
		},
	}
}

// Invoke implements ToolProvider. Malformed arguments are an InvalidCriteria failure.
func (t *ProductTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	var criteria Criteria
	if len(bytes.TrimSpace(args)) > 0 && !bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		if err := json.Unmarshal(args, &criteria); err != nil {
			return nil, apperr.InvalidCriteria("arguments are not a valid criteria object: " + err.Error()).WithOp(FindProductsName)
		}
	}

	products, err := t.FindProducts(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return newResponse(products), nil
}

// ADKTool implements ToolProvider by binding Handle as an ADK function tool.
// The declared parameter schema is the one the model sees.
func (t *ProductTool) ADKTool() (adktool.Tool, error) {
	decl := t.Declaration()
	schema, err := toJSONSchema(decl.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%s input schema: %w", decl.Name, err)
	}
	return functiontool.New(functiontool.Config{
		Name:        decl.Name,
		Description: decl.Description,
		InputSchema: schema,
	}, func(ctx adktool.Context, input Criteria) (Response, error) {
		return t.Handle(ctx, input), nil
	})
}

func toJSONSchema(parameters map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// Handle runs a lookup and folds any failure into the response.
func (t *ProductTool) Handle(ctx context.Context, criteria Criteria) Response {
	products, err := t.FindProducts(ctx, criteria)
	if err != nil {
		return Response{
			Products: []ProductView{},
			Error: &ToolError{
				Kind:    apperr.GetKind(err).String(),
				Message: err.Error(),
			},
		}
	}
	return newResponse(products)
}

// FindProducts validates criteria and returns the matching products.
// Unset filters impose no constraint; no match is an empty list, not an error.
func (t *ProductTool) FindProducts(ctx context.Context, criteria Criteria) ([]repository.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.find_products")
	defer span.End()

	filter, err := t.toFilter(criteria)
	if err != nil {
		tracing.RecordError(span, err)
		t.log.WithContext(ctx).ToolInvocation(FindProductsName, 0, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("catalog.filter.name", filter.NameContains),
		attribute.String("catalog.filter.barcode", filter.Barcode),
		attribute.Bool("catalog.filter.min_price", filter.MinPrice != nil),
		attribute.Bool("catalog.filter.max_price", filter.MaxPrice != nil),
	)

	products, err := t.reader.FindProducts(ctx, filter)
	if err != nil {
		err = classifyStoreError(err)
		tracing.RecordError(span, err)
		t.log.WithContext(ctx).ToolInvocation(FindProductsName, 0, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("catalog.rows", len(products)))
	t.log.WithContext(ctx).ToolInvocation(FindProductsName, len(products), nil)
	return products, nil
}

func (t *ProductTool) toFilter(criteria Criteria) (repository.ProductFilter, error) {
	criteria.Name = strings.TrimSpace(criteria.Name)
	criteria.Barcode = strings.TrimSpace(criteria.Barcode)

	if err := t.validator.Struct(criteria); err != nil {
		return repository.ProductFilter{}, invalidCriteria(err)
	}
	if !utf8.ValidString(criteria.Name) || strings.ContainsRune(criteria.Name, 0) {
		return repository.ProductFilter{}, apperr.InvalidCriteria("name must be valid text").WithOp(FindProductsName)
	}

	filter := repository.ProductFilter{
		NameContains: criteria.Name,
		Barcode:      criteria.Barcode,
	}

	var err error
	if filter.MinPrice, err = toPrice("minPrice", criteria.MinPrice); err != nil {
		return repository.ProductFilter{}, err
	}
	if filter.MaxPrice, err = toPrice("maxPrice", criteria.MaxPrice); err != nil {
		return repository.ProductFilter{}, err
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return repository.ProductFilter{}, apperr.InvalidCriteria("minPrice cannot exceed maxPrice").WithOp(FindProductsName)
	}

	return filter, nil
}

func toPrice(field string, value *float64) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	if math.IsNaN(*value) || math.IsInf(*value, 0) {
		return nil, apperr.InvalidCriteria(field + " must be a finite number").WithOp(FindProductsName)
	}
	if *value < 0 {
		return nil, apperr.InvalidCriteria(field + " cannot be negative").WithOp(FindProductsName)
	}
	d := decimal.NewFromFloat(*value)
	return &d, nil
}

func invalidCriteria(err error) error {
	msg := err.Error()
	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].Field() {
		case "Barcode":
			msg = "barcode must contain only digits (at most 13)"
		case "Name":
			msg = fmt.Sprintf("name cannot be longer than %d characters", maxNameLength)
		case "MinPrice", "MaxPrice":
			msg = "prices cannot be negative"
		}
	}
	return apperr.InvalidCriteria(msg).WithOp(FindProductsName)
}

// classifyStoreError maps a gateway failure onto the tool's error taxonomy.
// Anything that is not a server-side SQL error means the store could not be reached.
func classifyStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && !isConnectionFailure(pgErr.Code) {
		return apperr.Wrap(apperr.KindInternal, "product lookup failed", err).WithOp(FindProductsName)
	}
	return apperr.DataUnavailable("product store unavailable", err).WithOp(FindProductsName)
}

// isConnectionFailure matches SQLSTATE class 08 (connection exception), 57P
// (operator intervention) and 53300 (too many connections).
func isConnectionFailure(code string) bool {
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P") || code == "53300"
}

func newResponse(products []repository.Product) Response {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			ID:      p.ID,
			Barcode: p.Barcode,
			Name:    p.Name,
			Price:   p.Price.StringFixed(2),
		})
	}
	return Response{Count: len(views), Products: views}
}
