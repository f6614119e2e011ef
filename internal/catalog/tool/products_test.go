package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"catalog_chat/internal/catalog/repository"
	"catalog_chat/platform/apperr"
	"catalog_chat/platform/logger"
	"catalog_chat/platform/validator"
)

type fakeReader struct {
	products []repository.Product
	err      error
	calls    []repository.ProductFilter
}

func (f *fakeReader) FindProducts(_ context.Context, filter repository.ProductFilter) ([]repository.Product, error) {
	f.calls = append(f.calls, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func newTestTool(reader repository.ProductReader) *ProductTool {
	return NewProductTool(reader, validator.New(), logger.Discard())
}

func ptr(v float64) *float64 { return &v }

var arroz = repository.Product{ID: 1, Barcode: "7891000100103", Name: "Arroz", Price: decimal.RequireFromString("12.50")}

func TestFindProducts_NoFiltersMeansNoConstraint(t *testing.T) {
	reader := &fakeReader{products: []repository.Product{arroz}}

	got, err := newTestTool(reader).FindProducts(context.Background(), Criteria{Name: "   ", Barcode: ""})
	require.NoError(t, err)
	assert.Equal(t, []repository.Product{arroz}, got)
	require.Len(t, reader.calls, 1)
	assert.True(t, reader.calls[0].IsEmpty())
}

func TestFindProducts_PassesTrimmedFilters(t *testing.T) {
	reader := &fakeReader{products: []repository.Product{}}

	_, err := newTestTool(reader).FindProducts(context.Background(), Criteria{
		Name:     "  arroz ",
		Barcode:  " 7891000100103 ",
		MinPrice: ptr(10),
		MaxPrice: ptr(12.5),
	})
	require.NoError(t, err)
	require.Len(t, reader.calls, 1)

	filter := reader.calls[0]
	assert.Equal(t, "arroz", filter.NameContains)
	assert.Equal(t, "7891000100103", filter.Barcode)
	assert.True(t, decimal.NewFromInt(10).Equal(*filter.MinPrice))
	assert.True(t, decimal.RequireFromString("12.5").Equal(*filter.MaxPrice))
}

func TestFindProducts_InvalidCriteriaNeverQueries(t *testing.T) {
	cases := []struct {
		name     string
		criteria Criteria
	}{
		{"barcode with letters", Criteria{Barcode: "78910001001O3"}},
		{"barcode with injection", Criteria{Barcode: "1' OR '1'='1"}},
		{"barcode too long", Criteria{Barcode: "78910001001030"}},
		{"negative min price", Criteria{MinPrice: ptr(-1)}},
		{"negative max price", Criteria{MaxPrice: ptr(-0.01)}},
		{"inverted range", Criteria{MinPrice: ptr(20), MaxPrice: ptr(10)}},
		{"name too long", Criteria{Name: string(make([]rune, 101))}},
		{"name with NUL", Criteria{Name: "arr\x00oz"}},
		{"name with invalid utf8", Criteria{Name: "arr\xffoz"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &fakeReader{}

			_, err := newTestTool(reader).FindProducts(context.Background(), tc.criteria)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindInvalidCriteria), "got %v", err)
			assert.Empty(t, reader.calls)
		})
	}
}

func TestFindProducts_UnsafeNameTextIsForwardedAsValue(t *testing.T) {
	reader := &fakeReader{products: []repository.Product{}}
	hostile := "arroz'; DELETE FROM products; --"

	got, err := newTestTool(reader).FindProducts(context.Background(), Criteria{Name: hostile})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.Len(t, reader.calls, 1)
	assert.Equal(t, hostile, reader.calls[0].NameContains)
}

func TestFindProducts_StoreFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{"connection refused", fmt.Errorf("find products: %w", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")), apperr.KindDataUnavailable},
		{"deadline", fmt.Errorf("find products: %w", context.DeadlineExceeded), apperr.KindDataUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, apperr.KindDataUnavailable},
		{"connection failure class", &pgconn.PgError{Code: "08006"}, apperr.KindDataUnavailable},
		{"sql error", &pgconn.PgError{Code: "42P01"}, apperr.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestTool(&fakeReader{err: tc.err}).FindProducts(context.Background(), Criteria{})
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.GetKind(err))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestFindProducts_EmptyResultIsNotAnError(t *testing.T) {
	got, err := newTestTool(&fakeReader{products: []repository.Product{}}).FindProducts(context.Background(), Criteria{Name: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInvoke_DecodesArguments(t *testing.T) {
	reader := &fakeReader{products: []repository.Product{arroz}}

	out, err := newTestTool(reader).Invoke(context.Background(), json.RawMessage(`{"name":"arroz","maxPrice":20}`))
	require.NoError(t, err)

	resp, ok := out.(Response)
	require.True(t, ok)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, ProductView{ID: 1, Barcode: "7891000100103", Name: "Arroz", Price: "12.50"}, resp.Products[0])
	assert.Nil(t, resp.Error)
}

func TestInvoke_EmptyArgumentsListEverything(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		reader := &fakeReader{products: []repository.Product{}}

		out, err := newTestTool(reader).Invoke(context.Background(), json.RawMessage(raw))
		require.NoError(t, err, "args %q", raw)
		assert.Equal(t, Response{Count: 0, Products: []ProductView{}}, out)
		require.Len(t, reader.calls, 1)
		assert.True(t, reader.calls[0].IsEmpty())
	}
}

func TestInvoke_MalformedArguments(t *testing.T) {
	reader := &fakeReader{}

	_, err := newTestTool(reader).Invoke(context.Background(), json.RawMessage(`{"barcode": 789}`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidCriteria))
	assert.Empty(t, reader.calls)
}

func TestHandle_FoldsErrorsIntoResponse(t *testing.T) {
	resp := newTestTool(&fakeReader{}).Handle(context.Background(), Criteria{Barcode: "abc"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, "InvalidCriteria", resp.Error.Kind)
	assert.Zero(t, resp.Count)
	assert.NotNil(t, resp.Products)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0,"products":[],"error":{"kind":"InvalidCriteria","message":"`+resp.Error.Message+`"}}`, string(encoded))
}

func TestDeclaration_SchemaMatchesCriteriaFields(t *testing.T) {
	decl := newTestTool(&fakeReader{}).Declaration()

	assert.Equal(t, FindProductsName, decl.Name)
	assert.NotEmpty(t, decl.Description)

	props, ok := decl.Parameters["properties"].(map[string]any)
	require.True(t, ok)

	// Every declared property must decode into Criteria.
	sample := map[string]any{"name": "a", "barcode": "1", "minPrice": 1, "maxPrice": 2}
	for key := range props {
		_, present := sample[key]
		assert.True(t, present, "unexpected property %q", key)
	}
	raw, err := json.Marshal(sample)
	require.NoError(t, err)
	var c Criteria
	require.NoError(t, json.Unmarshal(raw, &c))
	assert.Equal(t, Criteria{Name: "a", Barcode: "1", MinPrice: ptr(1), MaxPrice: ptr(2)}, c)
	assert.Len(t, props, len(sample))
}

func TestADKTool_UsesDeclaration(t *testing.T) {
	adk, err := newTestTool(&fakeReader{}).ADKTool()
	require.NoError(t, err)
	assert.Equal(t, FindProductsName, adk.Name())
	assert.Equal(t, findProductsDescription, adk.Description())

	declarer, ok := adk.(interface {
		Declaration() *genai.FunctionDeclaration
	})
	require.True(t, ok)
	decl := declarer.Declaration()
	require.NotNil(t, decl)
	require.NotNil(t, decl.ParametersJsonSchema)

	raw, err := json.Marshal(decl.ParametersJsonSchema)
	require.NoError(t, err)
	var schema struct {
		Properties map[string]struct {
			Pattern   string   `json:"pattern"`
			MaxLength *int     `json:"maxLength"`
			Minimum   *float64 `json:"minimum"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))

	assert.Equal(t, "^[0-9]{1,13}$", schema.Properties["barcode"].Pattern)
	require.NotNil(t, schema.Properties["name"].MaxLength)
	assert.Equal(t, maxNameLength, *schema.Properties["name"].MaxLength)
	require.NotNil(t, schema.Properties["minPrice"].Minimum)
	assert.Zero(t, *schema.Properties["minPrice"].Minimum)
	require.NotNil(t, schema.Properties["maxPrice"].Minimum)
}
