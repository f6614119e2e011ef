package tool_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_chat/internal/catalog/catalogtest"
	"catalog_chat/internal/catalog/repository"
	"catalog_chat/internal/catalog/seed"
	"catalog_chat/internal/catalog/tool"
	"catalog_chat/platform/apperr"
	"catalog_chat/platform/logger"
	"catalog_chat/platform/validator"
)

func TestProductTool_AgainstPostgres(t *testing.T) {
	catalog := catalogtest.Start(t)
	ctx := context.Background()
	products := tool.NewProductTool(catalog.Repo, validator.New(), logger.Discard())

	t.Run("empty store", func(t *testing.T) {
		catalog.Reset(t)

		got, err := products.FindProducts(ctx, tool.Criteria{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("case-insensitive name fragment", func(t *testing.T) {
		catalog.Reset(t)
		_, err := catalog.Repo.InsertProducts(ctx, []repository.NewProduct{
			{Barcode: "7891000100103", Name: "Arroz", Price: decimal.RequireFromString("12.50")},
		})
		require.NoError(t, err)

		got, err := products.FindProducts(ctx, tool.Criteria{Name: "arroz"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "7891000100103", got[0].Barcode)
		assert.Equal(t, "Arroz", got[0].Name)
		assert.Equal(t, "12.50", got[0].Price.StringFixed(2))
	})

	t.Run("unfiltered returns full set and barcode lookups are exact", func(t *testing.T) {
		catalog.Reset(t)
		const n = 250
		_, err := seed.Seed(ctx, logger.Discard(), catalog.Repo, seed.NewGenerator(99), n)
		require.NoError(t, err)

		all, err := products.FindProducts(ctx, tool.Criteria{})
		require.NoError(t, err)
		require.Len(t, all, n)

		for _, p := range all[:20] {
			got, err := products.FindProducts(ctx, tool.Criteria{Barcode: p.Barcode})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, p.Barcode, got[0].Barcode)
		}

		got, err := products.FindProducts(ctx, tool.Criteria{Barcode: "0000000000000"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("hostile text never executes", func(t *testing.T) {
		catalog.Reset(t)
		_, err := seed.Seed(ctx, logger.Discard(), catalog.Repo, seed.NewGenerator(5), 10)
		require.NoError(t, err)

		got, err := products.FindProducts(ctx, tool.Criteria{Name: "x'); DROP TABLE products; --"})
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = products.FindProducts(ctx, tool.Criteria{Barcode: "1 OR 1=1"})
		assert.True(t, apperr.Is(err, apperr.KindInvalidCriteria))

		total, err := catalog.Repo.CountProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, total)
	})

	t.Run("closed pool is data unavailable", func(t *testing.T) {
		closed := catalogtest.Start(t)
		closed.Pool.Close()
		unavailable := tool.NewProductTool(closed.Repo, validator.New(), logger.Discard())

		_, err := unavailable.FindProducts(ctx, tool.Criteria{})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindDataUnavailable), "got %v", err)
	})
}
