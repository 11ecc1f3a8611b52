package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/infrastructure/cache"
	"github.com/bivex/paygate/internal/mocks"
)

func testProduct() *entity.Product {
	credits := 100
	return &entity.Product{
		Code:          "credits_100",
		Name:          "100 credits",
		PriceMinor:    map[string]int64{"RUB": 19900, "XTR": 100},
		CreditsAmount: &credits,
		Active:        true,
	}
}

func TestProductCache(t *testing.T) {
	ctx := context.Background()
	key := "catalog:product:credits_100"

	t.Run("Miss loads from repository and caches", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		repo := mocks.NewMockProductRepository()
		product := testProduct()
		data, err := json.Marshal(product)
		require.NoError(t, err)

		mock.ExpectGet(key).RedisNil()
		repo.On("GetByCode", ctx, "credits_100").Return(product, nil).Once()
		mock.ExpectSet(key, data, cache.TTLProduct).SetVal("OK")

		got, err := cache.NewProductCache(repo, db, zap.NewNop()).GetByCode(ctx, "credits_100")
		require.NoError(t, err)
		assert.Equal(t, product, got)
		assert.NoError(t, mock.ExpectationsWereMet())
		repo.AssertExpectations(t)
	})

	t.Run("Hit skips repository", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		repo := mocks.NewMockProductRepository()
		data, err := json.Marshal(testProduct())
		require.NoError(t, err)

		mock.ExpectGet(key).SetVal(string(data))

		got, err := cache.NewProductCache(repo, db, zap.NewNop()).GetByCode(ctx, "credits_100")
		require.NoError(t, err)
		assert.Equal(t, 100, got.Credits())
		assert.Equal(t, int64(19900), got.PriceMinor["RUB"])
		assert.NoError(t, mock.ExpectationsWereMet())
		repo.AssertNotCalled(t, "GetByCode", ctx, "credits_100")
	})

	t.Run("Redis failure falls back to repository", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		repo := mocks.NewMockProductRepository()
		product := testProduct()
		data, err := json.Marshal(product)
		require.NoError(t, err)

		mock.ExpectGet(key).SetErr(errors.New("connection refused"))
		repo.On("GetByCode", ctx, "credits_100").Return(product, nil).Once()
		mock.ExpectSet(key, data, cache.TTLProduct).SetErr(errors.New("connection refused"))

		got, err := cache.NewProductCache(repo, db, zap.NewNop()).GetByCode(ctx, "credits_100")
		require.NoError(t, err)
		assert.Equal(t, product, got)
	})

	t.Run("Not found is not cached", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		repo := mocks.NewMockProductRepository()
		missing := &domainErrors.NotFoundError{Entity: "product", ID: "missing", Err: domainErrors.ErrProductNotFound}

		mock.ExpectGet("catalog:product:missing").RedisNil()
		repo.On("GetByCode", ctx, "missing").Return(nil, missing).Once()

		_, err := cache.NewProductCache(repo, db, zap.NewNop()).GetByCode(ctx, "missing")
		assert.ErrorIs(t, err, domainErrors.ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalidate deletes the key", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectDel(key).SetVal(1)

		err := cache.NewProductCache(mocks.NewMockProductRepository(), db, zap.NewNop()).Invalidate(ctx, "credits_100")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
