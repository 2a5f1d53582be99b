package executor_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	apierrors "github.com/untron/untron-v3-engine/internal/api/shared/errors"
	"github.com/untron/untron-v3-engine/internal/api/shared/executor"
	"github.com/untron/untron-v3-engine/internal/api/shared/types"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/mocks"
	"github.com/untron/untron-v3-engine/internal/store"
	"github.com/untron/untron-v3-engine/internal/store/schema"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

func TestGetEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := mocks.NewMockStore(ctrl)
	exec := executor.NewExecutor(nil, mockStore)
	ctx := context.Background()
	from := uint64(3)

	mockStore.EXPECT().GetEvents(gomock.Any(), store.EventQueryFilter{
		Names:     []string{"LpDeposited"},
		FromSeq:   &from,
		Limit:     10,
		Offset:    5,
		OrderDesc: true,
	}).Return([]*schema.EmittedEvent{
		{
			ID:       7,
			EventSeq: 4,
			Name:     "LpDeposited",
			Address:  "0x1000000000000000000000000000000000000001",
			Topics:   datatypes.JSON(`["0xaa","0xbb"]`),
			Args:     datatypes.JSON(`{"amount":"1000"}`),
		},
	}, uint64(6), nil)

	resp, err := exec.GetEvents(ctx, []string{"LpDeposited"}, &from, nil, 10, 5, types.OrderDesc)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), resp.Total)
	assert.Equal(t, uint64(5), resp.Offset)
	assert.Equal(t, 10, resp.Limit)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, uint64(4), resp.Events[0].Seq)
	assert.Equal(t, []string{"0xaa", "0xbb"}, resp.Events[0].Topics)
	assert.Equal(t, "1000", resp.Events[0].Args["amount"])
}

func TestGetEvents_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	t.Run("no store", func(t *testing.T) {
		_, err := executor.NewExecutor(nil, nil).GetEvents(ctx, nil, nil, nil, 10, 0, types.OrderAsc)
		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, apierrors.ErrCodeServiceError, apiErr.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		mockStore := mocks.NewMockStore(ctrl)
		mockStore.EXPECT().GetEvents(gomock.Any(), gomock.Any()).Return(nil, uint64(0), errors.New("connection refused"))

		_, err := executor.NewExecutor(nil, mockStore).GetEvents(ctx, nil, nil, nil, 10, 0, types.OrderAsc)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("corrupt topics", func(t *testing.T) {
		mockStore := mocks.NewMockStore(ctrl)
		mockStore.EXPECT().GetEvents(gomock.Any(), gomock.Any()).Return([]*schema.EmittedEvent{
			{ID: 1, Topics: datatypes.JSON(`{`)},
		}, uint64(1), nil)

		_, err := executor.NewExecutor(nil, mockStore).GetEvents(ctx, nil, nil, nil, 10, 0, types.OrderAsc)
		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, apierrors.ErrCodeDatabaseError, apiErr.Code)
	})
}
