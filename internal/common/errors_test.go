package common_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/common"
)

func TestFromDomainMapsKinds(t *testing.T) {
	err := fmt.Errorf("book 42: %w", common.ErrNotFound)
	appErr := common.FromDomain(err)
	require.Equal(t, "NOT_FOUND", appErr.Code)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	require.ErrorIs(t, appErr, common.ErrNotFound)

	appErr = common.FromDomain(common.ErrEmptyCart)
	require.Equal(t, "EMPTY_CART", appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	appErr = common.FromDomain(errors.New("disk on fire"))
	require.Equal(t, "INTERNAL", appErr.Code)
	require.Equal(t, "internal error", appErr.Message)
}

func TestWriteErrorKeepsAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, common.NewAppError("RATE_LIMITED", "slow down", http.StatusTooManyRequests, nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.JSONEq(t, `{"error":{"code":"RATE_LIMITED","message":"slow down"}}`, rec.Body.String())
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	type payload struct {
		Username string `json:"username" validate:"required"`
		Quantity int    `json:"quantity" validate:"gte=1"`
	}
	err := common.ValidateStruct(payload{Quantity: 0})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, map[string]any{"fields": map[string]string{"username": "required", "quantity": "gte"}}, appErr.Details)

	require.NoError(t, common.ValidateStruct(payload{Username: "bob", Quantity: 2}))
}
