package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tableflow/internal/domain/order"
	"github.com/xenking/tableflow/internal/domain/pricing"
)

// mapError converts domain errors to HTTP responses: validation failures are
// 400/422, missing records 404, retry-safe conflicts 409, illegal transitions
// 422. Anything unrecognized is a 500 and gets logged.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nfErr *order.NotFoundError
		itErr *order.InvalidTransitionError
		umErr *order.UnknownModifierError
		uiErr *order.UnavailableItemError
	)

	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrTableRequired),
		errors.Is(err, order.ErrMethodRequired),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, pricing.ErrNegativePrice),
		errors.Is(err, pricing.ErrNegativeAdjustment),
		errors.Is(err, pricing.ErrInvalidQuantity):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &nfErr):
		respondError(w, r, http.StatusNotFound, nfErr.Error())
	case errors.Is(err, order.ErrConflict):
		respondError(w, r, http.StatusConflict, "order is being updated concurrently, retry")
	case errors.As(err, &itErr):
		respondError(w, r, http.StatusUnprocessableEntity, itErr.Error())
	case errors.Is(err, order.ErrAlreadyPaid),
		errors.Is(err, order.ErrOrderClosed):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &umErr):
		respondError(w, r, http.StatusUnprocessableEntity, umErr.Error())
	case errors.As(err, &uiErr):
		respondError(w, r, http.StatusUnprocessableEntity, uiErr.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}
