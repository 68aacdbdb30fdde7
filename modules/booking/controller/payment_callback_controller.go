package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"consult-booking/core/constants"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/core/storage"
	"consult-booking/modules/booking/dto"

	"github.com/labstack/echo/v4"
)

const maxCallbackBody = 1 << 20

type callbackAck struct {
	Received bool `json:"received"`
}

// PaymentCallback receives provider redirects and webhooks. The payload is only a
// trigger to re-verify the transaction; the response is always 200 so providers do
// not retry on internal failures.
// @Summary Payment provider callback
// @Tags Bookings
// @Accept json
// @Produce json
// @Param tx_ref query string false "Chapa transaction reference"
// @Param reference query string false "Paystack reference"
// @Success 200 {object} callbackAck
// @Router /bookings/payments/callback [post]
func (c *BookingController) PaymentCallback(ctx echo.Context) error {
	req := ctx.Request()

	payload := dto.PaymentCallbackRequest{
		TxRef:     ctx.QueryParam("tx_ref"),
		TrxRef:    ctx.QueryParam("trx_ref"),
		Reference: ctx.QueryParam("reference"),
		Status:    ctx.QueryParam("status"),
	}

	if req.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxCallbackBody))
		if err != nil {
			logger.Warn("BookingController:PaymentCallback:ReadBody:Error", "error", err)
			return c.ack(ctx)
		}
		if !c.service.VerifyCallbackSignature(req.Header, body) {
			logger.Warn("BookingController:PaymentCallback:InvalidSignature", "provider", c.service.PaymentProvider())
			return c.ack(ctx)
		}
		decodeCallbackBody(req.Header.Get(echo.HeaderContentType), body, &payload)
	}

	ref := payload.Ref()
	if ref == "" {
		logger.Warn("BookingController:PaymentCallback:MissingReference", "method", req.Method)
		return c.ack(ctx)
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), constants.DefaultRequestTimeout)
	defer cancel()

	lockKey := constants.RedisKeyPaymentCallback + ref
	acquired, err := c.cache.SetNX(rctx, lockKey, "1", constants.PaymentCallbackLockTTL)
	if err != nil {
		logger.Warn("BookingController:PaymentCallback:Lock:Error", "transaction_ref", ref, "error", err)
		acquired = true
	}
	if !acquired {
		logger.Info("BookingController:PaymentCallback:InFlight", "transaction_ref", ref)
		return c.ack(ctx)
	}
	defer func() {
		if err := c.cache.Del(rctx, lockKey); err != nil {
			logger.Warn("BookingController:PaymentCallback:Unlock:Error", "transaction_ref", ref, "error", err)
		}
	}()

	booking, err := c.service.VerifyPayment(rctx, ref)
	if err != nil {
		logger.Error("BookingController:PaymentCallback:Verify:Error",
			"transaction_ref", ref,
			"status_hint", payload.StatusHint(),
			"error", err,
		)
		c.archive(rctx, ref, payload.StatusHint(), err)
		return c.ack(ctx)
	}

	logger.Info("BookingController:PaymentCallback:Verified", "transaction_ref", ref, "booking_id", booking.ID)
	return c.ack(ctx)
}

func (c *BookingController) ack(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, callbackAck{Received: true})
}

// archive stores the failed callback for manual reconciliation.
func (c *BookingController) archive(ctx context.Context, ref, hint string, cause error) {
	if c.store == nil {
		return
	}
	now := time.Now().UTC()
	record := dto.ReconciliationRecord{
		TransactionRef: ref,
		StatusHint:     hint,
		Provider:       c.service.PaymentProvider(),
		Code:           string(errors.CodeOf(cause)),
		Error:          cause.Error(),
		ReceivedAt:     now,
	}
	if err := c.store.PutJSON(ctx, storage.ReconciliationKey(ref, now), record); err != nil {
		logger.Error("BookingController:PaymentCallback:Archive:Error", "transaction_ref", ref, "error", err)
	}
}

// decodeCallbackBody fills payload from a JSON or form body. Fields already taken
// from the query string are only overwritten by non-empty body values.
func decodeCallbackBody(contentType string, body []byte, payload *dto.PaymentCallbackRequest) {
	if len(body) == 0 {
		return
	}

	if strings.HasPrefix(contentType, echo.MIMEApplicationForm) {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			logger.Warn("BookingController:PaymentCallback:DecodeForm:Error", "error", err)
			return
		}
		setIfEmpty(&payload.TxRef, form.Get("tx_ref"))
		setIfEmpty(&payload.TrxRef, form.Get("trx_ref"))
		setIfEmpty(&payload.Reference, form.Get("reference"))
		setIfEmpty(&payload.Status, form.Get("status"))
		return
	}

	var fromBody dto.PaymentCallbackRequest
	if err := json.Unmarshal(body, &fromBody); err != nil {
		logger.Warn("BookingController:PaymentCallback:DecodeJSON:Error", "error", err)
		return
	}
	setIfEmpty(&payload.TxRef, fromBody.TxRef)
	setIfEmpty(&payload.TrxRef, fromBody.TrxRef)
	setIfEmpty(&payload.Reference, fromBody.Reference)
	setIfEmpty(&payload.Status, fromBody.Status)
	payload.Data = fromBody.Data
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
