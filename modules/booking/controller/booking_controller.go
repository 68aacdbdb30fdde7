package controller

import (
	"consult-booking/core/cache"
	"consult-booking/core/controller"
	"consult-booking/core/errors"
	"consult-booking/core/middleware"
	"consult-booking/core/params"
	"consult-booking/core/storage"
	"consult-booking/modules/booking/dto"
	"consult-booking/modules/booking/entity"
	"consult-booking/modules/booking/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type BookingController struct {
	service service.BookingService
	cache   cache.Cache
	store   storage.ObjectStore
	controller.BaseController
}

// NewBookingController wires the HTTP handlers. store may be nil, in which case
// failed payment callbacks are only logged.
func NewBookingController(service service.BookingService, c cache.Cache, store storage.ObjectStore) *BookingController {
	if c == nil {
		c = cache.Noop{}
	}
	return &BookingController{
		service:        service,
		cache:          c,
		store:          store,
		BaseController: controller.NewBaseController(),
	}
}

// CreateBooking requests a booking against an open slot
// @Summary Request booking
// @Tags Bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateBookingRequest true "Booking"
// @Success 201 {object} controller.SuccessResponse
// @Failure 400 {object} controller.ErrorResponse
// @Failure 409 {object} controller.ErrorResponse
// @Failure 502 {object} controller.ErrorResponse
// @Router /bookings [post]
func (c *BookingController) CreateBooking(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	req := new(dto.CreateBookingRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	consultantID, err := uuid.Parse(req.ConsultantID)
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "consultant_id must be a valid id")
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "slot_id must be a valid id")
	}

	result, err := c.service.RequestBooking(ctx.Request().Context(), identity.ID, consultantID, slotID, req.Notes)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.Created(ctx, result, "Booking requested successfully")
}

// ListBookings lists bookings visible to the caller
// @Summary List bookings
// @Tags Bookings
// @Security BearerAuth
// @Produce json
// @Param status query string false "Booking status"
// @Param user_id query string false "Requester (admin only)"
// @Param consultant_id query string false "Consultant (admin only)"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} controller.SuccessResponse
// @Router /bookings [get]
func (c *BookingController) ListBookings(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	qp := params.NewQueryParams(ctx)
	query := dto.ListBookingsQuery{Status: qp.Status, Limit: qp.Limit, Offset: qp.Offset}

	if v := ctx.QueryParam("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.BadRequest(errors.ErrValidation, "user_id must be a valid id")
		}
		query.UserID = &id
	}
	if v := ctx.QueryParam("consultant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.BadRequest(errors.ErrValidation, "consultant_id must be a valid id")
		}
		query.ConsultantID = &id
	}

	bookings, err := c.service.ListBookings(ctx.Request().Context(), identity, query)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, bookings, "Bookings retrieved successfully")
}

// GetBooking returns a booking the caller is party to
// @Summary Get booking
// @Tags Bookings
// @Security BearerAuth
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} controller.SuccessResponse
// @Failure 403 {object} controller.ErrorResponse
// @Failure 404 {object} controller.ErrorResponse
// @Router /bookings/{id} [get]
func (c *BookingController) GetBooking(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "Invalid booking id")
	}

	booking, err := c.service.GetBooking(ctx.Request().Context(), identity, bookingID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, booking, "Booking retrieved successfully")
}

// ChangeStatus moves a booking to its next status
// @Summary Change booking status
// @Tags Bookings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.ChangeStatusRequest true "Status"
// @Success 200 {object} controller.SuccessResponse
// @Failure 403 {object} controller.ErrorResponse
// @Failure 409 {object} controller.ErrorResponse
// @Router /bookings/{id}/status [patch]
func (c *BookingController) ChangeStatus(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "Invalid booking id")
	}

	req := new(dto.ChangeStatusRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	booking, err := c.service.ChangeBookingStatus(ctx.Request().Context(), bookingID, service.StatusChange{
		Next:  entity.BookingStatus(req.Status),
		Note:  req.Note,
		Actor: &identity,
	})
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, booking, "Booking status updated successfully")
}
