package controller

import (
	"consult-booking/core/access"
	"consult-booking/core/controller"
	"consult-booking/core/errors"
	"consult-booking/core/middleware"
	"consult-booking/modules/availability/dto"
	"consult-booking/modules/availability/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SlotController struct {
	service service.SlotService
	controller.BaseController
}

func NewSlotController(service service.SlotService) *SlotController {
	return &SlotController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

// CreateSlot publishes a slot for any consultant
// @Summary Create availability slot
// @Tags Availability
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateSlotRequest true "Slot"
// @Success 201 {object} controller.SuccessResponse
// @Failure 400 {object} controller.ErrorResponse
// @Router /availability [post]
func (c *SlotController) CreateSlot(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	req := new(dto.CreateSlotRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	consultantID, err := uuid.Parse(req.ConsultantID)
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "consultant_id must be a valid id")
	}
	if consultantID != identity.ID && !access.Can(identity.Role, access.ActionManageAnySlots) {
		return c.Forbidden(errors.ErrForbidden, "You can only publish your own availability")
	}

	return c.create(ctx, consultantID, req)
}

// CreateMySlot publishes a slot for the calling consultant
// @Summary Create my availability slot
// @Tags Availability
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateSlotRequest true "Slot"
// @Success 201 {object} controller.SuccessResponse
// @Router /availability/me [post]
func (c *SlotController) CreateMySlot(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	req := new(dto.CreateSlotRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}
	return c.create(ctx, identity.ID, req)
}

func (c *SlotController) create(ctx echo.Context, consultantID uuid.UUID, req *dto.CreateSlotRequest) error {
	slot, err := c.service.CreateSlot(ctx.Request().Context(), consultantID, req.SlotStart, req.SlotEnd, req.Timezone, req.Metadata)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.Created(ctx, slot, "Slot created successfully")
}

// GetMySlots lists the calling consultant's slots
// @Summary List my availability
// @Tags Availability
// @Security BearerAuth
// @Produce json
// @Param status query string false "open | pending | booked | archived"
// @Success 200 {object} controller.SuccessResponse
// @Router /availability/me [get]
func (c *SlotController) GetMySlots(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	slots, err := c.service.ListSlots(ctx.Request().Context(), identity.ID, ctx.QueryParam("status"))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, slots, "Slots retrieved successfully")
}

// GetConsultantSlots lists a consultant's slots ordered by start time
// @Summary List consultant availability
// @Tags Availability
// @Produce json
// @Param consultantId path string true "Consultant ID"
// @Param status query string false "open | pending | booked | archived"
// @Success 200 {object} controller.SuccessResponse
// @Router /availability/consultants/{consultantId} [get]
func (c *SlotController) GetConsultantSlots(ctx echo.Context) error {
	consultantID, err := uuid.Parse(ctx.Param("consultantId"))
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "Invalid consultant id")
	}

	slots, err := c.service.ListSlots(ctx.Request().Context(), consultantID, ctx.QueryParam("status"))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, slots, "Slots retrieved successfully")
}

// UpdateSlot patches a slot owned by the caller
// @Summary Update availability slot
// @Tags Availability
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param request body dto.UpdateSlotRequest true "Patch"
// @Success 200 {object} controller.SuccessResponse
// @Failure 404 {object} controller.ErrorResponse
// @Failure 409 {object} controller.ErrorResponse
// @Router /availability/{id} [patch]
func (c *SlotController) UpdateSlot(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	slotID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "Invalid slot id")
	}

	req := new(dto.UpdateSlotRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	slot, err := c.service.UpdateSlot(ctx.Request().Context(), identity, slotID, *req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, slot, "Slot updated successfully")
}
