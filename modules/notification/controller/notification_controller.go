package controller

import (
	"consult-booking/core/access"
	"consult-booking/core/controller"
	"consult-booking/core/errors"
	"consult-booking/core/middleware"
	"consult-booking/core/params"
	"consult-booking/modules/notification/dto"
	"consult-booking/modules/notification/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type NotificationController struct {
	service *service.NotificationService
	controller.BaseController
}

func NewNotificationController(service *service.NotificationService) *NotificationController {
	return &NotificationController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

// GetMyNotifications retrieves the caller's notifications, newest first
// @Summary List notifications
// @Tags Notification
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Offset (default 0)"
// @Param unread_only query bool false "Only unread"
// @Success 200 {object} controller.SuccessResponse
// @Failure 401 {object} controller.ErrorResponse
// @Router /notifications [get]
func (c *NotificationController) GetMyNotifications(ctx echo.Context) error {
	identity, ok := identityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	queryParams := params.NewQueryParams(ctx)
	result, err := c.service.GetMyNotifications(ctx.Request().Context(), identity.ID, *queryParams)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, result, "Notifications retrieved successfully")
}

// MarkOneAsRead marks a single notification as read
// @Summary Mark notification read
// @Tags Notification
// @Security BearerAuth
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} controller.SuccessResponse
// @Failure 404 {object} controller.ErrorResponse
// @Router /notifications/{id}/read [patch]
func (c *NotificationController) MarkOneAsRead(ctx echo.Context) error {
	identity, ok := identityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	notificationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrValidation, "Invalid notification id")
	}

	notif, err := c.service.MarkRead(ctx.Request().Context(), identity.ID, notificationID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, notif, "Notification marked as read")
}

// MarkAsRead marks specific notifications as read
// @Summary Mark notifications read
// @Tags Notification
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.MarkAsReadRequest true "Notification IDs"
// @Success 200 {object} controller.SuccessResponse
// @Failure 400 {object} controller.ErrorResponse
// @Router /notifications/mark-read [put]
func (c *NotificationController) MarkAsRead(ctx echo.Context) error {
	identity, ok := identityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	req := new(dto.MarkAsReadRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	if err := c.service.MarkAsRead(ctx.Request().Context(), identity.ID, req.IDs); err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, nil, "Marked as read successfully")
}

// MarkAllAsRead marks all of the caller's notifications as read
// @Summary Mark all notifications read
// @Tags Notification
// @Security BearerAuth
// @Produce json
// @Success 200 {object} controller.SuccessResponse
// @Router /notifications/mark-all-read [put]
func (c *NotificationController) MarkAllAsRead(ctx echo.Context) error {
	identity, ok := identityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	if err := c.service.MarkAllAsRead(ctx.Request().Context(), identity.ID); err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, nil, "Marked all as read successfully")
}

// CountUnread counts unread notifications
// @Summary Count unread notifications
// @Tags Notification
// @Security BearerAuth
// @Produce json
// @Success 200 {object} controller.SuccessResponse
// @Router /notifications/unread-count [get]
func (c *NotificationController) CountUnread(ctx echo.Context) error {
	identity, ok := identityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	count, err := c.service.CountUnread(ctx.Request().Context(), identity.ID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, map[string]int{"count": count}, "Unread count retrieved")
}

func identityFrom(ctx echo.Context) (access.Identity, bool) {
	return middleware.IdentityFrom(ctx)
}
