package router

import (
	"consult-booking/core/access"
	"consult-booking/core/middleware"
	"consult-booking/modules/availability/controller"

	"github.com/labstack/echo/v4"
)

type SlotRouter struct {
	controller *controller.SlotController
}

func NewSlotRouter(controller *controller.SlotController) *SlotRouter {
	return &SlotRouter{controller: controller}
}

func (r *SlotRouter) Register(e *echo.Group, mw *middleware.Middleware) {
	group := e.Group("/availability")
	group.GET("/consultants/:consultantId", r.controller.GetConsultantSlots)

	private := group.Group("", mw.AuthMiddleware(), mw.RequireAction(access.ActionManageOwnSlots))
	private.POST("", r.controller.CreateSlot)
	private.POST("/me", r.controller.CreateMySlot)
	private.GET("/me", r.controller.GetMySlots)
	private.PATCH("/:id", r.controller.UpdateSlot)
}
