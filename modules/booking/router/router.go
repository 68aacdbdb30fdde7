package router

import (
	"consult-booking/core/access"
	"consult-booking/core/middleware"
	"consult-booking/modules/booking/controller"

	"github.com/labstack/echo/v4"
)

type BookingRouter struct {
	controller *controller.BookingController
}

func NewBookingRouter(controller *controller.BookingController) *BookingRouter {
	return &BookingRouter{controller: controller}
}

func (r *BookingRouter) Register(e *echo.Group, mw *middleware.Middleware) {
	group := e.Group("/bookings")

	// Payment provider callbacks are unauthenticated.
	group.GET("/payments/callback", r.controller.PaymentCallback)
	group.POST("/payments/callback", r.controller.PaymentCallback)

	private := group.Group("", mw.AuthMiddleware())
	private.POST("", r.controller.CreateBooking, mw.RequireAction(access.ActionRequestBooking))
	private.GET("", r.controller.ListBookings)
	private.GET("/:id", r.controller.GetBooking)
	private.PATCH("/:id/status", r.controller.ChangeStatus)
}
