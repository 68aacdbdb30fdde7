package notification

import (
	"consult-booking/core/cache"
	"consult-booking/core/database"
	"consult-booking/core/middleware"
	"consult-booking/modules/notification/controller"
	"consult-booking/modules/notification/repository"
	"consult-booking/modules/notification/router"
	"consult-booking/modules/notification/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Group, db database.IDatabase, c cache.Cache, mw *middleware.Middleware) *service.NotificationService {
	repo := repository.NewNotificationRepository(db)
	svc := service.NewNotificationService(repo, c)
	ctrl := controller.NewNotificationController(svc)

	router.NewNotificationRouter(ctrl).Register(e, mw)

	return svc
}
