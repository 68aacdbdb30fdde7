package availability

import (
	"consult-booking/core/database"
	"consult-booking/core/middleware"
	accountRepository "consult-booking/modules/account/repository"
	"consult-booking/modules/availability/controller"
	"consult-booking/modules/availability/repository"
	"consult-booking/modules/availability/router"
	"consult-booking/modules/availability/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Group, db *database.Database, mw *middleware.Middleware) repository.SlotRepository {
	repo := repository.NewSlotRepository(db)
	svc := service.NewSlotService(db, repo, accountRepository.NewUserRepository(db))
	ctrl := controller.NewSlotController(svc)

	router.NewSlotRouter(ctrl).Register(e, mw)

	return repo
}
