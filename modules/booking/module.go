package booking

import (
	"consult-booking/core/broker"
	"consult-booking/core/cache"
	"consult-booking/core/config"
	"consult-booking/core/database"
	"consult-booking/core/middleware"
	"consult-booking/core/queue"
	"consult-booking/core/storage"
	accountRepository "consult-booking/modules/account/repository"
	slotRepository "consult-booking/modules/availability/repository"
	"consult-booking/modules/booking/controller"
	"consult-booking/modules/booking/repository"
	"consult-booking/modules/booking/router"
	"consult-booking/modules/booking/service"
	"consult-booking/modules/booking/worker"
	calendarService "consult-booking/modules/calendar/service"
	notificationService "consult-booking/modules/notification/service"
	paymentService "consult-booking/modules/payment/service"

	"github.com/labstack/echo/v4"
)

type Options struct {
	Slots     slotRepository.SlotRepository
	Notifier  notificationService.Emitter
	Gateway   paymentService.Gateway
	Calendar  calendarService.Calendar
	Publisher broker.Publisher
	Enqueuer  queue.Enqueuer
	Cache     cache.Cache
	Store     storage.ObjectStore
	Config    *config.Config
}

// Init registers the booking routes and returns the reminder handler for the task worker.
func Init(e *echo.Group, db *database.Database, mw *middleware.Middleware, opts Options) *worker.ReminderHandler {
	repo := repository.NewBookingRepository(db)

	svc := service.NewBookingService(service.Deps{
		DB:        db,
		Bookings:  repo,
		Slots:     opts.Slots,
		Users:     accountRepository.NewUserRepository(db),
		Gateway:   opts.Gateway,
		Calendar:  opts.Calendar,
		Notifier:  opts.Notifier,
		Publisher: opts.Publisher,
		Enqueuer:  opts.Enqueuer,
		Booking:   opts.Config.Booking,
		Payment:   opts.Config.Payment,
	})
	ctrl := controller.NewBookingController(svc, opts.Cache, opts.Store)

	router.NewBookingRouter(ctrl).Register(e, mw)

	return worker.NewReminderHandler(db, repo, opts.Notifier)
}
