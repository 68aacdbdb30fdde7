package calendar

import (
	"consult-booking/core/config"
	"consult-booking/modules/calendar/service"
)

// Init builds the calendar adapter used by the booking orchestrator. It has no
// routes of its own.
func Init(cfg config.CalendarConfig) service.Calendar {
	return service.NewGoogleCalendar(cfg)
}
