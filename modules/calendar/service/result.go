package service

import (
	"context"

	"consult-booking/core/errors"
	"consult-booking/modules/calendar/dto"
)

// Result carries either a value or the error that prevented it. Callers that
// treat an operation as best-effort branch on Ok instead of discarding the error.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// TryCreateEvent runs CreateEvent and folds every failure into an upstream
// error so callers can degrade gracefully without a meeting link.
func TryCreateEvent(ctx context.Context, cal Calendar, req dto.CreateEventRequest) Result[*dto.Event] {
	if cal == nil {
		return Result[*dto.Event]{Err: errors.NewAppError(errors.ErrConfiguration, "Calendar integration is not configured", nil)}
	}
	event, err := cal.CreateEvent(ctx, req)
	if err != nil {
		code := errors.CodeOf(err)
		if code != errors.ErrUpstream && code != errors.ErrConfiguration {
			err = errors.NewAppError(errors.ErrUpstream, "Calendar event creation failed", err)
		}
		return Result[*dto.Event]{Err: err}
	}
	return Result[*dto.Event]{Value: event}
}
