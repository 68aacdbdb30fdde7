package params

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type QueryParams struct {
	Limit      int
	Offset     int
	UnreadOnly bool
	Status     string
}

// NewQueryParams reads limit, offset, unread_only and status from the query string,
// falling back to defaults for missing or malformed values.
func NewQueryParams(ctx echo.Context) *QueryParams {
	p := &QueryParams{Limit: DefaultLimit}

	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if v, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && v >= 0 {
		p.Offset = v
	}
	if v, err := strconv.ParseBool(ctx.QueryParam("unread_only")); err == nil {
		p.UnreadOnly = v
	}
	p.Status = ctx.QueryParam("status")
	return p
}
