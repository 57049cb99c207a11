package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// MaxLimit caps any list or window size requested by a client.
const MaxLimit = 500

// GetLimitParam reads the "limit" query parameter, falling back to def
// when it is missing or out of range.
func GetLimitParam(c echo.Context, def int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
