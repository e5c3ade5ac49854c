package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/service"
)

// failService maps a service error onto the response envelope. notFound is
// the code used for service.ErrNotFound on this route.
func failService(c *gin.Context, log zerolog.Logger, err error, notFound response.ErrCode) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, verr.Fields)
	case errors.Is(err, service.ErrUnauthorized):
		response.Fail(c, http.StatusForbidden, response.ErrNotClassOwner)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, notFound)
	default:
		log.Error().Err(err).
			Str("route", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// dateQuery parses an optional YYYY-MM-DD query parameter. Missing yields
// the zero Date.
func dateQuery(c *gin.Context, key string) (calendar.Date, bool) {
	raw := c.Query(key)
	if raw == "" {
		return calendar.Date{}, true
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidDate)
		return calendar.Date{}, false
	}
	return d, true
}

// monthParam validates the :month path parameter.
func monthParam(c *gin.Context) (string, bool) {
	month := c.Param("month")
	if !calendar.ValidMonthKey(month) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidMonth)
		return "", false
	}
	return month, true
}

// intQuery reads an optional positive integer query parameter, capped at max.
func intQuery(c *gin.Context, key string, max int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{key: "must be a whole number between 1 and " + strconv.Itoa(max)})
		return 0, false
	}
	return n, true
}
