package handler

import (
	"strconv"
	"time"

	"marketplace-payouts/internal/adapter/http/middleware"
	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/pkg/apperror"
	"marketplace-payouts/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// actor returns the authenticated actor or writes 401.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Actor{}, false
	}
	return a, true
}

// uuidParam parses a path parameter or writes 400.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation(name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func pageQuery(c *gin.Context) domain.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(domain.DefaultPageSize)))
	return domain.Page{Page: page, PageSize: pageSize}.Normalize()
}

// payoutFilter reads status, from and to. Dates are RFC 3339 or YYYY-MM-DD;
// a bare "to" date covers that whole day.
func payoutFilter(c *gin.Context) (domain.PayoutFilter, error) {
	var f domain.PayoutFilter
	f.Status = domain.PayoutStatus(c.Query("status"))

	if s := c.Query("from"); s != "" {
		t, _, err := parseTime(s)
		if err != nil {
			return f, apperror.Validation("from must be RFC 3339 or YYYY-MM-DD")
		}
		f.From = &t
	}
	if s := c.Query("to"); s != "" {
		t, dateOnly, err := parseTime(s)
		if err != nil {
			return f, apperror.Validation("to must be RFC 3339 or YYYY-MM-DD")
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}
	if s := c.Query("vendor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return f, apperror.Validation("vendor_id must be a UUID")
		}
		f.VendorID = &id
	}
	return f, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	return t, true, err
}
