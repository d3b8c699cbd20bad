package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cerro-obs/cloudfrac/internal/cloudfrac"
	"github.com/cerro-obs/cloudfrac/internal/store"
)

var validate = validator.New()

// Series is the read contract the serving layer needs from the store.
type Series interface {
	GetLatest(site string) (cloudfrac.Row, error)
	GetRange(site string, from, to time.Time) ([]cloudfrac.Row, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. The API is
// read-only: it serves whatever the refresh scheduler has computed for the
// configured site.
func RegisterRoutes(app *fiber.App, series Series, site cloudfrac.Site) {
	v1 := app.Group("/api/v1")

	v1.Get("/cloudfraction/latest", func(c *fiber.Ctx) error {
		row, err := series.GetLatest(site.Name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no cloud fraction data yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch cloud fraction data")
		}

		return c.JSON(fiber.Map{
			"site": site.Name,
			"row":  row,
		})
	})

	v1.Get("/cloudfraction/series", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rows, err := series.GetRange(site.Name, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no cloud fraction data for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch cloud fraction series")
		}

		return c.JSON(fiber.Map{
			"site": site.Name,
			"from": req.From,
			"to":   req.To,
			"rows": rows,
		})
	})
}

// rangeQuery holds query parameters for the series endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (q *rangeQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
