package httpapi

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weatherservice/internal/perflog"
	"github.com/i474232898/weatherservice/internal/render"
	"github.com/i474232898/weatherservice/internal/weather"
)

var validate = validator.New()

const (
	defaultHistoryWindow = 7 * 24 * time.Hour
	defaultMapWidth      = 84
	defaultMapHeight     = 100
	defaultMapScale      = 4
	maxMapCells          = 400
	maxMapScale          = 16
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, perf *perflog.Service, logger *slog.Logger) {
	h := &handlers{service: service, perf: perf, logger: logger}
	api := app.Group("/api")

	api.Get("/nearest", h.nearest)
	api.Get("/stations", h.stations)
	api.Get("/stationsWithWeather", h.stationsWithWeather)
	api.Get("/station/:stationName", h.station)
	api.Get("/history/:stationId", h.history)
	api.Get("/locations", h.locations)
	api.Get("/interpolate", h.interpolate)
	api.Get("/map/:field", h.heatMap)

	if perf != nil {
		api.Get("/performance/stats", h.performanceStats)
		api.Get("/performance/logs", h.performanceLogs)
	}
}

type handlers struct {
	service *weather.Service
	perf    *perflog.Service
	logger  *slog.Logger
}

// mapError turns service errors into HTTP errors. Anything unexpected is
// logged and reported as a generic 500.
func (h *handlers) mapError(c *fiber.Ctx, err error, notFound string) error {
	switch {
	case errors.Is(err, weather.ErrInvalidArgument):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, notFound)
	}
	h.logger.Error("request failed", "path", c.Path(), "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
}

type nearestQuery struct {
	Location string `validate:"required"`
}

func (h *handlers) nearest(c *fiber.Ctx) error {
	q := nearestQuery{Location: strings.TrimSpace(c.Query("location"))}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "location query parameter is required")
	}

	res, err := h.service.Nearest(c.UserContext(), q.Location)
	if err != nil {
		return h.mapError(c, err, "no station found near "+q.Location)
	}
	return c.JSON(toNearestDTO(res))
}

func (h *handlers) stations(c *fiber.Ctx) error {
	stations, err := h.service.ListStations(c.UserContext())
	if err != nil {
		return h.mapError(c, err, "no stations")
	}
	out := make([]stationDTO, len(stations))
	for i, s := range stations {
		out[i] = toStationDTO(s)
	}
	return c.JSON(out)
}

func (h *handlers) stationsWithWeather(c *fiber.Ctx) error {
	pairs, err := h.service.ListStationsWithLatest(c.UserContext())
	if err != nil {
		return h.mapError(c, err, "no stations")
	}
	out := make([]stationWithWeatherDTO, len(pairs))
	for i := range pairs {
		out[i] = toStationWithWeatherDTO(pairs[i].Station, &pairs[i].Observation)
	}
	return c.JSON(out)
}

func (h *handlers) station(c *fiber.Ctx) error {
	name := c.Params("stationName")
	st, obs, err := h.service.StationByName(c.UserContext(), name)
	if err != nil {
		return h.mapError(c, err, "station not found")
	}
	return c.JSON(toStationWithWeatherDTO(st, obs))
}

// historyQuery holds the parsed parameters of the history endpoint.
type historyQuery struct {
	StationID int       `validate:"gt=0"`
	Start     time.Time `validate:"required"`
	End       time.Time `validate:"required,gtefield=Start"`
}

func (q *historyQuery) bind(c *fiber.Ctx, now time.Time) error {
	id, err := strconv.Atoi(c.Params("stationId"))
	if err != nil {
		return errors.New("stationId must be an integer")
	}
	q.StationID = id

	q.End = now
	if s := c.Query("end"); s != "" {
		if q.End, err = parseTime(s); err != nil {
			return err
		}
	}
	q.Start = q.End.Add(-defaultHistoryWindow)
	if s := c.Query("start"); s != "" {
		if q.Start, err = parseTime(s); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlers) history(c *fiber.Ctx) error {
	var q historyQuery
	if err := q.bind(c, time.Now().UTC()); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid history query: stationId must be positive and end must not be before start")
	}

	obs, err := h.service.History(c.UserContext(), q.StationID, q.Start, q.End)
	if err != nil {
		return h.mapError(c, err, "station not found")
	}
	out := make([]weatherDataDTO, len(obs))
	for i, o := range obs {
		out[i] = toWeatherDataDTO(o)
	}
	return c.JSON(out)
}

func (h *handlers) locations(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", weather.MaxLocations)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	locs, err := h.service.Locations(c.UserContext(), limit, offset)
	if err != nil {
		return h.mapError(c, err, "no locations")
	}
	out := make([]locationDTO, len(locs))
	for i, l := range locs {
		out[i] = toLocationDTO(l)
	}
	return c.JSON(out)
}

type interpolateQuery struct {
	Lat   float64 `validate:"gte=-90,lte=90"`
	Lon   float64 `validate:"gte=-180,lte=180"`
	Field string  `validate:"required"`
}

func (h *handlers) interpolate(c *fiber.Ctx) error {
	var (
		q   interpolateQuery
		err error
	)
	if q.Lat, err = strconv.ParseFloat(c.Query("lat"), 64); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	if q.Lon, err = strconv.ParseFloat(c.Query("lon"), 64); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lon must be a number")
	}
	q.Field = c.Query("field", string(weather.FieldTemperature))
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "coordinates out of range")
	}
	field, err := weather.ParseField(q.Field)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	est, err := h.service.Interpolate(c.UserContext(), q.Lat, q.Lon, field)
	if err != nil {
		return h.mapError(c, err, "no readings to interpolate")
	}
	return c.JSON(est)
}

func (h *handlers) heatMap(c *fiber.Ctx) error {
	field, err := weather.ParseField(c.Params("field"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	width, err := queryInt(c, "width", defaultMapWidth)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	height, err := queryInt(c, "height", defaultMapHeight)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	scale, err := queryInt(c, "scale", defaultMapScale)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if width > maxMapCells || height > maxMapCells || scale <= 0 || scale > maxMapScale {
		return fiber.NewError(fiber.StatusBadRequest, "map size out of range")
	}

	raster, err := h.service.Raster(c.UserContext(), field, width, height)
	if err != nil {
		return h.mapError(c, err, "no readings to map")
	}
	stations, err := h.service.ListStations(c.UserContext())
	if err != nil {
		return h.mapError(c, err, "no stations")
	}
	png, err := render.HeatMap(raster, scale, stations)
	if err != nil {
		return h.mapError(c, err, "no readings to map")
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (h *handlers) performanceStats(c *fiber.Ctx) error {
	return c.JSON(h.perf.Stats())
}

func (h *handlers) performanceLogs(c *fiber.Ctx) error {
	f := perflog.Filter{Path: c.Query("path")}
	var err error
	if s := c.Query("startDate"); s != "" {
		if f.Start, err = parseTime(s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if s := c.Query("endDate"); s != "" {
		if f.End, err = parseTime(s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(h.perf.Logs(f))
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return v, nil
}

// parseTime accepts RFC3339, a plain date, a date-time without zone (read
// as UTC) or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", time.DateOnly} {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, 2006-01-02 or unix seconds")
}
