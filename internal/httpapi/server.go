package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/globaltime"
	"horse.fit/gigradar/internal/metrics"
	"horse.fit/gigradar/internal/snapshot"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server exposes the persisted snapshots read-only. It never runs the pipeline.
type Server struct {
	store   snapshot.Store
	keyer   event.Keyer
	metrics *metrics.Metrics
	logger  zerolog.Logger
	opts    Options
}

type eventFilter struct {
	Category *event.Category
	Matched  *bool
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type snapshotSummary struct {
	ID          string    `json:"id"`
	CapturedAt  time.Time `json:"captured_at"`
	Events      int       `json:"events"`
	InterestSet int       `json:"interest_set"`
}

func NewServer(store snapshot.Store, keyer event.Keyer, m *metrics.Metrics, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		store:   store,
		keyer:   keyer,
		metrics: m,
		logger:  logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.routes()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("gigradar api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("gigradar api server stopped")
	return nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/events", s.handleEvents)
	api.GET("/events/new", s.handleNewEvents)
	api.GET("/snapshots", s.handleSnapshots)
	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if status >= 500 {
			_ = storeFailure(c, "serve request")
			return
		}
		_ = reject(c, status, message)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	return respond(c, map[string]any{
		"service": "gigradar",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleEvents(c echo.Context) error {
	filter, fieldErrors := parseEventFilter(c)
	if len(fieldErrors) > 0 {
		return rejectFilter(c, fieldErrors)
	}

	latest, err := s.store.Latest(c.Request().Context(), 1)
	if err != nil {
		s.logger.Error().Err(err).Msg("load latest snapshot failed")
		return storeFailure(c, "load snapshot")
	}
	if len(latest) == 0 {
		return noSnapshot(c)
	}

	return respond(c, eventPage(latest[0], latest[0].Events, filter))
}

// handleNewEvents diffs the two most recent snapshots. With a single snapshot every
// event is new.
func (s *Server) handleNewEvents(c echo.Context) error {
	filter, fieldErrors := parseEventFilter(c)
	if len(fieldErrors) > 0 {
		return rejectFilter(c, fieldErrors)
	}

	latest, err := s.store.Latest(c.Request().Context(), 2)
	if err != nil {
		s.logger.Error().Err(err).Msg("load snapshots for diff failed")
		return storeFailure(c, "load snapshots")
	}
	if len(latest) == 0 {
		return noSnapshot(c)
	}

	var prior *snapshot.Snapshot
	if len(latest) > 1 {
		prior = &latest[1]
	}
	fresh := snapshot.Diff(s.keyer, latest[0].Events, prior)

	data := eventPage(latest[0], fresh, filter)
	if prior != nil {
		data["prior_snapshot"] = summarize(*prior)
	}
	return respond(c, data)
}

func (s *Server) handleSnapshots(c echo.Context) error {
	infos, err := s.store.List(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list snapshots failed")
		return storeFailure(c, "list snapshots")
	}

	items := make([]snapshot.Info, 0, len(infos))
	for i := len(infos) - 1; i >= 0; i-- {
		items = append(items, infos[i])
	}
	return respond(c, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func parseEventFilter(c echo.Context) (eventFilter, map[string]string) {
	fieldErrors := make(map[string]string)
	filter := eventFilter{}

	if raw := strings.TrimSpace(c.QueryParam("category")); raw != "" {
		category, err := event.ParseCategory(raw)
		if err != nil {
			fieldErrors["category"] = "must be one of music, theatre, culture"
		} else {
			filter.Category = &category
		}
	}
	if raw := strings.TrimSpace(c.QueryParam("matched")); raw != "" {
		matched, err := strconv.ParseBool(raw)
		if err != nil {
			fieldErrors["matched"] = "must be true or false"
		} else {
			filter.Matched = &matched
		}
	}

	from, err := parseTimeFilter(c.QueryParam("from"), false)
	if err != nil {
		fieldErrors["from"] = "must be RFC3339 or YYYY-MM-DD"
	}
	to, err := parseTimeFilter(c.QueryParam("to"), true)
	if err != nil {
		fieldErrors["to"] = "must be RFC3339 or YYYY-MM-DD"
	}
	if from != nil && to != nil && from.After(*to) {
		fieldErrors["time_range"] = "from must be <= to"
	}
	filter.From, filter.To = from, to

	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		fieldErrors["page"] = err.Error()
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		fieldErrors["page_size"] = err.Error()
	}
	filter.Page, filter.PageSize = page, pageSize

	return filter, fieldErrors
}

func (f eventFilter) keep(e event.Event) bool {
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.Matched != nil {
		matched := e.InterestMatch != nil && *e.InterestMatch
		if matched != *f.Matched {
			return false
		}
	}
	if f.From != nil || f.To != nil {
		if e.Date == nil {
			return false
		}
		if f.From != nil && e.Date.Before(*f.From) {
			return false
		}
		if f.To != nil && e.Date.After(*f.To) {
			return false
		}
	}
	return true
}

func eventPage(snap snapshot.Snapshot, events []event.Event, filter eventFilter) map[string]any {
	kept := make([]event.Event, 0, len(events))
	for _, e := range events {
		if filter.keep(e) {
			kept = append(kept, e)
		}
	}

	total := len(kept)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + filter.PageSize - 1) / filter.PageSize
	}

	filters := map[string]any{
		"from": filter.From,
		"to":   filter.To,
	}
	if filter.Category != nil {
		filters["category"] = *filter.Category
	}
	if filter.Matched != nil {
		filters["matched"] = *filter.Matched
	}

	return map[string]any{
		"snapshot": summarize(snap),
		"items":    kept[start:end],
		"pagination": map[string]any{
			"page":        filter.Page,
			"page_size":   filter.PageSize,
			"total_items": total,
			"total_pages": totalPages,
		},
		"filters": filters,
	}
}

func summarize(snap snapshot.Snapshot) snapshotSummary {
	return snapshotSummary{
		ID:          snap.ID,
		CapturedAt:  snap.CapturedAt,
		Events:      len(snap.Events),
		InterestSet: len(snap.InterestSet),
	}
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseTimeFilter(raw string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}

	if day, err := time.Parse(event.DayLayout, trimmed); err == nil {
		utc := day.UTC()
		if endOfDay {
			utc = utc.Add((24 * time.Hour) - time.Nanosecond)
		}
		return &utc, nil
	}

	return nil, fmt.Errorf("invalid time format")
}
