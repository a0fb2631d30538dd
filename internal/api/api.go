// Package api exposes the read-only catalog endpoints and the on-demand
// recommendation trigger over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/flow"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/logging"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Controller wires the HTTP routes over the datastore and the workflow
// service.
type Controller struct {
	Echo     *echo.Echo
	ds       datastore.Interface
	service  *flow.Service
	queues   *jobqueue.Manager
	settings *conf.Settings
	logger   *slog.Logger
}

// New creates the controller and registers all routes.
func New(settings *conf.Settings, ds datastore.Interface, service *flow.Service, queues *jobqueue.Manager) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:     e,
		ds:       ds,
		service:  service,
		queues:   queues,
		settings: settings,
		logger:   logging.ForService("api"),
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	g := c.Echo.Group("/api/v1")

	g.GET("/health", c.Health)
	g.GET("/queues", c.QueueStats)

	g.GET("/artists", c.ListArtists)
	g.GET("/artists/:id", c.GetArtist)
	g.GET("/tracks", c.ListTracks)
	g.GET("/tracks/:id", c.GetTrack)
	g.GET("/albums", c.ListAlbums)
	g.GET("/albums/:id", c.GetAlbum)
	g.GET("/playlists", c.ListPlaylists)
	g.GET("/playlists/:id", c.GetPlaylist)

	g.POST("/users/:id/tracks", c.IngestUserTracks)
	g.POST("/users/:id/recommendations", c.RecommendUser)
}

// Start runs the HTTP server until the listener fails or is shut down.
func (c *Controller) Start() error {
	addr := fmt.Sprintf("%s:%d", c.settings.API.Host, c.settings.API.Port)
	c.logger.Info("starting http server", "addr", addr)
	return c.Echo.Start(addr)
}

// Shutdown gracefully stops the HTTP server.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// pagination reads skip/limit query parameters with sane bounds.
func pagination(ctx echo.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(ctx.QueryParam("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, err := strconv.Atoi(ctx.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return skip, limit
}

// Health reports process liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// QueueStats reports per-queue job counts and task timings.
func (c *Controller) QueueStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.queues.Stats())
}

func (c *Controller) ListArtists(ctx echo.Context) error {
	skip, limit := pagination(ctx)
	artists, err := c.ds.ListArtists(skip, limit)
	if err != nil {
		return c.serverError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, artists)
}

func (c *Controller) GetArtist(ctx echo.Context) error {
	artist, err := c.ds.GetArtist(ctx.Param("id"))
	if err != nil {
		return c.serverError(ctx, err)
	}
	if artist == nil {
		return notFound(ctx, "artist")
	}
	return ctx.JSON(http.StatusOK, artist)
}

func (c *Controller) ListTracks(ctx echo.Context) error {
	skip, limit := pagination(ctx)
	tracks, err := c.ds.ListTracks(skip, limit)
	if err != nil {
		return c.serverError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, tracks)
}

func (c *Controller) GetTrack(ctx echo.Context) error {
	track, err := c.ds.GetTrack(ctx.Param("id"))
	if err != nil {
		return c.serverError(ctx, err)
	}
	if track == nil {
		return notFound(ctx, "track")
	}
	return ctx.JSON(http.StatusOK, track)
}

func (c *Controller) ListAlbums(ctx echo.Context) error {
	skip, limit := pagination(ctx)
	albums, err := c.ds.ListAlbums(skip, limit)
	if err != nil {
		return c.serverError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, albums)
}

func (c *Controller) GetAlbum(ctx echo.Context) error {
	album, err := c.ds.GetAlbum(ctx.Param("id"))
	if err != nil {
		return c.serverError(ctx, err)
	}
	if album == nil {
		return notFound(ctx, "album")
	}
	return ctx.JSON(http.StatusOK, album)
}

func (c *Controller) ListPlaylists(ctx echo.Context) error {
	skip, limit := pagination(ctx)
	playlists, err := c.ds.ListPlaylists(skip, limit)
	if err != nil {
		return c.serverError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, playlists)
}

func (c *Controller) GetPlaylist(ctx echo.Context) error {
	playlist, err := c.ds.GetPlaylist(ctx.Param("id"))
	if err != nil {
		return c.serverError(ctx, err)
	}
	if playlist == nil {
		return notFound(ctx, "playlist")
	}
	return ctx.JSON(http.StatusOK, playlist)
}

// IngestUserTracks accepts a user's top tracks as a raw JSON listing and
// queues the library ingestion workflow. The body is the platform's
// top-tracks response shape, an object with an "items" array of tracks.
func (c *Controller) IngestUserTracks(ctx echo.Context) error {
	userID := ctx.Param("id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}
	doc, err := jason.NewObjectFromReader(ctx.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object")
	}
	items, err := doc.GetObjectArray("items")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "items array is required")
	}
	if err := c.service.IngestUserTracks(userID, items); err != nil {
		return c.serverError(ctx, err)
	}
	return ctx.JSON(http.StatusAccepted, map[string]any{
		"user_id": userID,
		"tracks":  len(items),
	})
}

// RecommendUser computes embedding distances for one user's candidate
// pairs synchronously. Long-running; the request carries a hard deadline.
func (c *Controller) RecommendUser(ctx echo.Context) error {
	userID := ctx.Param("id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 5*time.Minute)
	defer cancel()

	scored, err := c.service.RecommendUser(reqCtx, userID, limit)
	if err != nil {
		return c.serverError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"user_id":      userID,
		"pairs_scored": scored,
	})
}

func notFound(ctx echo.Context, kind string) error {
	return echo.NewHTTPError(http.StatusNotFound, kind+" not found")
}

func (c *Controller) serverError(ctx echo.Context, err error) error {
	c.logger.Error("request failed",
		"path", ctx.Request().URL.Path, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
