package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/hbomb79/mediaload/internal/api/downloads"
	"github.com/hbomb79/mediaload/internal/api/files"
	"github.com/hbomb79/mediaload/internal/api/gen"
	"github.com/hbomb79/mediaload/internal/api/medias"
	"github.com/hbomb79/mediaload/internal/http/websocket"
	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"HOST_ADDR" env-default:"0.0.0.0:5000"`

		// Directory containing the web UI (index.html and static assets). When
		// empty, only the API is served.
		WebRoot string `yaml:"web_root" env:"WEB_ROOT"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// DownloadService is the union of the download controller requirements
	// and the metadata prober.
	DownloadService interface {
		downloads.Service
		medias.Prober
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsibility
	// is to create the routes MediaLoad exposes, and to manage ongoing web socket connections and events.
	RestGateway struct {
		*broadcaster
		config             *RestConfig
		ec                 *echo.Echo
		socket             *websocket.SocketHub
		downloadController controller
		mediaController    controller
		fileController     controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers.
func NewRestGateway(config *RestConfig, downloadService DownloadService, library files.Library) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.HTTPErrorHandler = gen.GetHTTPErrorHandler(ec.DefaultHTTPErrorHandler)

	socket := websocket.New()
	gateway := &RestGateway{
		broadcaster:        newBroadcaster(socket, downloadService),
		config:             config,
		ec:                 ec,
		socket:             socket,
		downloadController: downloads.New(downloadService),
		mediaController:    medias.New(downloadService),
		fileController:     files.New(library),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.RemoveTrailingSlash())

	ec.GET("/api/activity/ws", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	api := ec.Group("/api")
	gateway.downloadController.SetRoutes(api)
	gateway.mediaController.SetRoutes(api)
	gateway.fileController.SetRoutes(api)

	if config.WebRoot != "" {
		log.Emit(logger.INFO, "Serving web UI from %s\n", config.WebRoot)
		ec.Use(middleware.StaticWithConfig(middleware.StaticConfig{
			Root:  config.WebRoot,
			Index: "index.html",
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/")
			},
		}))
	}

	return gateway
}

// ServeHTTP allows the gateway to be exercised directly by an HTTP test recorder.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

// Run starts the HTTP server and websocket hub, blocking until the context
// provided is cancelled or the server fails.
func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	defer ctxCancel(nil)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.SUCCESS, "Listening on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	return nil
}
