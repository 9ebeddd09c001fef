package rest

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/course-progress/internal/enrolment"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/pot-code/course-progress/internal/interfaces/rest/handler"
	"github.com/pot-code/course-progress/internal/interfaces/rest/middleware"
	"github.com/pot-code/course-progress/internal/progress"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

const (
	apiVersion = "api/v1"
	wsPrefix   = "/" + apiVersion + "/ws"
)

// Dependencies services the transport layer delegates to
type Dependencies struct {
	Conn              driver.ITransactionalDB
	KV                driver.KeyValueDB
	Resolver          *progress.ContextResolver
	Aggregator        *progress.Aggregator
	Hub               *progress.Hub
	CompletionUseCase enrolment.CompletionUseCase
	UUIDGenerator     uuid.Generator
}

// Serve create http transport server, it shuts down gracefully once ctx is done
func Serve(ctx context.Context, option *infra.AppConfig, deps *Dependencies, logger *zap.Logger) error {
	app := NewApp(option, deps, logger)
	printRoutes(app, logger)

	errc := make(chan error, 1)
	go func() {
		errc <- app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port))
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewApp build the echo application with every route registered
func NewApp(option *infra.AppConfig, deps *Dependencies, logger *zap.Logger) *echo.Echo {
	var (
		app       = echo.New()
		validator = validate.NewValidator()
		websocket = infra.NewWebsocket(option.Course.PageURL)
		rdb       = deps.KV
		jwtUtil   = auth.NewJWTUtil(option.Security.JWTMethod,
			option.Security.JWTSecret,
			option.Security.TokenName,
			option.SessionTimeout)
		jwtMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList: func(token string) (bool, error) {
				return rdb.Exists(token)
			},
		})
		refreshMiddleware = middleware.RefreshToken(jwtUtil, &middleware.RefreshTokenOption{
			Threshold: option.SessionRefresh,
		})
	)
	app.HideBanner = true

	registerLivenessProbe(app, deps.Conn, rdb)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)

		app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
			Skipper: func(e echo.Context) bool {
				return strings.HasPrefix(e.Request().RequestURI, "/healthz")
			},
		}))
	}
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				c.JSON(http.StatusInternalServerError,
					handler.NewRESTStandardError(http.StatusInternalServerError, err.Error()).SetTraceID(traceID),
				)
				logger.Error(err.Error(), zap.String("trace.id", traceID))
			},
			HTTPErrorHandler: func(c echo.Context, err *echo.HTTPError) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				c.JSON(err.Code, handler.NewRESTStandardError(err.Code, fmt.Sprint(err.Message)).SetTraceID(traceID))
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
		Skipper: func(c echo.Context) bool {
			// sessions live as long as the page
			return strings.HasPrefix(c.Request().URL.Path, wsPrefix)
		},
	}))

	var (
		ProgressHandler   = handler.NewProgressHandler(deps.Resolver, deps.Aggregator, jwtUtil, validator)
		CompletionHandler = handler.NewCompletionHandler(deps.CompletionUseCase, deps.Resolver, jwtUtil, validator)
		SessionHandler    = handler.NewSessionHandler(deps.Resolver, deps.Aggregator, deps.Hub, websocket, deps.UUIDGenerator, jwtUtil, validator)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion:  apiVersion,
			middlewares: []echo.MiddlewareFunc{echo_middleware.RequestID(), middleware.SetTraceLogger(logger), jwtMiddleware},
			groups: []*apiGroup{
				{
					prefix:      "/enrolments",
					middlewares: []echo.MiddlewareFunc{refreshMiddleware},
					routes: []*route{
						{http.MethodGet, "/:enrolmentId/progress", ProgressHandler.HandleGetProgress, nil},
						{http.MethodGet, "/:enrolmentId/lessons/:lessonId/url", ProgressHandler.HandleGetLessonURL, nil},
					},
				},
				{
					prefix:      "/lessons",
					middlewares: []echo.MiddlewareFunc{refreshMiddleware},
					routes: []*route{
						{http.MethodGet, "/completion", CompletionHandler.HandleGetCompletion, nil},
						{http.MethodPost, "/completion", CompletionHandler.HandleCompleteLesson, nil},
					},
				},
				{
					prefix: "/ws",
					routes: []*route{
						{http.MethodGet, "/enrolments/:enrolmentId", SessionHandler.HandleSession, nil},
					},
				},
			},
		})
	return app
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, db driver.ITransactionalDB, rdb driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		if db.Ping() == nil && rdb.Ping() == nil {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
