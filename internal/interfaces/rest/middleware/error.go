package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandlingOption options for error handling
type ErrorHandlingOption struct {
	// Handler writes unexpected errors and recovered panics
	Handler func(c echo.Context, err error)
	// HTTPErrorHandler writes errors raised by echo itself, eg. 404 or 405
	HTTPErrorHandler func(c echo.Context, err *echo.HTTPError)
}

// ErrorHandling turn errors and panics returned from controllers into responses
// **DO NOT return error anymore**
func ErrorHandling(options ...*ErrorHandlingOption) echo.MiddlewareFunc {
	custom := &ErrorHandlingOption{
		Handler: func(c echo.Context, err error) {
			c.String(http.StatusInternalServerError, err.Error())
		},
		HTTPErrorHandler: func(c echo.Context, err *echo.HTTPError) {
			c.String(err.Code, fmt.Sprint(err.Message))
		},
	}
	if len(options) > 0 {
		option := options[0]
		if option.Handler != nil {
			custom.Handler = option.Handler
		}
		if option.HTTPErrorHandler != nil {
			custom.HTTPErrorHandler = option.HTTPErrorHandler
		}
	}
	handler, httpHandler := custom.Handler, custom.HTTPErrorHandler
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if any := recover(); any != nil {
					err, ok := any.(error)
					if !ok {
						err = fmt.Errorf("panic: %v", any)
					}
					handler(c, err)
				}
			}()
			if err := next(c); err != nil {
				if c.Response().Committed {
					return nil
				}
				if v, ok := err.(*echo.HTTPError); ok {
					httpHandler(c, v)
				} else {
					handler(c, err)
				}
			}
			return nil
		}
	}
}
