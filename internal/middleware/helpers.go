package middleware

import (
	"context"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// LayoutFunc copies layout data (session, CSRF token, theme) from the Echo
// context into the context.Context templ components render with.
type LayoutFunc func(echo.Context, context.Context) context.Context

const layoutFuncKey = "layout_func"

// InjectLayout stores fn on every request so Render can apply it. Keeping the
// injector on the request keeps this package free of plugin imports.
func InjectLayout(fn LayoutFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(layoutFuncKey, fn)
			return next(c)
		}
	}
}

// IsHTMX reports whether the request came from HTMX and is not a boosted
// navigation. Boosted requests expect full pages.
func IsHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true" &&
		c.Request().Header.Get("HX-Boosted") != "true"
}

// Render writes component with the given status after applying the request's
// layout injector.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	ctx := c.Request().Context()
	if fn, ok := c.Get(layoutFuncKey).(LayoutFunc); ok && fn != nil {
		ctx = fn(c, ctx)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(statusCode)
	return component.Render(ctx, c.Response().Writer)
}
