package api

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/signalnode/internal/logging"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, Accept, Origin"
	corsMaxAge  = "86400"
	authRealm   = `Basic realm="SignalNode API"`
)

func setCORSHeaders(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", corsMethods)
	h.Set("Access-Control-Allow-Headers", corsHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
}

// preflightHandler answers OPTIONS requests, which never reach Huma middleware.
func preflightHandler(origin string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		setCORSHeaders(w.Header(), origin)
		w.WriteHeader(http.StatusNoContent)
	}
}

func corsMiddleware(origin string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ctx.SetHeader("Access-Control-Allow-Origin", origin)
		ctx.SetHeader("Access-Control-Allow-Methods", corsMethods)
		ctx.SetHeader("Access-Control-Allow-Headers", corsHeaders)
		ctx.SetHeader("Access-Control-Max-Age", corsMaxAge)
		next(ctx)
	}
}

// loggingMiddleware logs each request at a level chosen by its status.
func loggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if q := ctx.URL().RawQuery; q != "" {
		attrs = append(attrs, slog.String("query", q))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs, slog.Int("status", status), slog.Duration("duration", time.Since(start)))

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case ctx.Method() == http.MethodGet:
		// Polling clients hit read endpoints every few seconds.
		level = slog.LevelDebug
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}

// basicAuthMiddleware checks credentials on operations that declare a
// security requirement. Event stream clients may pass base64 credentials in
// the auth query parameter instead of the header.
func basicAuthMiddleware(api huma.API, username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		deny := func(msg string) {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, msg)
		}

		encoded := ctx.Query("auth")
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				deny("Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		}
		if encoded == "" {
			deny("Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			deny("Invalid credentials format")
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			deny("Invalid credentials format")
			return
		}
		if subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			deny("Invalid credentials")
			return
		}
		next(ctx)
	}
}
