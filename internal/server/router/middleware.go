package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

func secureHeaders(logger *zap.Logger) gin.HandlerFunc {
	mw := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	return func(c *gin.Context) {
		if err := mw.Process(c.Writer, c.Request); err != nil {
			logger.Warn("secure headers blocked request", zap.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Next()
	}
}

// rateLimit adapts httprate to gin; limited requests get a 429 from httprate.
func rateLimit(requests int, window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Minute
	}
	limit := httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))

	return func(c *gin.Context) {
		passed := false
		limit(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}
