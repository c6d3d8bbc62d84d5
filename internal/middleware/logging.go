package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"signalhub/pkg/logger"
)

// RequestLogger writes one structured line per request. Health checks are skipped.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, "/health")
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID),
				logger.String("remote_ip", v.RemoteIP),
			}
			switch {
			case v.Error != nil:
				log.Warn("Request", append(fields, logger.Error(v.Error))...)
			case v.Status >= 500:
				log.Warn("Request", fields...)
			default:
				log.Info("Request", fields...)
			}
			return nil
		},
	})
}
