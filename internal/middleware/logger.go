package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

// Logger only logs slow or failed requests.
func Logger() fiber.Handler {
	return fiberlogger.New(fiberlogger.Config{
		Format:     "${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		Output: &filteredWriter{
			log:             logger.Named("http"),
			slowThreshold:    500 * time.Millisecond,
			errorStatusFloor: 400,
		},
	})
}

// filteredWriter parses "STATUS | LATENCY | METHOD PATH" lines and drops
// the fast successful ones.
type filteredWriter struct {
	log              *zap.Logger
	slowThreshold    time.Duration
	errorStatusFloor int
}

func (w *filteredWriter) Write(p []byte) (int, error) {
	parts := strings.Split(strings.TrimSpace(string(p)), " | ")
	if len(parts) < 3 {
		w.log.Info(strings.TrimSpace(string(p)))
		return len(p), nil
	}

	status, _ := strconv.Atoi(parts[0])
	latency, err := time.ParseDuration(parts[1])
	slow := err == nil && latency >= w.slowThreshold

	switch {
	case status >= 500:
		w.log.Error("request failed", zap.Int("status", status), zap.String("latency", parts[1]), zap.String("route", parts[2]))
	case status >= w.errorStatusFloor:
		w.log.Warn("request rejected", zap.Int("status", status), zap.String("latency", parts[1]), zap.String("route", parts[2]))
	case slow:
		w.log.Warn("slow request", zap.Int("status", status), zap.String("latency", parts[1]), zap.String("route", parts[2]))
	}
	return len(p), nil
}
