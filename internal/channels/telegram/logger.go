package telegram

import (
	"fmt"
	"log/slog"
)

// slogLogger routes telego's internal logging into slog.
type slogLogger struct{}

func (slogLogger) Debugf(format string, args ...any) {
	slog.Debug("telego: " + fmt.Sprintf(format, args...))
}

func (slogLogger) Errorf(format string, args ...any) {
	slog.Warn("telego: " + fmt.Sprintf(format, args...))
}
