package stripe

import (
	"context"
	"fmt"

	"github.com/flakex/marketplace-billing/pkg/logger"
)

// leveledLogger routes the SDK's internal logging through the service logger.
type leveledLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func newLeveledLogger(ctx context.Context, logg *logger.Logger) *leveledLogger {
	return &leveledLogger{ctx: logg.WithField(ctx, "component", "stripe-go"), logg: logg}
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.logg.Warn(l.ctx, fmt.Sprintf(format, v...))
}

// Request failures are returned to callers and logged there, so they stay at warn here.
func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.logg.Warn(l.ctx, fmt.Sprintf(format, v...))
}
