package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"black-heatmap/internal/observability"
)

// Options are shared by every concrete connector.
type Options struct {
	Logger       zerolog.Logger
	Metrics      *observability.Metrics
	QueryTimeout time.Duration // zero leaves timeouts to the driver
}

// QueryContext derives the context for one statement.
func (o Options) QueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.QueryTimeout > 0 {
		return context.WithTimeout(ctx, o.QueryTimeout)
	}
	return context.WithCancel(ctx)
}
