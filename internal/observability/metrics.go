package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
)

type meterContextKey struct{}

// WithMeter stores a meter on the context. The middleware installs one per
// request so counters emitted while reconciling a notification share the
// request's attributes.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterContextKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the meter installed by WithMeter. Callers outside
// a request, such as the follow-up worker, get a fresh meter.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	meter, ok := ctx.Value(meterContextKey{}).(sentry.Meter)
	if !ok || meter == nil {
		return sentry.NewMeter(ctx).WithCtx(ctx)
	}
	return meter.WithCtx(ctx)
}
