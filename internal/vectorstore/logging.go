package vectorstore

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectorcore/internal/logging"
)

// warnOnError logs a non-nil, non-NotFound error at Warn via the shared
// logger. log may be nil (tests, or callers that don't wire logging), in
// which case this is a no-op — every call site already has metrics.observe
// for outcome tracking regardless.
func warnOnError(ctx context.Context, log *logging.Logger, provider, op string, err error) {
	if log == nil || err == nil {
		return
	}
	if verr, ok := err.(*Error); ok && verr.Kind == KindNotFound {
		return
	}
	log.Warn(ctx, "vectorstore operation failed",
		zap.String("provider", provider), zap.String("op", op), zap.Error(err))
}
