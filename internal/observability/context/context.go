// Package context exposes request-scoped identifiers to logging and tracing.
package context

import (
	"context"

	"github.com/smallbiznis/progresspay/internal/auditcontext"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return auditcontext.WithRequestID(ctx, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return auditcontext.RequestIDFromContext(ctx)
}

// OrgIDFromContext returns the tenant as a string, empty when unset.
func OrgIDFromContext(ctx context.Context) string {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return ""
	}
	return orgID.String()
}

func ActorFromContext(ctx context.Context) (string, string) {
	return auditcontext.ActorFromContext(ctx)
}
