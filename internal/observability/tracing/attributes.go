package tracing

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/progresspay/internal/billingerr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var sensitiveKeys = []string{"password", "token", "secret", "authorization", "cookie"}

// SafeAttributes drops attributes whose key looks like a credential.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		sensitive := false
		for _, s := range sensitiveKeys {
			if strings.Contains(key, s) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError reduces err to its billing error code so messages with amounts or
// identifiers never land in span events.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	var billingErr *billingerr.Error
	if errors.As(err, &billingErr) && billingErr.Code != "" {
		return errors.New(billingErr.Code)
	}
	return errors.New("internal_error")
}

// ExtractContext pulls the remote span context out of carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
