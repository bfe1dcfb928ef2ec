package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Over-billing policies applied when previous + this period + stored materials
// exceed a line's scheduled value.
const (
	OverBillingWarn   = "warn"
	OverBillingReject = "reject"
)

// BillingPolicy holds hot-reloadable billing rules.
type BillingPolicy struct {
	OverBilling         string  `mapstructure:"overBilling"`
	DefaultRetainagePct float64 `mapstructure:"defaultRetainagePct"`
}

func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		OverBilling:         OverBillingWarn,
		DefaultRetainagePct: 0,
	}
}

// RejectOverBilling reports whether over-billed lines must fail validation.
func (p BillingPolicy) RejectOverBilling() bool {
	return p.OverBilling == OverBillingReject
}

// DefaultRetainage returns the default retainage percentage as a decimal.
func (p BillingPolicy) DefaultRetainage() decimal.Decimal {
	return decimal.NewFromFloat(p.DefaultRetainagePct).Round(4)
}

type BillingPolicyHolder struct {
	current atomic.Value // holds BillingPolicy
}

// NewStaticBillingPolicy returns a holder that never reloads.
func NewStaticBillingPolicy(policy BillingPolicy) *BillingPolicyHolder {
	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewBillingPolicyHolder(cfg Config, log *zap.Logger) (*BillingPolicyHolder, error) {
	v := viper.New()

	if cfg.BillingConfigPath != "" {
		v.SetConfigFile(cfg.BillingConfigPath)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/progresspay")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PROGRESSPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingPolicy()
	v.SetDefault("billing.overBilling", defaults.OverBilling)
	v.SetDefault("billing.defaultRetainagePct", defaults.DefaultRetainagePct)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read billing config: %w", err)
		}
		fileLoaded = false
	}

	policy, err := decodeBillingPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBillingPolicy(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingPolicy(v)
		if err != nil {
			log.Warn("billing policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing policy reloaded",
			zap.String("file", e.Name),
			zap.String("over_billing", updated.OverBilling),
		)
	})

	return holder, nil
}

func (h *BillingPolicyHolder) Get() BillingPolicy {
	if h == nil {
		return DefaultBillingPolicy()
	}
	return h.current.Load().(BillingPolicy)
}

func decodeBillingPolicy(v *viper.Viper) (BillingPolicy, error) {
	var policy BillingPolicy
	if err := v.UnmarshalKey("billing", &policy); err != nil {
		return BillingPolicy{}, fmt.Errorf("decode billing config: %w", err)
	}
	policy.OverBilling = strings.ToLower(strings.TrimSpace(policy.OverBilling))
	if err := validateBillingPolicy(policy); err != nil {
		return BillingPolicy{}, err
	}
	return policy, nil
}

func validateBillingPolicy(p BillingPolicy) error {
	switch p.OverBilling {
	case OverBillingWarn, OverBillingReject:
	default:
		return fmt.Errorf("billing.overBilling must be %q or %q", OverBillingWarn, OverBillingReject)
	}
	if p.DefaultRetainagePct < 0 || p.DefaultRetainagePct > 100 {
		return errors.New("billing.defaultRetainagePct must be within 0..100")
	}
	return nil
}
