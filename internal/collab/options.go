package collab

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"collabhub/internal/config"
	"collabhub/internal/realtime"
)

const (
	DefaultCacheTimeout    = 5 * time.Minute
	DefaultRefreshInterval = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultErrorRetryDelay = time.Second
)

// Options configures a Store. Zero durations fall back to the defaults.
type Options struct {
	EnableRealTime      bool
	EnableCaching       bool
	CacheTimeout        time.Duration
	EnableMetrics       bool
	EnableNotifications bool
	AutoRefresh         bool
	RefreshInterval     time.Duration
	MaxRetries          int
	ErrorRetryDelay     time.Duration

	// Subscriber delivers collaboration_updated events when EnableRealTime is set.
	Subscriber realtime.Subscriber
	Clock      clockwork.Clock
	Logger     *zap.Logger
	// ActorID identifies the caller; LeaveHub uses it to drop the local membership.
	ActorID string
}

func DefaultOptions() Options {
	return Options{
		EnableRealTime:      true,
		EnableCaching:       true,
		CacheTimeout:        DefaultCacheTimeout,
		EnableMetrics:       true,
		EnableNotifications: true,
		AutoRefresh:         true,
		RefreshInterval:     DefaultRefreshInterval,
		MaxRetries:          DefaultMaxRetries,
		ErrorRetryDelay:     DefaultErrorRetryDelay,
	}
}

// OptionsFromConfig overlays the client section of collabhub.yml on DefaultOptions.
func OptionsFromConfig(cfg config.ClientConfig) Options {
	opts := DefaultOptions()
	opts.ActorID = cfg.ActorID
	setBool(&opts.EnableRealTime, cfg.EnableRealTime)
	setBool(&opts.EnableCaching, cfg.EnableCaching)
	setBool(&opts.EnableMetrics, cfg.EnableMetrics)
	setBool(&opts.EnableNotifications, cfg.EnableNotifications)
	setBool(&opts.AutoRefresh, cfg.AutoRefresh)
	if cfg.CacheTimeout > 0 {
		opts.CacheTimeout = cfg.CacheTimeout
	}
	if cfg.RefreshInterval > 0 {
		opts.RefreshInterval = cfg.RefreshInterval
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.ErrorRetryDelay > 0 {
		opts.ErrorRetryDelay = cfg.ErrorRetryDelay
	}
	return opts
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (o Options) withDefaults() Options {
	if o.CacheTimeout <= 0 {
		o.CacheTimeout = DefaultCacheTimeout
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.ErrorRetryDelay <= 0 {
		o.ErrorRetryDelay = DefaultErrorRetryDelay
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
