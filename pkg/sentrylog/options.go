package sentrylog

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/crimson-sun/sentrylog/internal/config"
	"github.com/crimson-sun/sentrylog/internal/model"
)

type options struct {
	clientOptions  sentry.ClientOptions
	levels         []map[string]Level
	skipInit       bool
	hub            *sentry.Hub
	reporter       Reporter
	autoClearScope bool
	silent         bool
	levelKey       string
	flushTimeout   time.Duration
}

// Option configures a Transport.
type Option func(*options)

// WithClientOptions sets the options passed to sentry.Init. Unset DSN,
// server name, environment, debug, sample rate and breadcrumb limit are
// filled from SENTRY_DSN, SENTRY_ENVIRONMENT/APP_ENV, SENTRY_DEBUG and
// built-in defaults.
func WithClientOptions(co sentry.ClientOptions) Option {
	return func(o *options) { o.clientOptions = co }
}

// WithLevels overlays custom level mappings on the defaults. May be given
// more than once; later overlays win.
func WithLevels(levels map[string]Level) Option {
	return func(o *options) { o.levels = append(o.levels, levels) }
}

// WithSkipInit reports through sentry.CurrentHub() without calling
// sentry.Init. Use when the application already initialized Sentry.
func WithSkipInit() Option {
	return func(o *options) { o.skipInit = true }
}

// WithHub reports through the given hub. Implies WithSkipInit.
func WithHub(hub *sentry.Hub) Option {
	return func(o *options) { o.hub = hub }
}

// WithReporter replaces the Sentry reporter entirely.
func WithReporter(r Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithAutoClearScope controls whether scope state is reset before each
// record. Default: true. When off, tags, extras and user carry over.
func WithAutoClearScope(on bool) Option {
	return func(o *options) { o.autoClearScope = on }
}

// WithSilent suppresses all reporting. Logged notifications still fire.
func WithSilent(silent bool) Option {
	return func(o *options) { o.silent = silent }
}

// WithLevelKey names the field that may carry the level inline, so it is
// kept out of extras. Default: "level".
func WithLevelKey(key string) Option {
	return func(o *options) { o.levelKey = key }
}

// WithFlushTimeout sets how long Close waits for Sentry when its context
// has no deadline. Default: 5s, or SENTRYLOG_FLUSH_TIMEOUT.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) { o.flushTimeout = d }
}

func defaultOptions() options {
	return options{
		autoClearScope: true,
		levelKey:       model.DefaultLevelKey,
	}
}

// resolveClientOptions fills unset client options. Explicit values win.
func resolveClientOptions(co sentry.ClientOptions) sentry.ClientOptions {
	r := config.ResolveSentry(config.SentryConfig{
		DSN:            co.Dsn,
		ServerName:     co.ServerName,
		Environment:    co.Environment,
		Debug:          co.Debug,
		SampleRate:     co.SampleRate,
		MaxBreadcrumbs: co.MaxBreadcrumbs,
	})
	co.Dsn = r.DSN
	co.ServerName = r.ServerName
	co.Environment = r.Environment
	co.Debug = r.Debug
	co.SampleRate = r.SampleRate
	co.MaxBreadcrumbs = r.MaxBreadcrumbs
	return co
}

// resolveFlushTimeout returns the explicit timeout or the configured default.
func resolveFlushTimeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return config.ResolveSentry(config.SentryConfig{}).FlushTimeout.Duration
}
