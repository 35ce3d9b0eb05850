package slacksink

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBatchSizeLimit  = 50
	DefaultPeriod          = 5 * time.Second
	DefaultQueueLimit      = 100000
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultName            = "slack"

	// DefaultAttachmentColor is used for any level missing from AttachmentColors.
	DefaultAttachmentColor = "#777"

	// UnboundedQueue as QueueLimit disables dropping on a full queue.
	UnboundedQueue = -1
)

// OverridableProperty names a message field that a log event may override
// through a property of the same name.
type OverridableProperty int

const (
	OverrideCustomChannel OverridableProperty = iota
	OverrideCustomUserName
	OverrideCustomIcon
)

var overridableNames = map[OverridableProperty]string{
	OverrideCustomChannel:  "CustomChannel",
	OverrideCustomUserName: "CustomUserName",
	OverrideCustomIcon:     "CustomIcon",
}

// String returns the property name an event must carry to override the field.
func (p OverridableProperty) String() string {
	if name, ok := overridableNames[p]; ok {
		return name
	}

	return fmt.Sprintf("OverridableProperty(%d)", int(p))
}

// ParseOverridableProperty accepts "CustomChannel", "CustomUserName", "CustomIcon"
// or the short forms "channel", "username", "icon", ignoring case.
func ParseOverridableProperty(s string) (OverridableProperty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customchannel", "channel":
		return OverrideCustomChannel, nil
	case "customusername", "username":
		return OverrideCustomUserName, nil
	case "customicon", "icon":
		return OverrideCustomIcon, nil
	}

	return 0, invalidOptionf("unknown overridable property %q", s)
}

// defaultAttachmentColors maps every level to a Slack attachment color.
func defaultAttachmentColors() map[Level]string {
	return map[Level]string{
		LevelVerbose:     "#777",
		LevelDebug:       "#777",
		LevelInformation: "#5bc0de",
		LevelWarning:     "#f0ad4e",
		LevelError:       "#d9534f",
		LevelFatal:       "#d9534f",
	}
}

// Options is the complete configuration of a sink. It is fixed once the sink is built.
type Options struct {
	WebhookURL string

	BatchSizeLimit int
	Period         time.Duration

	// QueueLimit bounds the number of buffered events; UnboundedQueue disables the bound.
	QueueLimit int

	MinimumLevel Level

	ShowDefaultAttachments         bool
	DefaultAttachmentsShortFormat  bool
	ShowPropertyAttachments        bool
	PropertyAttachmentsShortFormat bool
	ShowExceptionAttachments       bool

	AttachmentColors map[Level]string

	CustomChannel  string
	CustomUserName string
	CustomIcon     string

	// PropertyAllowList and PropertyDenyList are matched case-insensitively.
	// nil means the list is not configured.
	PropertyAllowList []string
	PropertyDenyList  []string

	PropertyOverrideList []OverridableProperty

	// TimestampFormat is a Go time layout; RFC3339 is used when empty.
	TimestampFormat string

	TextFormatter TextFormatter

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	SelfLog      io.Writer
	SelfLogColor *bool

	MetricsRegisterer prometheus.Registerer
	Name              string
}

// Option configures a sink.
type Option func(*Options)

// defaultOptions returns the options a sink starts from before Option values are applied.
func defaultOptions(webhookURL string) Options {
	return Options{
		WebhookURL:                     webhookURL,
		BatchSizeLimit:                 DefaultBatchSizeLimit,
		Period:                         DefaultPeriod,
		QueueLimit:                     DefaultQueueLimit,
		MinimumLevel:                   LevelVerbose,
		ShowDefaultAttachments:         true,
		DefaultAttachmentsShortFormat:  true,
		ShowPropertyAttachments:        true,
		PropertyAttachmentsShortFormat: true,
		ShowExceptionAttachments:       true,
		AttachmentColors:               defaultAttachmentColors(),
		TextFormatter:                  NewMessageTextFormatter(),
		RequestTimeout:                 DefaultRequestTimeout,
		ShutdownTimeout:                DefaultShutdownTimeout,
		SelfLog:                        os.Stderr,
		Name:                           DefaultName,
	}
}

// NewOptions applies opts on top of the defaults and validates the result.
// It is what New uses; call it directly to build a standalone MessageFormatter.
func NewOptions(webhookURL string, opts ...Option) (Options, error) {
	o := defaultOptions(webhookURL)

	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if err := o.validate(); err != nil {
		return Options{}, err
	}

	return o.clone(), nil
}

// clone returns a deep copy so a running sink never shares mutable state with its caller.
func (o Options) clone() Options {
	c := o

	c.AttachmentColors = make(map[Level]string, len(o.AttachmentColors))
	for k, v := range o.AttachmentColors {
		c.AttachmentColors[k] = v
	}

	if o.PropertyAllowList != nil {
		c.PropertyAllowList = append([]string{}, o.PropertyAllowList...)
	}

	if o.PropertyDenyList != nil {
		c.PropertyDenyList = append([]string{}, o.PropertyDenyList...)
	}

	c.PropertyOverrideList = append([]OverridableProperty(nil), o.PropertyOverrideList...)

	return c
}

// validate reports the first configuration problem, wrapped in ErrInvalidOptions.
func (o *Options) validate() error {
	if strings.TrimSpace(o.WebhookURL) == "" {
		return invalidOptionf("webhook URL is required")
	}

	u, err := url.Parse(o.WebhookURL)
	if err != nil {
		return invalidOptionf("webhook URL: %v", err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalidOptionf("webhook URL must be an absolute http(s) URL, got %q", o.WebhookURL)
	}

	if o.BatchSizeLimit <= 0 {
		return invalidOptionf("batch size limit must be positive, got %d", o.BatchSizeLimit)
	}

	if o.Period <= 0 {
		return invalidOptionf("period must be positive, got %s", o.Period)
	}

	if o.QueueLimit <= 0 && o.QueueLimit != UnboundedQueue {
		return invalidOptionf("queue limit must be positive or UnboundedQueue, got %d", o.QueueLimit)
	}

	if !o.MinimumLevel.IsValid() {
		return invalidOptionf("minimum level %d is not a valid level", int(o.MinimumLevel))
	}

	for _, p := range o.PropertyOverrideList {
		if _, ok := overridableNames[p]; !ok {
			return invalidOptionf("unknown overridable property %d", int(p))
		}
	}

	if o.TextFormatter == nil {
		return invalidOptionf("text formatter must not be nil")
	}

	if o.RequestTimeout <= 0 {
		return invalidOptionf("request timeout must be positive, got %s", o.RequestTimeout)
	}

	if o.ShutdownTimeout <= 0 {
		return invalidOptionf("shutdown timeout must be positive, got %s", o.ShutdownTimeout)
	}

	if o.SelfLog == nil {
		o.SelfLog = io.Discard
	}

	if o.Name == "" {
		o.Name = DefaultName
	}

	return nil
}

// colorFor never misses: unmapped levels get DefaultAttachmentColor.
func (o *Options) colorFor(level Level) string {
	if c, ok := o.AttachmentColors[level]; ok && c != "" {
		return c
	}

	return DefaultAttachmentColor
}

// WithBatchSizeLimit sets how many events are delivered per batch.
func WithBatchSizeLimit(n int) Option {
	return func(o *Options) {
		o.BatchSizeLimit = n
	}
}

// WithPeriod sets the maximum time between batches.
func WithPeriod(d time.Duration) Option {
	return func(o *Options) {
		o.Period = d
	}
}

// WithQueueLimit bounds the number of buffered events. Events arriving while
// the queue is full are dropped.
func WithQueueLimit(n int) Option {
	return func(o *Options) {
		o.QueueLimit = n
	}
}

// WithUnboundedQueue removes the queue bound; no event is ever dropped for lack of space.
func WithUnboundedQueue() Option {
	return func(o *Options) {
		o.QueueLimit = UnboundedQueue
	}
}

// WithMinimumLevel drops events below level before they are queued.
func WithMinimumLevel(level Level) Option {
	return func(o *Options) {
		o.MinimumLevel = level
	}
}

// WithDefaultAttachments toggles the Level/Timestamp attachment and its short layout.
func WithDefaultAttachments(show, shortFormat bool) Option {
	return func(o *Options) {
		o.ShowDefaultAttachments = show
		o.DefaultAttachmentsShortFormat = shortFormat
	}
}

// WithPropertyAttachments toggles the event property attachment and its short layout.
func WithPropertyAttachments(show, shortFormat bool) Option {
	return func(o *Options) {
		o.ShowPropertyAttachments = show
		o.PropertyAttachmentsShortFormat = shortFormat
	}
}

// WithExceptionAttachments toggles the exception attachment.
func WithExceptionAttachments(show bool) Option {
	return func(o *Options) {
		o.ShowExceptionAttachments = show
	}
}

// WithAttachmentColors merges colors into the default level-to-color map.
func WithAttachmentColors(colors map[Level]string) Option {
	return func(o *Options) {
		if o.AttachmentColors == nil {
			o.AttachmentColors = defaultAttachmentColors()
		}

		for k, v := range colors {
			o.AttachmentColors[k] = v
		}
	}
}

// WithChannel sets the default channel to post in.
func WithChannel(channel string) Option {
	return func(o *Options) {
		o.CustomChannel = channel
	}
}

// WithUserName sets the default user name shown as the sender.
func WithUserName(name string) Option {
	return func(o *Options) {
		o.CustomUserName = name
	}
}

// WithIcon sets the default icon emoji, e.g. ":ghost:".
func WithIcon(icon string) Option {
	return func(o *Options) {
		o.CustomIcon = icon
	}
}

// WithPropertyAllowList restricts property and exception fields to names.
// It takes precedence over the deny-list.
func WithPropertyAllowList(names ...string) Option {
	return func(o *Options) {
		o.PropertyAllowList = append([]string{}, names...)
	}
}

// WithPropertyDenyList excludes property and exception fields by name.
func WithPropertyDenyList(names ...string) Option {
	return func(o *Options) {
		o.PropertyDenyList = append([]string{}, names...)
	}
}

// WithPropertyOverrides lets events override the given message fields through
// properties named CustomChannel, CustomUserName or CustomIcon.
func WithPropertyOverrides(props ...OverridableProperty) Option {
	return func(o *Options) {
		o.PropertyOverrideList = append(o.PropertyOverrideList, props...)
	}
}

// WithTimestampFormat sets the Go time layout used for the Timestamp field.
func WithTimestampFormat(layout string) Option {
	return func(o *Options) {
		o.TimestampFormat = layout
	}
}

// WithTextFormatter replaces the formatter that renders the message text.
func WithTextFormatter(f TextFormatter) Option {
	return func(o *Options) {
		if f != nil {
			o.TextFormatter = f
		}
	}
}

// WithRequestTimeout bounds each webhook POST.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = d
	}
}

// WithShutdownTimeout bounds the final flush performed by Close.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = d
	}
}

// WithSelfLog sets the writer receiving the sink's own diagnostics.
// Use io.Discard to silence them.
func WithSelfLog(w io.Writer) Option {
	return func(o *Options) {
		o.SelfLog = w
	}
}

// WithSelfLogColor forces colored diagnostics on or off instead of detecting a terminal.
func WithSelfLogColor(enabled bool) Option {
	return func(o *Options) {
		o.SelfLogColor = &enabled
	}
}

// WithMetricsRegisterer registers the sink's Prometheus collectors on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.MetricsRegisterer = reg
	}
}

// WithName names the sink in diagnostics and in the "sink" metrics label.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}
