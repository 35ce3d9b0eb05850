package slacksink

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the environment configuration of a sink.
type Config struct {
	WebhookURL string `env:"SLACK_WEBHOOK_URL,required,notEmpty"`

	BatchSizeLimit int           `env:"SLACK_BATCH_SIZE_LIMIT" envDefault:"50"`
	Period         time.Duration `env:"SLACK_PERIOD" envDefault:"5s"`
	QueueLimit     int           `env:"SLACK_QUEUE_LIMIT" envDefault:"100000"` // 0 = unbounded
	MinimumLevel   string        `env:"SLACK_MINIMUM_LEVEL" envDefault:"verbose"`

	ShowDefaultAttachments         bool `env:"SLACK_SHOW_DEFAULT_ATTACHMENTS" envDefault:"true"`
	DefaultAttachmentsShortFormat  bool `env:"SLACK_DEFAULT_ATTACHMENTS_SHORT_FORMAT" envDefault:"true"`
	ShowPropertyAttachments        bool `env:"SLACK_SHOW_PROPERTY_ATTACHMENTS" envDefault:"true"`
	PropertyAttachmentsShortFormat bool `env:"SLACK_PROPERTY_ATTACHMENTS_SHORT_FORMAT" envDefault:"true"`
	ShowExceptionAttachments       bool `env:"SLACK_SHOW_EXCEPTION_ATTACHMENTS" envDefault:"true"`

	// AttachmentColors is a list of Level:color pairs, e.g. "Error:#ff0000,Warning:#ffa500".
	AttachmentColors string `env:"SLACK_ATTACHMENT_COLORS"`

	CustomChannel  string `env:"SLACK_CUSTOM_CHANNEL"`
	CustomUserName string `env:"SLACK_CUSTOM_USERNAME"`
	CustomIcon     string `env:"SLACK_CUSTOM_ICON"`

	PropertyAllowList    []string `env:"SLACK_PROPERTY_ALLOW_LIST" envSeparator:","`
	PropertyDenyList     []string `env:"SLACK_PROPERTY_DENY_LIST" envSeparator:","`
	PropertyOverrideList []string `env:"SLACK_PROPERTY_OVERRIDE_LIST" envSeparator:","`

	TimestampFormat string        `env:"SLACK_TIMESTAMP_FORMAT"`
	RequestTimeout  time.Duration `env:"SLACK_REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SLACK_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	Name string `env:"SLACK_SINK_NAME" envDefault:"slack"`
}

// LoadConfig reads the configuration from environment variables after loading
// the given .env files (".env" when none are given). Missing .env files are ignored.
func LoadConfig(files ...string) (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return cfg, nil
}

// Options converts the configuration into sink options. The webhook URL is not
// included; pass it to New.
func (c *Config) Options() ([]Option, error) {
	level, err := ParseLevel(c.MinimumLevel)
	if err != nil {
		return nil, invalidOptionf("SLACK_MINIMUM_LEVEL: %v", err)
	}

	colors, err := parseAttachmentColors(c.AttachmentColors)
	if err != nil {
		return nil, err
	}

	overrides := make([]OverridableProperty, 0, len(c.PropertyOverrideList))

	for _, name := range trimList(c.PropertyOverrideList) {
		p, err := ParseOverridableProperty(name)
		if err != nil {
			return nil, err
		}

		overrides = append(overrides, p)
	}

	opts := []Option{
		WithBatchSizeLimit(c.BatchSizeLimit),
		WithPeriod(c.Period),
		WithMinimumLevel(level),
		WithDefaultAttachments(c.ShowDefaultAttachments, c.DefaultAttachmentsShortFormat),
		WithPropertyAttachments(c.ShowPropertyAttachments, c.PropertyAttachmentsShortFormat),
		WithExceptionAttachments(c.ShowExceptionAttachments),
		WithAttachmentColors(colors),
		WithChannel(c.CustomChannel),
		WithUserName(c.CustomUserName),
		WithIcon(c.CustomIcon),
		WithPropertyOverrides(overrides...),
		WithTimestampFormat(c.TimestampFormat),
		WithRequestTimeout(c.RequestTimeout),
		WithShutdownTimeout(c.ShutdownTimeout),
		WithName(c.Name),
	}

	if c.QueueLimit == 0 {
		opts = append(opts, WithUnboundedQueue())
	} else {
		opts = append(opts, WithQueueLimit(c.QueueLimit))
	}

	if allow := trimList(c.PropertyAllowList); len(allow) > 0 {
		opts = append(opts, WithPropertyAllowList(allow...))
	}

	if deny := trimList(c.PropertyDenyList); len(deny) > 0 {
		opts = append(opts, WithPropertyDenyList(deny...))
	}

	return opts, nil
}

// parseAttachmentColors parses "Level:color" pairs separated by commas.
func parseAttachmentColors(s string) (map[Level]string, error) {
	colors := make(map[Level]string)

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, value, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(value) == "" {
			return nil, invalidOptionf("SLACK_ATTACHMENT_COLORS: expected Level:color, got %q", pair)
		}

		level, err := ParseLevel(name)
		if err != nil {
			return nil, invalidOptionf("SLACK_ATTACHMENT_COLORS: %v", err)
		}

		colors[level] = strings.TrimSpace(value)
	}

	return colors, nil
}

func trimList(list []string) []string {
	var out []string

	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
