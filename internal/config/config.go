// Package config loads and validates the operator's config.json. Invalid
// configuration is fatal before anything is armed.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
	"github.com/Toskysun/sdu-seat/internal/scheduler"
)

// Error marks a configuration problem. Always fatal at startup.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string { return fmt.Sprintf("config %s: %s", e.Field, e.Msg) }

// EmailConfig configures the SMTP notifier. Disabled unless Enable is set.
type EmailConfig struct {
	Enable         bool   `mapstructure:"enable"`
	SMTPHost       string `mapstructure:"smtpHost"`
	SMTPPort       int    `mapstructure:"smtpPort"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	RecipientEmail string `mapstructure:"recipientEmail"`
	SSLEnable      bool   `mapstructure:"sslEnable"`
}

// WeChatSessionConfig carries the captured WeChat browser cookies used to
// restore a provider session without the in-app OAuth handshake.
type WeChatSessionConfig struct {
	UserObj    string `mapstructure:"userObj"`
	User       string `mapstructure:"user"`
	School     string `mapstructure:"school"`
	Dinepo     string `mapstructure:"dinepo"`
	ConnectSid string `mapstructure:"connectSid"`
}

// Config is the full operator configuration. JSON keys match the
// historical config.json format, so existing files keep working.
type Config struct {
	UserID   string              `mapstructure:"userid"`
	DeviceID string              `mapstructure:"deviceId"`
	Area     string              `mapstructure:"area"`
	Seats    map[string][]string `mapstructure:"seats"`
	Only     bool                `mapstructure:"only"`

	Time   string `mapstructure:"time"`   // daily trigger, HH:mm[:ss[.SSS]]
	Period string `mapstructure:"period"` // booking window, HH:mm-HH:mm

	Retry         int  `mapstructure:"retry"`
	RetryInterval int  `mapstructure:"retryInterval"` // seconds
	Delta         int  `mapstructure:"delta"`         // book for today+delta days
	BookOnce      bool `mapstructure:"bookOnce"`

	EnableEarlyLogin  bool `mapstructure:"enableEarlyLogin"`
	EarlyLoginMinutes int  `mapstructure:"earlyLoginMinutes"`
	MaxLoginAttempts  int  `mapstructure:"maxLoginAttempts"`
	KeepAliveSeconds  int  `mapstructure:"keepAliveSeconds"` // 0 disables the prober

	HistoryPath      string `mapstructure:"historyPath"`
	SessionCachePath string `mapstructure:"sessionCachePath"`

	EmailNotification *EmailConfig         `mapstructure:"emailNotification"`
	WeChatSession     *WeChatSessionConfig `mapstructure:"wechatSession"`
}

// Load reads configuration from the given file (or ./config.json when
// empty), applies defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetDefault("time", "06:02")
	v.SetDefault("period", "08:00-22:30")
	v.SetDefault("retry", 10)
	v.SetDefault("retryInterval", 2)
	v.SetDefault("maxLoginAttempts", 50)
	v.SetDefault("enableEarlyLogin", true)
	v.SetDefault("earlyLoginMinutes", 5)
	v.SetDefault("historyPath", "sdu-seat-history.db")
	v.SetDefault("sessionCachePath", "sdu-seat-session.cache")

	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Field: "file", Msg: err.Error()}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Field: "file", Msg: "malformed configuration: " + err.Error()}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.UserID == "" {
		return &Error{Field: "userid", Msg: "student id must not be empty"}
	}
	if c.Area == "" {
		return &Error{Field: "area", Msg: "target area must not be empty"}
	}
	if len(c.Seats) == 0 {
		return &Error{Field: "seats", Msg: "at least one room with preferred seats is required"}
	}
	if _, err := scheduler.ParseClock(c.Time); err != nil {
		return &Error{Field: "time", Msg: err.Error()}
	}
	if _, err := booking.ParseWindow(c.Period); err != nil {
		return &Error{Field: "period", Msg: err.Error()}
	}
	if c.Retry < 0 {
		return &Error{Field: "retry", Msg: "retry count must not be negative"}
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 30
	}
	if c.Email() != nil && c.EmailNotification.SMTPHost == "" {
		return &Error{Field: "emailNotification.smtpHost", Msg: "required when email notification is enabled"}
	}
	return nil
}

// Window returns the parsed booking window. Valid after Load.
func (c *Config) Window() booking.Window {
	w, _ := booking.ParseWindow(c.Period)
	return w
}

// TriggerClock returns the parsed daily trigger time. Valid after Load.
func (c *Config) TriggerClock() scheduler.Clock {
	clk, _ := scheduler.ParseClock(c.Time)
	return clk
}

// TargetDate is the date the run books for: today plus delta days.
func (c *Config) TargetDate(now time.Time) string {
	return now.AddDate(0, 0, c.Delta).Format("2006-01-02")
}

// RetrySleep is the pause between booking passes.
func (c *Config) RetrySleep() time.Duration {
	return time.Duration(c.RetryInterval) * time.Second
}

// Email returns the notifier config, or nil when disabled.
func (c *Config) Email() *EmailConfig {
	if c.EmailNotification == nil || !c.EmailNotification.Enable {
		return nil
	}
	return c.EmailNotification
}
