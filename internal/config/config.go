package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database for Europe/Zurich on minimal hosts

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Mail       MailConfig       `yaml:"mail"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Rules      RulesConfig      `yaml:"rules"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
	// PublicURL is used for links in e-mails, e.g. http://192.168.1.10:8000.
	PublicURL      string   `yaml:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Debug          bool     `yaml:"debug"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
}

type SheetsConfig struct {
	SpreadsheetID     string `yaml:"spreadsheet_id"`
	CredentialsFile   string `yaml:"credentials_file"`
	CredentialsJSON   string `yaml:"credentials_json"`
	DaysSheet         string `yaml:"days_sheet"`
	ReservationsSheet string `yaml:"reservations_sheet"`
	TillSheet         string `yaml:"till_sheet"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Interval      string `yaml:"interval"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// IntervalDuration parses Interval, defaulting to 24h.
func (b BackupConfig) IntervalDuration() time.Duration {
	if d, err := time.ParseDuration(b.Interval); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Enabled  bool `yaml:"enabled"`
	Requests int  `yaml:"requests"`
	// WindowSeconds is the length of one counting window.
	WindowSeconds int `yaml:"window_seconds"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	StartTLS bool   `yaml:"starttls"`
	// ListRecipients receive the daily reservation list.
	ListRecipients []string `yaml:"list_recipients"`
	// AccountingRecipients receive the till closing report.
	AccountingRecipients []string `yaml:"accounting_recipients"`
	TimeoutSeconds       int      `yaml:"timeout_seconds"`
}

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

type PricingConfig struct {
	StudentMenu string `yaml:"student_menu"`
	StaffMenu   string `yaml:"staff_menu"`
	Sandwich    string `yaml:"sandwich"`
	Beverage    string `yaml:"beverage"`
	Chocolate   string `yaml:"chocolate"`
}

type RulesConfig struct {
	MaxReservations int      `yaml:"max_reservations"`
	MaxMenus        int      `yaml:"max_menus"`
	CashFloat       string   `yaml:"cash_float"`
	Weekdays        []string `yaml:"weekdays"`
	Timezone        string   `yaml:"timezone"`
}

type ScheduleConfig struct {
	// SendListAt is the HH:MM local time of the automatic daily close; empty disables it.
	SendListAt string `yaml:"send_list_at"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

// Load reads the YAML file at path (configs/config.yaml when empty), expanding
// ${ENV_VAR} placeholders. A .env file next to the working directory is loaded first.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:8000"
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/cafeteria.db"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Sheets.RequestsPerMinute <= 0 {
		c.Sheets.RequestsPerMinute = 60
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 30
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 25
	}
	if c.Mail.From == "" {
		c.Mail.From = "cafeteria@local"
	}
	if c.Mail.TimeoutSeconds <= 0 {
		c.Mail.TimeoutSeconds = 15
	}

	p := &c.Pricing
	setDefault(&p.StudentMenu, "8")
	setDefault(&p.StaffMenu, "12")
	setDefault(&p.Sandwich, "6")
	setDefault(&p.Beverage, "2")
	setDefault(&p.Chocolate, "1.5")

	if c.Rules.MaxReservations <= 0 {
		c.Rules.MaxReservations = 40
	}
	if c.Rules.MaxMenus <= 0 {
		c.Rules.MaxMenus = 45
	}
	setDefault(&c.Rules.CashFloat, "150")
	if len(c.Rules.Weekdays) == 0 {
		c.Rules.Weekdays = []string{"Lundi", "Mardi", "Jeudi", "Vendredi"}
	}
	setDefault(&c.Rules.Timezone, "Europe/Zurich")

	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

func setDefault(v *string, def string) {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSheets:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheet_id is required for the sheets backend")
		}
		if c.Sheets.CredentialsFile == "" && c.Sheets.CredentialsJSON == "" {
			return fmt.Errorf("sheets.credentials_file or sheets.credentials_json is required")
		}
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"pricing.student_menu": c.Pricing.StudentMenu,
		"pricing.staff_menu":   c.Pricing.StaffMenu,
		"pricing.sandwich":     c.Pricing.Sandwich,
		"pricing.beverage":     c.Pricing.Beverage,
		"pricing.chocolate":    c.Pricing.Chocolate,
		"rules.cash_float":     c.Rules.CashFloat,
	} {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid amount %q", name, v)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s: amount must not be negative", name)
		}
	}
	if _, _, err := c.SendListTime(); err != nil {
		return err
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Rules.Timezone)
	if err != nil {
		return nil, fmt.Errorf("rules.timezone: %w", err)
	}
	return loc, nil
}

// SendListTime parses schedule.send_list_at. hour is -1 when the schedule is disabled.
func (c *Config) SendListTime() (hour, minute int, err error) {
	s := strings.TrimSpace(c.Schedule.SendListAt)
	if s == "" {
		return -1, -1, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return -1, -1, fmt.Errorf("schedule.send_list_at: expected HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// MailEnabled reports whether an SMTP host is configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != ""
}

// MailTimeout returns the SMTP dial timeout.
func (c *Config) MailTimeout() time.Duration {
	return time.Duration(c.Mail.TimeoutSeconds) * time.Second
}

// RateLimitWindow returns the counting window of the rate limiter.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// Amount parses a validated decimal setting.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(strings.TrimSpace(s))
}
