package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "BIZDASH"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Billing   BillingConfig
	Stripe    StripeConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Enabled         bool
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TelemetryConfig holds OpenTelemetry, Prometheus and profiling configuration
type TelemetryConfig struct {
	Enabled           bool    // traces
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	ServiceVersion    string
	Insecure          bool // non-TLS collector connection, development only

	MetricsEnabled        bool
	MetricsExportInterval time.Duration
	LogsEnabled           bool
	LogsLevel             string

	PrometheusEnabled   bool
	PrometheusNamespace string

	ProfilingEnabled       bool
	ProfilingServerAddress string
	ProfilingTypes         []string
	SpanProfilesEnabled    bool

	DBTraceEnabled    bool
	DBLogFullSQL      bool          // never in production
	DBSlowQueryThresh time.Duration // default 200ms
}

// StripeConfig holds settings for exporting metered usage to Stripe
type StripeConfig struct {
	Enabled           bool
	SecretKey         string
	IsTestMode        bool
	APIURL            string // empty = api.stripe.com
	MaxNetworkRetries int64

	// Scheduled export of running monthly totals
	ScheduleEnabled bool
	Schedule        string // daily cron, "minute hour * * *"
	CloseOutDays    int    // days into a month the previous month is re-exported
}

// BracketConfig is one seat-count bracket as written in config.toml
type BracketConfig struct {
	MinSeats int    `mapstructure:"min_seats"`
	Value    string `mapstructure:"value"`
}

// TierConfig is one pricing tier as written in config.toml
type TierConfig struct {
	Name                string            `mapstructure:"name"`
	DisplayName         string            `mapstructure:"display_name"`
	MonthlyPricePerSeat string            `mapstructure:"monthly_price_per_seat"`
	AnnualPricePerSeat  string            `mapstructure:"annual_price_per_seat"`
	Limits              map[string]int64  `mapstructure:"limits"`
	OverageRates        map[string]string `mapstructure:"overage_rates"`
	ImplementationFees  []BracketConfig   `mapstructure:"implementation_fees"`
}

// BillingConfig holds billing engine settings
type BillingConfig struct {
	Currency string
	// MonthlySavingsPerSeat is the ROI assumption, per seat per month
	MonthlySavingsPerSeat     string
	RecognitionPolicy         string // ratable, lump_sum
	WarningThresholdPercent   int
	MetricsCacheTTL           time.Duration
	IdempotencyTTL            time.Duration
	Timezone                  string
	DiscountBrackets          []BracketConfig
	ImplementationFeeBrackets []BracketConfig
	Tiers                     []TierConfig // empty = built-in catalog
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with BIZDASH_ prefix (e.g., BIZDASH_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return build(v)
}

// LoadFile loads configuration from an explicit file path plus environment overrides
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Telemetry: TelemetryConfig{
			Enabled:                v.GetBool("telemetry.enabled"),
			CollectorEndpoint:      v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:          v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:            v.GetString("telemetry.service_name"),
			ServiceVersion:         v.GetString("telemetry.service_version"),
			Insecure:               v.GetBool("telemetry.insecure"),
			MetricsEnabled:         v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval:  v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:            v.GetBool("telemetry.logs_enabled"),
			LogsLevel:              v.GetString("telemetry.logs_level"),
			PrometheusEnabled:      v.GetBool("telemetry.prometheus_enabled"),
			PrometheusNamespace:    v.GetString("telemetry.prometheus_namespace"),
			ProfilingEnabled:       v.GetBool("telemetry.profiling_enabled"),
			ProfilingServerAddress: v.GetString("telemetry.profiling_server_address"),
			ProfilingTypes:         v.GetStringSlice("telemetry.profiling_types"),
			SpanProfilesEnabled:    v.GetBool("telemetry.span_profiles_enabled"),
			DBTraceEnabled:         v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:           v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh:      v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Billing: BillingConfig{
			Currency:                v.GetString("billing.currency"),
			MonthlySavingsPerSeat:   v.GetString("billing.monthly_savings_per_seat"),
			RecognitionPolicy:       v.GetString("billing.recognition_policy"),
			WarningThresholdPercent: v.GetInt("billing.warning_threshold_percent"),
			MetricsCacheTTL:         v.GetDuration("billing.metrics_cache_ttl"),
			IdempotencyTTL:          v.GetDuration("billing.idempotency_ttl"),
			Timezone:                v.GetString("billing.timezone"),
		},
		Stripe: StripeConfig{
			Enabled:           v.GetBool("stripe.enabled"),
			SecretKey:         v.GetString("stripe.secret_key"),
			IsTestMode:        v.GetBool("stripe.is_test_mode"),
			APIURL:            v.GetString("stripe.api_url"),
			MaxNetworkRetries: v.GetInt64("stripe.max_network_retries"),
			ScheduleEnabled:   v.GetBool("stripe.schedule_enabled"),
			Schedule:          v.GetString("stripe.schedule"),
			CloseOutDays:      v.GetInt("stripe.close_out_days"),
		},
	}

	if err := v.UnmarshalKey("billing.discount_brackets", &cfg.Billing.DiscountBrackets); err != nil {
		return nil, fmt.Errorf("billing.discount_brackets: %w", err)
	}
	if err := v.UnmarshalKey("billing.implementation_fee_brackets", &cfg.Billing.ImplementationFeeBrackets); err != nil {
		return nil, fmt.Errorf("billing.implementation_fee_brackets: %w", err)
	}
	if err := v.UnmarshalKey("billing.tiers", &cfg.Billing.Tiers); err != nil {
		return nil, fmt.Errorf("billing.tiers: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bizdash-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	// An empty origin list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "bizdash"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "bizdash.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.LogsLevel == "" {
		cfg.Telemetry.LogsLevel = "info"
	}
	if cfg.Telemetry.PrometheusNamespace == "" {
		cfg.Telemetry.PrometheusNamespace = "bizdash"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = string(valueobject.DefaultCurrency)
	}
	cfg.Billing.Currency = strings.ToUpper(strings.TrimSpace(cfg.Billing.Currency))
	if cfg.Billing.MonthlySavingsPerSeat == "" {
		cfg.Billing.MonthlySavingsPerSeat = decimal.NewFromInt(billing.DefaultMonthlySavingsPerSeat).String()
	}
	if cfg.Billing.RecognitionPolicy == "" {
		cfg.Billing.RecognitionPolicy = string(billing.RecognitionRatable)
	}
	if cfg.Billing.WarningThresholdPercent == 0 {
		cfg.Billing.WarningThresholdPercent = billing.DefaultWarningThresholdPercent
	}
	if cfg.Billing.MetricsCacheTTL == 0 {
		cfg.Billing.MetricsCacheTTL = 5 * time.Minute
	}
	if cfg.Billing.IdempotencyTTL == 0 {
		cfg.Billing.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Billing.Timezone == "" {
		cfg.Billing.Timezone = "UTC"
	}
	if cfg.Stripe.Schedule == "" {
		cfg.Stripe.Schedule = "0 2 * * *"
	}
	if cfg.Stripe.CloseOutDays == 0 {
		cfg.Stripe.CloseOutDays = 3
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Enabled && c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServerAddress == "" {
		return fmt.Errorf("telemetry.profiling_server_address is required when profiling is enabled")
	}
	if c.Stripe.Enabled {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("stripe.secret_key is required when stripe is enabled")
		}
		if c.Stripe.CloseOutDays < 0 || c.Stripe.CloseOutDays > 28 {
			return fmt.Errorf("stripe.close_out_days must be between 0 and 28, got %d", c.Stripe.CloseOutDays)
		}
		if c.App.Env == "production" && c.Stripe.IsTestMode {
			return fmt.Errorf("stripe.is_test_mode must be false in production")
		}
	}
	if c.Stripe.MaxNetworkRetries < 0 {
		return fmt.Errorf("stripe.max_network_retries cannot be negative")
	}

	return c.Billing.validate()
}

func (b BillingConfig) validate() error {
	if _, err := b.Location(); err != nil {
		return err
	}
	if b.WarningThresholdPercent < 0 || b.WarningThresholdPercent > 100 {
		return fmt.Errorf("billing.warning_threshold_percent must be between 0 and 100, got %d", b.WarningThresholdPercent)
	}
	if _, err := b.Policy(); err != nil {
		return fmt.Errorf("billing.recognition_policy: %w", err)
	}
	if _, err := b.PricingConfig(); err != nil {
		return err
	}
	if _, err := b.TierCatalog(); err != nil {
		return fmt.Errorf("billing.tiers: %w", err)
	}
	return nil
}

// CurrencyCode returns the configured billing currency
func (b BillingConfig) CurrencyCode() valueobject.Currency {
	return valueobject.Currency(b.Currency)
}

// Location returns the timezone used to derive calendar-month periods
func (b BillingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("billing.timezone: %w", err)
	}
	return loc, nil
}

// Policy returns the revenue recognition policy
func (b BillingConfig) Policy() (billing.RecognitionPolicy, error) {
	return billing.ParseRecognitionPolicy(b.RecognitionPolicy)
}

// WarningThreshold returns the quota warning threshold as a percentage
func (b BillingConfig) WarningThreshold() decimal.Decimal {
	return decimal.NewFromInt(int64(b.WarningThresholdPercent))
}

// PricingConfig builds the quote calculator configuration
func (b BillingConfig) PricingConfig() (billing.PricingConfig, error) {
	currency := b.CurrencyCode()
	if !currency.IsValid() {
		return billing.PricingConfig{}, fmt.Errorf("billing.currency %q is not supported", b.Currency)
	}

	savings, err := decimal.NewFromString(b.MonthlySavingsPerSeat)
	if err != nil {
		return billing.PricingConfig{}, fmt.Errorf("billing.monthly_savings_per_seat: %w", err)
	}
	if savings.IsNegative() {
		return billing.PricingConfig{}, fmt.Errorf("billing.monthly_savings_per_seat cannot be negative")
	}

	cfg := billing.PricingConfig{
		Currency:              currency,
		MonthlySavingsPerSeat: savings,
	}
	if len(b.DiscountBrackets) > 0 {
		brackets, err := toBrackets(b.DiscountBrackets)
		if err != nil {
			return billing.PricingConfig{}, fmt.Errorf("billing.discount_brackets: %w", err)
		}
		if cfg.DiscountSchedule, err = billing.NewDiscountSchedule(brackets...); err != nil {
			return billing.PricingConfig{}, fmt.Errorf("billing.discount_brackets: %w", err)
		}
	}
	if len(b.ImplementationFeeBrackets) > 0 {
		brackets, err := toBrackets(b.ImplementationFeeBrackets)
		if err != nil {
			return billing.PricingConfig{}, fmt.Errorf("billing.implementation_fee_brackets: %w", err)
		}
		if cfg.ImplementationFeeSchedule, err = billing.NewBracketSchedule(brackets...); err != nil {
			return billing.PricingConfig{}, fmt.Errorf("billing.implementation_fee_brackets: %w", err)
		}
	}
	return cfg, nil
}

// TierCatalog builds the tier catalog, falling back to the built-in tiers
// when none are configured. The built-in tiers are priced in USD.
func (b BillingConfig) TierCatalog() (*billing.TierCatalog, error) {
	currency := b.CurrencyCode()
	if len(b.Tiers) == 0 {
		return billing.NewTierCatalog(currency, billing.DefaultTiers()...)
	}

	tiers := make([]billing.Tier, 0, len(b.Tiers))
	for _, tc := range b.Tiers {
		tier, err := tc.toTier(currency)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return billing.NewTierCatalog(currency, tiers...)
}

func (tc TierConfig) toTier(currency valueobject.Currency) (billing.Tier, error) {
	name := strings.ToLower(strings.TrimSpace(tc.Name))
	if name == "" {
		return billing.Tier{}, fmt.Errorf("tier name cannot be empty")
	}

	monthly, err := valueobject.NewMoneyFromString(tc.MonthlyPricePerSeat, currency)
	if err != nil {
		return billing.Tier{}, fmt.Errorf("tier %s monthly_price_per_seat: %w", name, err)
	}
	annual, err := valueobject.NewMoneyFromString(tc.AnnualPricePerSeat, currency)
	if err != nil {
		return billing.Tier{}, fmt.Errorf("tier %s annual_price_per_seat: %w", name, err)
	}

	tier := billing.Tier{
		Name:                billing.TierName(name),
		DisplayName:         tc.DisplayName,
		MonthlyPricePerSeat: monthly,
		AnnualPricePerSeat:  annual,
		Limits:              make(map[billing.ServiceType]int64, len(tc.Limits)),
		OverageRates:        make(map[billing.ServiceType]valueobject.Money, len(tc.OverageRates)),
	}
	if tier.DisplayName == "" {
		tier.DisplayName = name
	}

	for service, limit := range tc.Limits {
		st := billing.ServiceType(strings.ToLower(service))
		if !st.IsKnown() {
			return billing.Tier{}, fmt.Errorf("tier %s: unknown service type %q in limits", name, service)
		}
		tier.Limits[st] = limit
	}
	for service, rate := range tc.OverageRates {
		st := billing.ServiceType(strings.ToLower(service))
		if !st.IsKnown() {
			return billing.Tier{}, fmt.Errorf("tier %s: unknown service type %q in overage_rates", name, service)
		}
		m, err := valueobject.NewMoneyFromString(rate, currency)
		if err != nil {
			return billing.Tier{}, fmt.Errorf("tier %s overage rate for %s: %w", name, service, err)
		}
		tier.OverageRates[st] = m
	}
	if len(tc.ImplementationFees) > 0 {
		brackets, err := toBrackets(tc.ImplementationFees)
		if err != nil {
			return billing.Tier{}, fmt.Errorf("tier %s implementation_fees: %w", name, err)
		}
		if tier.ImplementationFees, err = billing.NewBracketSchedule(brackets...); err != nil {
			return billing.Tier{}, fmt.Errorf("tier %s implementation_fees: %w", name, err)
		}
	}
	return tier, nil
}

func toBrackets(in []BracketConfig) ([]billing.Bracket, error) {
	out := make([]billing.Bracket, 0, len(in))
	for _, bc := range in {
		value, err := decimal.NewFromString(bc.Value)
		if err != nil {
			return nil, fmt.Errorf("bracket at %d seats: %w", bc.MinSeats, err)
		}
		out = append(out, billing.Bracket{MinSeats: bc.MinSeats, Value: value})
	}
	return out, nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
