package configs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const (
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Storage struct {
		Driver string `koanf:"driver"`
	} `koanf:"storage"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Mongo struct {
		URI      string `koanf:"uri"`
		Database string `koanf:"database"`
	} `koanf:"mongo"`

	Redis struct {
		Enabled  bool   `koanf:"enabled"`
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		OrderTTL time.Duration `koanf:"order_ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		Enabled         bool          `koanf:"enabled"`
		URL             string        `koanf:"url"`
		Exchange        string        `koanf:"exchange"`
		PaymentExchange string        `koanf:"payment_exchange"`
		PaymentQueue    string        `koanf:"payment_queue"`
		PaymentKeys     []string      `koanf:"payment_keys"`
		Prefetch        int           `koanf:"prefetch"`
		HandlerTimeout  time.Duration `koanf:"handler_timeout"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Enabled        bool     `koanf:"enabled"`
		Brokers        []string `koanf:"brokers"`
		Version        string   `koanf:"version"`
		GroupID        string   `koanf:"group_id"`
		ShipmentTopics []string `koanf:"shipment_topics"`
		Oldest         bool     `koanf:"oldest"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Orders struct {
		NumberPrefix          string            `koanf:"number_prefix"`
		Timezone              string            `koanf:"timezone"`
		TaxRate               string            `koanf:"tax_rate"`
		FreeShippingThreshold string            `koanf:"free_shipping_threshold"`
		ShippingRates         map[string]string `koanf:"shipping_rates"`
		Coupons               map[string]string `koanf:"coupons"`
		RequestTimeout        time.Duration     `koanf:"request_timeout"`
		NumberRetries         int               `koanf:"number_retries"`
	} `koanf:"orders"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	if envName != "" {
		_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())
	}

	// 3) environment variables override (prefix ORDERAPI_, nested with __)
	// e.g. ORDERAPI_MYSQL__DSN, ORDERAPI_SECURITY__JWT_SECRET
	if err := k.Load(env.Provider("ORDERAPI_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ORDERAPI_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or malformed value at once.
func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr required"))
	}
	switch c.Storage.Driver {
	case DriverMySQL:
		if c.MySQL.DSN == "" {
			errs = append(errs, errors.New("mysql.dsn required"))
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo.uri and mongo.database required"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be mysql, mongo or memory", c.Storage.Driver))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr required when redis is enabled"))
	}
	if c.Rabbit.Enabled && c.Rabbit.URL == "" {
		errs = append(errs, errors.New("rabbitmq.url required when rabbitmq is enabled"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || len(c.Kafka.ShipmentTopics) == 0) {
		errs = append(errs, errors.New("kafka.brokers and kafka.shipment_topics required when kafka is enabled"))
	}
	if len(c.Security.JWTSecret) < 16 {
		errs = append(errs, errors.New("security.jwt_secret must be at least 16 bytes"))
	}
	if _, err := time.LoadLocation(c.Orders.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("orders.timezone: %w", err))
	}
	for name, v := range c.decimals() {
		if _, err := decimal.NewFromString(v); v != "" && err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a decimal", name, v))
		}
	}
	return errors.Join(errs...)
}

func (c Config) decimals() map[string]string {
	out := map[string]string{
		"orders.tax_rate":                c.Orders.TaxRate,
		"orders.free_shipping_threshold": c.Orders.FreeShippingThreshold,
	}
	for k, v := range c.Orders.ShippingRates {
		out["orders.shipping_rates."+k] = v
	}
	for k, v := range c.Orders.Coupons {
		out["orders.coupons."+k] = v
	}
	return out
}
