// Package config loads service settings from the embedded base.yaml, an optional override file
// and BERRYSTAND_* environment variables.
package config

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "embed"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"berrystand/internal/admission"
	"berrystand/internal/domain"
	"berrystand/internal/repository"
)

//go:embed base.yaml
var baseConfig []byte

const envPrefix = "BERRYSTAND"

type AppSettings struct {
	Name    string `mapstructure:"name" validate:"required"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"`
}

type CORSSettings struct {
	Origins []string `mapstructure:"origins" validate:"min=1,dive,url"`
	Methods []string `mapstructure:"methods" validate:"min=1,dive,oneof=GET POST PUT DELETE OPTIONS PATCH HEAD"`
	Headers []string `mapstructure:"headers" validate:"min=1,dive,required"`
}

type HTTPSettings struct {
	IP     string       `mapstructure:"ip" validate:"required,ip"`
	Port   string       `mapstructure:"port" validate:"required,numeric"`
	Prefix string       `mapstructure:"prefix" validate:"required,startswith=/"`
	CORS   CORSSettings `mapstructure:"cors" validate:"required"`
}

func (h HTTPSettings) Addr() string { return h.IP + ":" + h.Port }

type PostgresSettings struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max-open-conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max-idle-conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn-max-lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn-max-idle-time"`
	EnsureSchema    bool          `mapstructure:"ensure-schema"`
}

func (p PostgresSettings) Config() repository.PostgresConfig {
	return repository.PostgresConfig{
		DSN:             p.DSN,
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
	}
}

type StorageSettings struct {
	Driver   string           `mapstructure:"driver" validate:"required,oneof=memory postgres"`
	Postgres PostgresSettings `mapstructure:"postgres"`
}

// Open подключает выбранное хранилище; схема Postgres создаётся при ensure-schema
func (s StorageSettings) Open(ctx context.Context) (repository.Stores, error) {
	if s.Driver != "postgres" {
		return repository.NewMemoryStores(), nil
	}
	db, err := repository.OpenPostgres(ctx, s.Postgres.Config())
	if err != nil {
		return repository.Stores{}, err
	}
	if s.Postgres.EnsureSchema {
		if err := repository.NewPostgresStore(db).EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return repository.Stores{}, err
		}
	}
	return repository.NewPostgresStores(db), nil
}

type SeasonSettings struct {
	Start string `mapstructure:"start" validate:"required,monthday"`
	End   string `mapstructure:"end" validate:"required,monthday"`
}

type OrderingSettings struct {
	Timezone          string `mapstructure:"timezone" validate:"required,timezone"`
	DefaultDailyLimit int    `mapstructure:"default-daily-limit" validate:"min=0"`
	LargeOrderPounds  int    `mapstructure:"large-order-pounds" validate:"min=0"`
	PickupAfter       string `mapstructure:"pickup-after" validate:"required"`
	FarmName          string `mapstructure:"farm-name" validate:"required"`
	PublicBaseURL     string `mapstructure:"public-base-url" validate:"required,url"`
}

type MessageSettings struct {
	FarmInfo    string `mapstructure:"farm-info"`
	Prices      string `mapstructure:"prices"`
	About       string `mapstructure:"about"`
	OutOfSeason string `mapstructure:"out-of-season"`
}

type TierSettings struct {
	MinQuantity   int    `mapstructure:"min-quantity" validate:"min=0"`
	PricePerPound string `mapstructure:"price-per-pound" validate:"required,numeric"`
}

type CatalogSettings struct {
	Tiers []TierSettings `mapstructure:"tiers" validate:"dive"`
}

type NatsSettings struct {
	UseCredentials bool `mapstructure:"usecredentials"`
	// Only used if UseCredentials is true
	Username string `mapstructure:"username" validate:"required_if=UseCredentials true"`
	Password string `mapstructure:"password" validate:"required_if=UseCredentials true"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,min=1"`
}

func (n *NatsSettings) GetNatsClient() (*nats.Conn, error) {
	opts := []nats.Option{nats.Name("berrystand")}
	if n.UseCredentials {
		opts = append(opts, nats.UserInfo(n.Username, n.Password))
	}
	return nats.Connect(n.Host+":"+strconv.Itoa(n.Port), opts...)
}

type NotificationSettings struct {
	Driver  string       `mapstructure:"driver" validate:"required,oneof=log nats"`
	Subject string       `mapstructure:"subject" validate:"required"`
	Nats    NatsSettings `mapstructure:"nats"`
}

type OpenTelemetryLogSettings struct {
	TimeoutInSec  int64 `mapstructure:"timeout"`
	IntervalInSec int64 `mapstructure:"interval"`
	MaxQueueSize  int   `mapstructure:"maxqueuesize"`
	BatchSize     int   `mapstructure:"batchsize"`
}

type OpenTelemetryTraceSettings struct {
	TimeoutInSec int64 `mapstructure:"timeout"`
	MaxQueueSize int   `mapstructure:"maxqueuesize"`
	BatchSize    int   `mapstructure:"batchsize"`
	SampleRate   int   `mapstructure:"samplerate"`
}

type OpenTelemetryMetricSettings struct {
	IntervalInSec int64 `mapstructure:"interval"`
	TimeoutInSec  int64 `mapstructure:"timeout"`
}

type OpenTelemetrySettings struct {
	Enabled  bool                        `mapstructure:"enabled"`
	Endpoint string                      `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Metrics  OpenTelemetryMetricSettings `mapstructure:"metrics"`
	Traces   OpenTelemetryTraceSettings  `mapstructure:"traces"`
	Logs     OpenTelemetryLogSettings    `mapstructure:"logs"`
}

type Settings struct {
	App           AppSettings           `mapstructure:"app" validate:"required"`
	HTTP          HTTPSettings          `mapstructure:"http" validate:"required"`
	Storage       StorageSettings       `mapstructure:"storage" validate:"required"`
	Season        SeasonSettings        `mapstructure:"season" validate:"required"`
	Ordering      OrderingSettings      `mapstructure:"ordering" validate:"required"`
	Messages      MessageSettings       `mapstructure:"messages"`
	Catalog       CatalogSettings       `mapstructure:"catalog"`
	Notifications NotificationSettings  `mapstructure:"notifications" validate:"required"`
	OpenTelemetry OpenTelemetrySettings `mapstructure:"opentelemetry"`
}

// Load reads base.yaml, merges path over it when set, then applies environment overrides
// such as BERRYSTAND_ORDERING_DEFAULTDAILYLIMIT.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(baseConfig)); err != nil {
		return nil, fmt.Errorf("read base config: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", ""))
	v.AutomaticEnv()

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("monthday", func(fl validator.FieldLevel) bool {
		_, err := admission.ParseMonthDay(fl.Field().String())
		return err == nil
	})
	return validate
}

// Validate checks field constraints and the cross-field rules the tags cannot express.
func Validate(cfg *Settings) error {
	if err := newValidator().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	season, err := cfg.SeasonWindow()
	if err != nil {
		return err
	}
	if err := season.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Tiers(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (s *Settings) SeasonWindow() (admission.Season, error) {
	start, err := admission.ParseMonthDay(s.Season.Start)
	if err != nil {
		return admission.Season{}, err
	}
	end, err := admission.ParseMonthDay(s.Season.End)
	if err != nil {
		return admission.Season{}, err
	}
	return admission.Season{Start: start, End: end}, nil
}

// Rules assumes the settings already passed Validate.
func (s *Settings) Rules() admission.Rules {
	season, _ := s.SeasonWindow()
	return admission.Rules{Season: season, DefaultLimit: s.Ordering.DefaultDailyLimit}
}

// Location is the farm's time zone; "today" is computed there.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Ordering.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Tiers converts the seed price tiers from the catalog section.
func (s *Settings) Tiers() ([]domain.PriceTier, error) {
	out := make([]domain.PriceTier, 0, len(s.Catalog.Tiers))
	seen := make(map[int]bool, len(s.Catalog.Tiers))
	for _, t := range s.Catalog.Tiers {
		rate, err := decimal.NewFromString(t.PricePerPound)
		if err != nil {
			return nil, fmt.Errorf("tier %d: %w", t.MinQuantity, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("tier %d: price per pound must be positive", t.MinQuantity)
		}
		if seen[t.MinQuantity] {
			return nil, fmt.Errorf("tier %d: duplicate min quantity", t.MinQuantity)
		}
		seen[t.MinQuantity] = true
		out = append(out, domain.PriceTier{MinQuantity: t.MinQuantity, PricePerPound: rate})
	}
	return out, nil
}
