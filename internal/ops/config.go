package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/journal"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
	"main/pkg/conn"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Session   SessionConfig   `json:"session"`
	Registry  RegistryConfig  `json:"registry"`
	Risk      RiskConfig      `json:"risk"`
	Strategy  strategy.Config `json:"strategy"`
	Feed      FeedConfig      `json:"feed"`
	Gateway   GatewayConfig   `json:"gateway"`
	Journal   JournalConfig   `json:"journal"`
	Store     StoreConfig     `json:"store"`
	Profiling ProfilingConfig `json:"profiling"`
}

// SessionConfig carries session-wide settings.
type SessionConfig struct {
	Name              string      `json:"name"`
	InitialCash       schema.Cash `json:"initialCash"`
	QueueSize         int         `json:"queueSize"`
	ShutdownTimeoutMs int         `json:"shutdownTimeoutMs"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues"`
	Instruments []InstrumentConfig `json:"instruments"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// InstrumentConfig describes a tradable instrument entry.
type InstrumentConfig struct {
	Name        string           `json:"name"`
	Venue       string           `json:"venue"`
	VenueSymbol string           `json:"venueSymbol"`
	TickSize    schema.Price     `json:"tickSize"`
	LotSize     schema.Quantity  `json:"lotSize"`
	Scale       schema.ScaleSpec `json:"scale"`
}

// RiskConfig mirrors the risk limits with millisecond windows.
type RiskConfig struct {
	MaxOrderNotional  schema.Notional `json:"maxOrderNotional"`
	MaxExposure       schema.Notional `json:"maxExposure"`
	OrderRateLimit    int             `json:"orderRateLimit"`
	OrderRateWindowMs int             `json:"orderRateWindowMs"`
	GlobalRateLimit   int             `json:"globalRateLimit"`
	Halted            []string        `json:"halted"`
	MaxDailyLoss      schema.Cash     `json:"maxDailyLoss"`
	MaxTotalLoss      schema.Cash     `json:"maxTotalLoss"`
}

// FeedConfig describes the market data stream.
type FeedConfig struct {
	URL string `json:"url"`
}

// GatewayConfig describes the venue order API.
type GatewayConfig struct {
	BaseURL          string `json:"baseUrl"`
	AccessID         string `json:"accessId"`
	SecretKey        string `json:"secretKey"`
	RequestTimeoutMs int    `json:"requestTimeoutMs"`
}

// JournalConfig describes the audit journal. An empty dir disables it.
type JournalConfig struct {
	Dir             string `json:"dir"`
	SegmentMaxBytes int64  `json:"segmentMaxBytes"`
}

// StoreConfig describes the historical bar store. An empty database
// disables warmup.
type StoreConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	SSLMode    string `json:"sslMode"`
	WarmupBars int    `json:"warmupBars"`
}

// ProfilingConfig captures the optional continuous profiler target.
type ProfilingConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// SessionSpec is the resolved session definition.
type SessionSpec struct {
	Name            string
	InitialCash     schema.Cash
	QueueSize       int
	ShutdownTimeout time.Duration
}

// GatewaySpec is the resolved venue API definition.
type GatewaySpec struct {
	BaseURL        string
	AccessID       string
	SecretKey      string
	RequestTimeout time.Duration
}

// StoreSpec is the resolved bar store definition.
type StoreSpec struct {
	Enabled    bool
	Option     conn.Option
	WarmupBars int
}

// Loaded is the resolved configuration ready for use. Built once at
// startup and read-only afterwards.
type Loaded struct {
	Session   SessionSpec
	Registry  *schema.Registry
	Limits    risk.Limits
	Strategy  strategy.Config
	Feed      FeedConfig
	Gateway   GatewaySpec
	Journal   journal.Config
	Store     StoreSpec
	Profiling ProfilingConfig
}

// Load reads a JSON config file and resolves every section.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfigInvalid, "read %s: %v", path, err)
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfigInvalid, "parse %s: %v", path, err)
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and builds the runtime view.
func Resolve(cfg FileConfig) (Loaded, error) {
	session, err := resolveSession(cfg.Session)
	if err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Strategy.Name == "" {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "strategy name is empty")
	}
	if cfg.Feed.URL == "" {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "feed url is empty")
	}
	gatewaySpec, err := resolveGateway(cfg.Gateway)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{
		Session:  session,
		Registry: registry,
		Limits: risk.Limits{
			MaxOrderNotional: cfg.Risk.MaxOrderNotional,
			MaxExposure:      cfg.Risk.MaxExposure,
			OrderRateLimit:   cfg.Risk.OrderRateLimit,
			OrderRateWindow:  time.Duration(cfg.Risk.OrderRateWindowMs) * time.Millisecond,
			GlobalRateLimit:  cfg.Risk.GlobalRateLimit,
			Halted:           cfg.Risk.Halted,
			MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
			MaxTotalLoss:     cfg.Risk.MaxTotalLoss,
		},
		Strategy: cfg.Strategy,
		Feed:     cfg.Feed,
		Gateway:  gatewaySpec,
		Journal: journal.Config{
			Dir:             cfg.Journal.Dir,
			SegmentMaxBytes: cfg.Journal.SegmentMaxBytes,
			FilePrefix:      session.Name,
		},
		Store:     resolveStore(cfg.Store),
		Profiling: cfg.Profiling,
	}, nil
}

func resolveSession(cfg SessionConfig) (SessionSpec, error) {
	if cfg.Name == "" {
		cfg.Name = "trader"
	}
	if cfg.InitialCash <= 0 {
		return SessionSpec{}, errors.Wrap(exception.ErrConfigInvalid, "session initialCash must be > 0")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	timeout := time.Duration(cfg.ShutdownTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return SessionSpec{
		Name:            cfg.Name,
		InitialCash:     cfg.InitialCash,
		QueueSize:       cfg.QueueSize,
		ShutdownTimeout: timeout,
	}, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	if len(cfg.Venues) == 0 {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "no venues configured")
	}
	if len(cfg.Instruments) == 0 {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "no instruments configured")
	}
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "add venue %s: %v", venue.Name, err)
		}
	}
	for _, inst := range cfg.Instruments {
		venueID, ok := reg.VenueIDByName(inst.Venue)
		if !ok {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "venue not found: %s", inst.Venue)
		}
		if inst.TickSize <= 0 || inst.LotSize <= 0 {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "instrument %s needs positive tick and lot", inst.Name)
		}
		if err := validateScale(inst.Scale); err != nil {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "invalid scale for %s: %v", inst.Name, err)
		}
		_, err := reg.AddInstrument(schema.Instrument{
			VenueID:     venueID,
			Name:        inst.Name,
			VenueSymbol: inst.VenueSymbol,
			TickSize:    inst.TickSize,
			LotSize:     inst.LotSize,
			Scale:       inst.Scale,
		})
		if err != nil {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "add instrument %s: %v", inst.Name, err)
		}
	}
	return reg, nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 || scale.NotionalScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}

func resolveGateway(cfg GatewayConfig) (GatewaySpec, error) {
	if cfg.BaseURL == "" {
		return GatewaySpec{}, errors.Wrap(exception.ErrConfigInvalid, "gateway baseUrl is empty")
	}
	if cfg.AccessID == "" || cfg.SecretKey == "" {
		return GatewaySpec{}, errors.Wrap(exception.ErrConfigInvalid, "gateway credentials missing")
	}
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return GatewaySpec{
		BaseURL:        cfg.BaseURL,
		AccessID:       cfg.AccessID,
		SecretKey:      cfg.SecretKey,
		RequestTimeout: timeout,
	}, nil
}

func resolveStore(cfg StoreConfig) StoreSpec {
	if cfg.Database == "" {
		return StoreSpec{}
	}
	warmup := cfg.WarmupBars
	if warmup <= 0 {
		warmup = 64
	}
	return StoreSpec{
		Enabled: true,
		Option: conn.Option{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
			SSLMode:  cfg.SSLMode,
		},
		WarmupBars: warmup,
	}
}
