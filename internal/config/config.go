package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/comings/prepaid-api/internal/logging"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	GRPCAddr    string
	FrontendURL string
	CORSOrigins []string

	StorageDriver string
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	PinGateEnforced bool

	WorkerCount   int
	QueueSize     int
	SchedulerSpec string

	Subscription SubscriptionConfig
	Toss         TossConfig
	Solapi       SolapiConfig
	Naver        OAuthConfig
	Kakao        OAuthConfig
	NTSAPIKey    string
	NICEMode     string

	KafkaBrokers []string
	KafkaTopic   string

	Logging logging.Config
}

type SubscriptionConfig struct {
	MonthlyPrice int64
	TrialDays    int
	GraceDays    int
}

type TossConfig struct {
	ClientKey string
	SecretKey string
}

type SolapiConfig struct {
	APIKey    string
	APISecret string
	Sender    string
}

func (c SolapiConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != "" && c.Sender != ""
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (c OAuthConfig) Enabled() bool {
	return c.ClientID != ""
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads the process environment. Malformed values are errors rather
// than silently replaced by defaults.
func Load() (Config, error) {
	e := &env{}
	cfg := Config{
		AppEnv:      e.str("APP_ENV", "development"),
		HTTPAddr:    e.str("HTTP_ADDR", ":8000"),
		GRPCAddr:    e.str("GRPC_ADDR", ":50051"),
		FrontendURL: e.str("FRONTEND_URL", "http://localhost:5173"),
		CORSOrigins: e.list("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),

		StorageDriver: e.str("STORAGE_DRIVER", "mysql"),
		MySQLDSN:      e.str("MYSQL_DSN", ""),
		RedisAddr:     e.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       e.integer("REDIS_DB", 0),

		JWTSecret:  e.str("JWT_SECRET_KEY", ""),
		AccessTTL:  time.Duration(e.integer("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24*7)) * time.Minute,
		RefreshTTL: time.Duration(e.integer("REFRESH_TOKEN_EXPIRE_DAYS", 30)) * 24 * time.Hour,

		PinGateEnforced: e.boolean("PIN_GATE_ENFORCED", true),

		WorkerCount:   e.integer("WORKER_COUNT", 4),
		QueueSize:     e.integer("EVENT_QUEUE_SIZE", 1024),
		SchedulerSpec: e.str("SUBSCRIPTION_SWEEP_SPEC", "@every 1h"),

		Subscription: SubscriptionConfig{
			MonthlyPrice: int64(e.integer("SUBSCRIPTION_MONTHLY_PRICE", 9900)),
			TrialDays:    e.integer("SUBSCRIPTION_TRIAL_DAYS", 14),
			GraceDays:    e.integer("SUBSCRIPTION_GRACE_DAYS", 7),
		},
		Toss: TossConfig{
			ClientKey: e.str("TOSS_CLIENT_KEY", ""),
			SecretKey: e.str("TOSS_SECRET_KEY", ""),
		},
		Solapi: SolapiConfig{
			APIKey:    e.str("SOLAPI_API_KEY", ""),
			APISecret: e.str("SOLAPI_API_SECRET", ""),
			Sender:    e.str("SOLAPI_SENDER_NUMBER", ""),
		},
		Naver: OAuthConfig{
			ClientID:     e.str("NAVER_CLIENT_ID", ""),
			ClientSecret: e.str("NAVER_CLIENT_SECRET", ""),
			RedirectURI:  e.str("NAVER_REDIRECT_URI", ""),
		},
		Kakao: OAuthConfig{
			ClientID:     e.str("KAKAO_CLIENT_ID", ""),
			ClientSecret: e.str("KAKAO_CLIENT_SECRET", ""),
			RedirectURI:  e.str("KAKAO_REDIRECT_URI", ""),
		},
		NTSAPIKey: e.str("NTS_API_KEY", ""),
		NICEMode:  e.str("NICE_MODE", "mock"),

		KafkaBrokers: e.list("KAFKA_BROKERS", ""),
		KafkaTopic:   e.str("KAFKA_TOPIC", "prepaid.events"),

		Logging: logging.Config{
			Level:     e.str("LOG_LEVEL", "info"),
			Format:    e.str("LOG_FORMAT", "text"),
			AddSource: e.boolean("LOG_ADD_SOURCE", false),
		},
	}

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	switch c.StorageDriver {
	case "mysql":
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required when STORAGE_DRIVER=mysql"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, errors.New("WORKER_COUNT must be positive"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.New("EVENT_QUEUE_SIZE must be positive"))
	}
	if c.NICEMode != "mock" && c.NICEMode != "production" {
		errs = append(errs, fmt.Errorf("unknown NICE_MODE %q", c.NICEMode))
	}
	return errors.Join(errs...)
}

type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) integer(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *env) boolean(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *env) list(key, def string) []string {
	var out []string
	for _, part := range strings.Split(e.str(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
