package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "kalaa"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "KALAA_DB_DSN"
	EnvDBHost = "KALAA_DB_HOST"
	EnvDBUser = "KALAA_DB_USER"
	EnvDBName = "KALAA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
	Catalog       CatalogConfig
	Orders        OrdersConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KALAA_APP_ENV" required:"true"`
	Port         string `envconfig:"KALAA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KALAA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KALAA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KALAA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KALAA_DB_DSN"`
	Driver string `envconfig:"KALAA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KALAA_DB_HOST"`
	LegacyPort     int    `envconfig:"KALAA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KALAA_DB_USER"`
	LegacyPassword string `envconfig:"KALAA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KALAA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KALAA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KALAA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KALAA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KALAA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KALAA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KALAA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KALAA_REDIS_ADDR"`
	Password     string        `envconfig:"KALAA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KALAA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KALAA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KALAA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KALAA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KALAA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KALAA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KALAA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KALAA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"KALAA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"KALAA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KALAA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KALAA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KALAA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KALAA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KALAA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KALAA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"KALAA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"KALAA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"KALAA_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"KALAA_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"KALAA_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KALAA_AUTO_MIGRATE" default:"false"`
}

type CartConfig struct {
	AbandonAfter  time.Duration `envconfig:"KALAA_CART_ABANDON_AFTER" default:"30m"`
	ExpiryDays    int           `envconfig:"KALAA_CART_EXPIRY_DAYS" default:"7"`
	SaveRetries   int           `envconfig:"KALAA_CART_SAVE_RETRIES" default:"3"`
	SweepInterval time.Duration `envconfig:"KALAA_CART_SWEEP_INTERVAL" default:"10m"`
}

type CatalogConfig struct {
	ProductCacheTTL time.Duration `envconfig:"KALAA_PRODUCT_CACHE_TTL" default:"1h"`
}

type OrdersConfig struct {
	TaxRatePercent    float64 `envconfig:"KALAA_ORDERS_TAX_RATE_PERCENT" default:"0"`
	FlatShippingPrice string  `envconfig:"KALAA_ORDERS_FLAT_SHIPPING" default:"0"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
