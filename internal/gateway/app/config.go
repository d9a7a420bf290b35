package app

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/registry"
)

const (
	MethodCookie = "cookie"
	MethodBearer = "bearer"
)

type Config struct {
	ListenAddr string // GATEWAY_LISTEN_ADDR (default: 0.0.0.0:8080)

	AuthMethod   string             // GATEWAY_AUTH_METHOD, cookie or bearer (default: cookie)
	AuthHeader   string             // GATEWAY_AUTH_HEADER (default: Authorization)
	Realm        string             // GATEWAY_AUTH_REALM (default: tollgate)
	CookieSecret string             // GATEWAY_COOKIE_SECRET, seals the cookie when set
	Cookie       httpx.CookieConfig // GATEWAY_COOKIE_NAME and COOKIE_AUTH_*
	RPCTimeout   time.Duration      // GATEWAY_RPC_TIMEOUT (default: 5s)
	AdminGroups  []string           // GATEWAY_ADMIN_GROUPS (default: admin)

	// LoginAudience and LoginSecret together enable POST /login, a
	// development route that issues a pair for the audience to callers
	// presenting the secret. Every login gets LoginGroup, which may not be
	// an admin group.
	LoginAudience string // GATEWAY_LOGIN_AUDIENCE
	LoginSecret   string // GATEWAY_LOGIN_SECRET
	LoginGroup    string // GATEWAY_LOGIN_GROUP (default: user)

	TokenDomain string // GATEWAY_TOKEN_DOMAIN, registry domain of the token service (default: token)
	TokenURL    string // GATEWAY_TOKEN_URL, fixed token service address; skips discovery

	Env                 string
	LogLevel            string
	LogFormat           string
	ShutdownGracePeriod time.Duration

	Etcd registry.EtcdConfig
}

func LoadConfig() (Config, error) {
	cookie := httpx.DefaultCookieConfig()
	cookie.Name = getEnvOrDefault("GATEWAY_COOKIE_NAME", cookie.Name)
	cookie.Path = getEnvOrDefault("COOKIE_AUTH_PATH", cookie.Path)
	cookie.Domain = os.Getenv("COOKIE_AUTH_DOMAIN")
	cookie.MaxAge = getEnvDurationOrDefault("COOKIE_AUTH_MAX_AGE", cookie.MaxAge)
	cookie.SameSite = httpx.ParseSameSite(os.Getenv("COOKIE_AUTH_SAME_SITE"))
	cookie.HttpOnly = getEnvBoolOrDefault("COOKIE_AUTH_HTTP_ONLY", cookie.HttpOnly)
	cookie.Secure = getEnvBoolOrDefault("COOKIE_AUTH_SECURE", cookie.Secure)

	cfg := Config{
		ListenAddr:          getEnvOrDefault("GATEWAY_LISTEN_ADDR", "0.0.0.0:8080"),
		AuthMethod:          strings.ToLower(getEnvOrDefault("GATEWAY_AUTH_METHOD", MethodCookie)),
		AuthHeader:          getEnvOrDefault("GATEWAY_AUTH_HEADER", httpx.DefaultBearer),
		Realm:               getEnvOrDefault("GATEWAY_AUTH_REALM", httpx.DefaultRealm),
		CookieSecret:        os.Getenv("GATEWAY_COOKIE_SECRET"),
		Cookie:              cookie,
		RPCTimeout:          getEnvDurationOrDefault("GATEWAY_RPC_TIMEOUT", httpx.DefaultAuthTimeout),
		AdminGroups:         splitList(getEnvOrDefault("GATEWAY_ADMIN_GROUPS", "admin")),
		LoginAudience:       os.Getenv("GATEWAY_LOGIN_AUDIENCE"),
		LoginSecret:         os.Getenv("GATEWAY_LOGIN_SECRET"),
		LoginGroup:          getEnvOrDefault("GATEWAY_LOGIN_GROUP", "user"),
		TokenDomain:         getEnvOrDefault("GATEWAY_TOKEN_DOMAIN", "token"),
		TokenURL:            os.Getenv("GATEWAY_TOKEN_URL"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		Etcd:                registry.LoadEtcdConfig(),
	}
	cfg.Etcd.LogLevel = cfg.LogLevel

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.AuthMethod {
	case MethodCookie, MethodBearer:
	default:
		errs = append(errs, fmt.Errorf("unknown auth method %q", c.AuthMethod))
	}
	if c.TokenURL == "" && c.TokenDomain == "" {
		errs = append(errs, errors.New("either GATEWAY_TOKEN_URL or GATEWAY_TOKEN_DOMAIN is required"))
	}
	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rpc timeout must be positive, got %s", c.RPCTimeout))
	}
	if c.LoginAudience != "" {
		if c.LoginSecret == "" {
			errs = append(errs, errors.New("GATEWAY_LOGIN_SECRET is required when GATEWAY_LOGIN_AUDIENCE is set"))
		}
		if slices.Contains(c.AdminGroups, c.LoginGroup) {
			errs = append(errs, fmt.Errorf("login group %q is an admin group", c.LoginGroup))
		}
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
