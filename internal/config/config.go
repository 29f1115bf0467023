// Package config reads the account service settings from the environment.
// Database and logging settings live with pkg/database and pkg/utilities.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	HTTPAddr       string
	BasePath       string
	StoreDriver    string
	RequestTimeout time.Duration

	JWTIssuer         string
	JWTPrivateKeyFile string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration

	VerificationCodeTTL time.Duration
	BcryptCost          int
	SnowflakeNode       int64

	ResendAPIKey   string
	FromName       string
	FromEmail      string
	MailMaxRetries uint64
	MailRetryBase  time.Duration
}

// LoadDefaults fills every field with its built-in default.
func (c *Config) LoadDefaults() {
	*c = Config{
		HTTPAddr:            "0.0.0.0:8431",
		BasePath:            "/pitchfork-api-account",
		StoreDriver:         StoreDriverPostgres,
		RequestTimeout:      10 * time.Second,
		JWTIssuer:           "pitchfork-account",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     30 * 24 * time.Hour,
		VerificationCodeTTL: 15 * time.Minute,
		BcryptCost:          12,
		SnowflakeNode:       1,
		FromName:            "Pitchfork",
		FromEmail:           "no-reply@example.com",
		MailMaxRetries:      3,
		MailRetryBase:       200 * time.Millisecond,
	}
}

// FromEnv starts from the defaults and applies any set variables. Malformed
// values are errors rather than silently ignored.
func FromEnv() (Config, error) {
	var c Config
	c.LoadDefaults()
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}
	integer := func(key string, bits int, dst func(int64)) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseInt(v, 10, bits)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
			return
		}
		dst(n)
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("API_BASE_PATH", &c.BasePath)
	str("STORE_DRIVER", &c.StoreDriver)
	dur("REQUEST_TIMEOUT", &c.RequestTimeout)
	str("JWT_ISSUER", &c.JWTIssuer)
	str("JWT_PRIVATE_KEY_FILE", &c.JWTPrivateKeyFile)
	dur("ACCESS_TOKEN_TTL", &c.AccessTokenTTL)
	dur("REFRESH_TOKEN_TTL", &c.RefreshTokenTTL)
	dur("VERIFICATION_CODE_TTL", &c.VerificationCodeTTL)
	integer("BCRYPT_COST", 32, func(n int64) { c.BcryptCost = int(n) })
	integer("SNOWFLAKE_NODE", 64, func(n int64) { c.SnowflakeNode = n })
	str("RESEND_API_KEY", &c.ResendAPIKey)
	str("FROM_NAME", &c.FromName)
	str("FROM_EMAIL", &c.FromEmail)
	integer("MAIL_MAX_RETRIES", 64, func(n int64) { c.MailMaxRetries = uint64(n) })
	dur("MAIL_RETRY_BASE", &c.MailRetryBase)

	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	if c.BasePath == "/" {
		c.BasePath = ""
	}
	if err := c.validate(); err != nil {
		errs = append(errs, err)
	}
	return c, errors.Join(errs...)
}

func (c Config) validate() error {
	var errs []error
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST: %d out of range 4-31", c.BcryptCost))
	}
	if c.SnowflakeNode > 1023 {
		errs = append(errs, fmt.Errorf("SNOWFLAKE_NODE: %d out of range 0-1023", c.SnowflakeNode))
	}
	return errors.Join(errs...)
}
