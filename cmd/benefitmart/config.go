package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/service/order"
	"github.com/nkiryanov/benefitmart/internal/service/sweeper"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultAccrualInterval = time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Access tokens are signed with symmetric algorithm, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// RabbitMQ to publish order events to
	// Events are not published if empty
	AMQPURL      string
	AMQPExchange string

	// How long points and stock stay reserved for an unconfirmed order
	ReservationTTL time.Duration

	// Expired reservations lookup interval
	SweepInterval time.Duration

	// Scheduled accrual runs for listed tenants only
	// Accrual is not scheduled if the list is empty
	AccrualInterval time.Duration
	AccrualTenants  []string

	// Origins allowed to call API from browsers
	CORSOrigins []string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		ReservationTTL:  order.DefaultReservationTTL,
		SweepInterval:   sweeper.DefaultSweepInterval,
		AccrualInterval: defaultAccrualInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":      setString(&c.ListenAddr),
		"DATABASE_URI":     setString(&c.DatabaseDSN),
		"SECRET_KEY":       setString(&c.SecretKey),
		"LOG_LEVEL":        setString(&c.LogLevel),
		"ENVIRONMENT":      setString(&c.Environment),
		"AMQP_URL":         setString(&c.AMQPURL),
		"AMQP_EXCHANGE":    setString(&c.AMQPExchange),
		"RESERVATION_TTL":  setDuration(&c.ReservationTTL),
		"SWEEP_INTERVAL":   setDuration(&c.SweepInterval),
		"ACCRUAL_INTERVAL": setDuration(&c.AccrualInterval),
		"ACCRUAL_TENANTS":  setList(&c.AccrualTenants),
		"CORS_ORIGINS":     setList(&c.CORSOrigins),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("benefitmart", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.AMQPURL, "amqp", "q", c.AMQPURL, "RabbitMQ URL to publish order events to")
	fs.StringVar(&c.AMQPExchange, "amqp-exchange", c.AMQPExchange, "RabbitMQ exchange for order events")
	fs.DurationVar(&c.ReservationTTL, "reservation-ttl", c.ReservationTTL, "How long an order stays reserved")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "Expired reservations lookup interval")
	fs.DurationVar(&c.AccrualInterval, "accrual-interval", c.AccrualInterval, "Scheduled accrual interval")
	fs.StringSliceVar(&c.AccrualTenants, "accrual-tenants", c.AccrualTenants, "Tenants to run scheduled accrual for")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "Origins allowed to call API from browsers")

	return fs.Parse(args)
}

// Validate checks options that have no sane default
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.ReservationTTL <= 0 || c.SweepInterval <= 0 || c.AccrualInterval <= 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	if _, err := c.Tenants(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) Tenants() ([]uuid.UUID, error) {
	tenants := make([]uuid.UUID, 0, len(c.AccrualTenants))
	for _, s := range c.AccrualTenants {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid accrual tenant %q: %w", s, err)
		}
		tenants = append(tenants, id)
	}
	return tenants, nil
}

func splitList(value string) []string {
	var list []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return list
}
