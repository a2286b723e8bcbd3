package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"medtriage/internal/config"
)

// ErrDatabaseNotConfigured is returned when no database host is set
var ErrDatabaseNotConfigured = errors.New("database not configured")

const connectTimeout = 5 * time.Second

// TokenFunc produces an IAM auth token used as the database password
type TokenFunc func(ctx context.Context, endpoint, region, user string) (string, error)

// HealthChecker verifies that the configured Postgres instance accepts queries
type HealthChecker struct {
	cfg    config.DatabaseConfig
	region string
	token  TokenFunc
}

// NewHealthChecker creates a checker for cfg. region is used for IAM tokens
// when cfg does not set one.
func NewHealthChecker(cfg config.DatabaseConfig, region string) *HealthChecker {
	if cfg.Region != "" {
		region = cfg.Region
	}
	return &HealthChecker{cfg: cfg, region: region, token: rdsAuthToken}
}

// WithTokenFunc replaces the IAM token source
func (h *HealthChecker) WithTokenFunc(fn TokenFunc) *HealthChecker {
	h.token = fn
	return h
}

// Check connects, pings and runs SELECT 1 within the connect timeout
func (h *HealthChecker) Check(ctx context.Context) error {
	if !h.cfg.Configured() {
		return ErrDatabaseNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	password := h.cfg.Password
	if h.cfg.IAMAuth {
		token, err := h.token(ctx, h.endpoint(), h.region, h.cfg.User)
		if err != nil {
			return fmt.Errorf("build IAM auth token: %w", err)
		}
		password = token
	}

	db, err := sql.Open("pgx", BuildDSN(h.cfg, password))
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db.Ping %s: %w", h.endpoint(), err)
	}

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("SELECT 1: %w", err)
	}
	if one != 1 {
		return fmt.Errorf("SELECT 1 returned %d", one)
	}
	return nil
}

func (h *HealthChecker) endpoint() string {
	return net.JoinHostPort(h.cfg.Host, strconv.Itoa(h.cfg.Port))
}

// BuildDSN renders a postgres URL for cfg with the given password
func BuildDSN(cfg config.DatabaseConfig, password string) string {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	q.Set("connect_timeout", strconv.Itoa(int(connectTimeout/time.Second)))

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	if password != "" {
		u.User = url.UserPassword(cfg.User, password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	return u.String()
}

// SafeDSNSummary describes the target without credentials
func SafeDSNSummary(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)
}

func rdsAuthToken(ctx context.Context, endpoint, region, user string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	return auth.BuildAuthToken(ctx, endpoint, region, user, awsCfg.Credentials)
}
