package postgres

import (
	"net"
	"net/url"
	"strconv"

	"github.com/ShipLog-Showcase/showcase-backend/config"
)

// DSN returns the connection URL shared by pgxpool and lib/pq. An explicit
// DB_DSN wins; otherwise the URL is assembled from the parts so that
// credentials with reserved characters survive.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}

	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()
	return u.String()
}
