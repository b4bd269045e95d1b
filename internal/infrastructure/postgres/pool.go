package postgres

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stockflow/pkg/config"
)

// NewPool crea un pool de conexiones PostgreSQL usando la configuración de la app.
// Con ForceIPv4 el dial resuelve el host a IPv4 (Docker suele no tener IPv6).
func NewPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	if cfg.ForceIPv4 {
		poolConfig.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{}
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ipv4, err := resolveIPv4(ctx, host)
			if err != nil {
				return dialer.DialContext(ctx, network, addr)
			}
			return dialer.DialContext(ctx, "tcp4", net.JoinHostPort(ipv4, port))
		}
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("crear pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify("ping DB", err)
	}
	return pool, nil
}

// Pinger verificación de salud del almacenamiento sobre el pool.
type Pinger struct {
	pool *pgxpool.Pool
}

// NewPinger construye el verificador.
func NewPinger(pool *pgxpool.Pool) *Pinger { return &Pinger{pool: pool} }

// Ping hace un round-trip al servidor.
func (p *Pinger) Ping(ctx context.Context) error {
	return classify("ping", p.pool.Ping(ctx))
}

func resolveIPv4(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() != nil {
			return host, nil
		}
		return "", fmt.Errorf("es IPv6")
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("no hay IPv4")
	}
	return ips[0].String(), nil
}
