package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // driver pgx5://
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator aplica las migraciones SQL embebidas en el binario.
type Migrator struct {
	m   *migrate.Migrate
	log zerolog.Logger
}

// NewMigrator abre el origen embebido y la base indicada por dsn (postgres:// o postgresql://).
func NewMigrator(dsn string, log zerolog.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("abrir migraciones: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return nil, classify("conectar migrador", err)
	}
	return &Migrator{m: m, log: log.With().Str("component", "migrate").Logger()}, nil
}

// Up aplica todas las migraciones pendientes. Sin cambios no es error.
func (g *Migrator) Up() error {
	err := g.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		g.log.Info().Msg("esquema al día")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	g.logVersion("migraciones aplicadas")
	return nil
}

// Down revierte n migraciones (n <= 0 revierte todas).
func (g *Migrator) Down(n int) error {
	var err error
	if n <= 0 {
		err = g.m.Down()
	} else {
		err = g.m.Steps(-n)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	g.logVersion("migraciones revertidas")
	return nil
}

// Version devuelve la versión actual; 0 si la base no tiene migraciones.
func (g *Migrator) Version() (uint, bool, error) {
	v, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close libera origen y conexión.
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (g *Migrator) logVersion(msg string) {
	v, dirty, err := g.Version()
	if err != nil {
		g.log.Warn().Err(err).Msg(msg)
		return
	}
	g.log.Info().Uint("version", v).Bool("dirty", dirty).Msg(msg)
}

// migrateURL adapta el DSN al esquema que registra el driver pgx/v5 de golang-migrate.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
