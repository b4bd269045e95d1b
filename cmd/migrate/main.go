package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jhoicas/stockflow/internal/infrastructure/postgres"
	"github.com/jhoicas/stockflow/pkg/config"
	"github.com/jhoicas/stockflow/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "migraciones del esquema PostgreSQL de stockflow",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "DSN postgres:// (por defecto el de la configuración)",
				EnvVars: []string{"MIGRATE_DATABASE_URL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "aplica todas las migraciones pendientes",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *postgres.Migrator) error { return m.Up() })
				},
			},
			{
				Name:  "down",
				Usage: "revierte migraciones",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "cuántas revertir (0 = todas)"},
				},
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *postgres.Migrator) error { return m.Down(c.Int("steps")) })
				},
			},
			{
				Name:  "version",
				Usage: "muestra la versión aplicada",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *postgres.Migrator) error {
						v, dirty, err := m.Version()
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "version=%d dirty=%t\n", v, dirty)
						return nil
					})
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func withMigrator(c *cli.Context, fn func(*postgres.Migrator) error) error {
	dsn := c.String("database-url")
	var env string
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dsn, env = cfg.DB.ConnectionString(), cfg.App.Env
	}
	log := logger.New(logger.Config{Env: env, Level: "info", Service: "stockflow-migrate"})
	m, err := postgres.NewMigrator(dsn, log.Zerolog())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("cerrar migrador")
		}
	}()
	return fn(m)
}
