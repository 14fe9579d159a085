package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/config"
	"taskboard-go/internal/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file (for storage.postgres_dsn)")
	dsn := flag.String("dsn", "", "PostgreSQL connection string (overrides storage.postgres_dsn)")
	action := flag.String("action", "up", "migration action: up, down, or status")
	steps := flag.Int("steps", 1, "steps to migrate when action=down")
	flag.Parse()

	if *dsn == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load configuration")
		}
		*dsn = cfg.Storage.PostgresDSN
	}
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "no DSN: pass -dsn or set storage.postgres_dsn")
		os.Exit(2)
	}

	db, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	switch *action {
	case "up":
		if err := migrations.PostgresUp(db); err != nil {
			log.WithError(err).Fatal("migrate up")
		}
		log.Info("migrations applied")
	case "down":
		if err := migrations.PostgresDown(db, *steps); err != nil {
			log.WithError(err).Fatal("migrate down")
		}
		log.Infof("rolled back %d step(s)", *steps)
	case "status":
		st, err := migrations.PostgresStatus(db)
		if err != nil {
			log.WithError(err).Fatal("read migration status")
		}
		state := "clean"
		if st.Dirty {
			state = "dirty"
		}
		fmt.Printf("version %d (%s), applied=%t\n", st.Version, state, st.Applied)
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q (expected up, down, status)\n", *action)
		os.Exit(2)
	}
}
