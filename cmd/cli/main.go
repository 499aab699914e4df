package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/repository"
)

const usage = `usage:
  cli create-admin -email EMAIL -password PASSWORD [-name NAME]
  cli purge-tokens [-older-than DURATION]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
		email := fs.String("email", "", "admin email")
		password := fs.String("password", "", "admin password (min 6 characters)")
		name := fs.String("name", "Studio Admin", "display name")
		_ = fs.Parse(os.Args[2:])
		if *email == "" || len(*password) < 6 {
			fmt.Fprintln(os.Stderr, "email and a password of at least 6 characters are required")
			fs.PrintDefaults()
			os.Exit(2)
		}
		err = withDB(func(ctx context.Context, db *sql.DB, cfg config.Config) error {
			id, created, err := repository.NewUserRepo(db).UpsertAdmin(ctx, *email, *name, *password, cfg.BcryptCost)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Printf("admin %s %s (id=%d)\n", *email, verb, id)
			return nil
		})
	case "purge-tokens":
		fs := flag.NewFlagSet("purge-tokens", flag.ExitOnError)
		olderThan := fs.Duration("older-than", 24*time.Hour, "remove tokens expired or revoked longer ago than this")
		_ = fs.Parse(os.Args[2:])
		err = withDB(func(ctx context.Context, db *sql.DB, _ config.Config) error {
			n, err := repository.NewTokenRepo(db).PurgeExpired(ctx, time.Now().Add(-*olderThan))
			if err != nil {
				return err
			}
			fmt.Printf("purged %d refresh tokens\n", n)
			return nil
		})
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// withDB loads config, opens and migrates the database, then runs fn.
func withDB(fn func(ctx context.Context, db *sql.DB, cfg config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()
	// The CLI may run before the server ever has.
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	return fn(ctx, db, cfg)
}
