// Package main is the entry point for the Leonidas Directory admin CLI.
// It talks to the store directly, bypassing the HTTP API, so it can
// bootstrap the first admin account that API-side creation requires.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/leonidas-directory/internal/config"
	"github.com/prn-tf/leonidas-directory/internal/domain"
	"github.com/prn-tf/leonidas-directory/internal/repository"
	"github.com/prn-tf/leonidas-directory/internal/repository/postgres"
	"github.com/prn-tf/leonidas-directory/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Leonidas Directory Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "bootstrap":
		runBootstrap(os.Args[2:])

	case "user":
		runUser(os.Args[2:])

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runBootstrap(args []string) {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	login := fs.String("login", "", "admin login (3-50 alphanumeric)")
	password := fs.String("password", "", "admin password (6-100 alphanumeric)")
	name := fs.String("name", "Administrator", "display name")
	_ = fs.Parse(args)

	if *login == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "bootstrap requires --login and --password")
		os.Exit(1)
	}

	ctx := context.Background()
	repo, cleanup := mustOpenStore(ctx, *configPath)
	defer cleanup()

	exists, err := repo.ExistsByLogin(ctx, *login)
	if err != nil {
		fatalf("failed to check login: %v", err)
	}
	if exists {
		fatalf("login %q already exists", *login)
	}

	admin := domain.NewUser(*login, *password, *name, domain.GenderUnknown, nil, true, *login, time.Now().UTC())
	if err := repo.Create(ctx, admin); err != nil {
		fatalf("failed to create admin: %v", err)
	}

	fmt.Printf("Created admin %q (id %s)\n", admin.Login, admin.ID)
}

func runUser(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "user requires a subcommand: list, show")
		os.Exit(1)
	}

	sub := args[0]
	fs := flag.NewFlagSet("user "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	login := fs.String("login", "", "login for show")
	id := fs.String("id", "", "user ID for show")
	_ = fs.Parse(args[1:])

	ctx := context.Background()
	repo, cleanup := mustOpenStore(ctx, *configPath)
	defer cleanup()

	switch sub {
	case "list":
		users, err := repo.ListActive(ctx)
		if err != nil {
			fatalf("failed to list users: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LOGIN\tNAME\tADMIN\tCREATED\tCREATED BY")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
				u.Login, u.Name, u.Admin, u.CreatedAt.Format(time.RFC3339), u.CreatedBy)
		}
		_ = w.Flush()

	case "show":
		u, err := resolveUser(ctx, repo, *login, *id)
		if err != nil {
			fatalf("failed to get user: %v", err)
		}
		fmt.Printf("ID:          %s\n", u.ID)
		fmt.Printf("Login:       %s\n", u.Login)
		fmt.Printf("Name:        %s\n", u.Name)
		fmt.Printf("Gender:      %s\n", u.Gender.Label())
		if u.Birthday != nil {
			fmt.Printf("Birthday:    %s\n", u.Birthday.Format("2006-01-02"))
		}
		fmt.Printf("Admin:       %t\n", u.Admin)
		fmt.Printf("Status:      %s\n", u.Status())
		fmt.Printf("Created:     %s by %s\n", u.CreatedAt.Format(time.RFC3339), u.CreatedBy)
		fmt.Printf("Modified:    %s by %s\n", u.ModifiedAt.Format(time.RFC3339), u.ModifiedBy)
		if u.RevokedAt != nil {
			fmt.Printf("Revoked:     %s by %s\n", u.RevokedAt.Format(time.RFC3339), *u.RevokedBy)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown user subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// resolveUser looks a user up by login or by ID, whichever flag was given.
// IDs are the stable handle once a login has been renamed or freed.
func resolveUser(ctx context.Context, repo repository.UserRepository, login, id string) (*domain.User, error) {
	switch {
	case login != "" && id != "":
		return nil, fmt.Errorf("--login and --id are mutually exclusive")
	case login != "":
		return repo.GetByLogin(ctx, login)
	case id != "":
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q: %w", id, err)
		}
		return repo.GetByID(ctx, parsed)
	default:
		return nil, fmt.Errorf("user show requires --login or --id")
	}
}

// mustOpenStore opens the configured store, running migrations first so
// the CLI works against a fresh database.
func mustOpenStore(ctx context.Context, configPath string) (repository.UserRepository, func()) {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			fatalf("failed to connect to postgres: %v", err)
		}
		if err := db.Migrate(ctx); err != nil {
			fatalf("failed to migrate: %v", err)
		}
		return postgres.NewUserRepository(db), func() { _ = db.Close() }

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			fatalf("failed to open sqlite: %v", err)
		}
		if err := db.Migrate(ctx); err != nil {
			fatalf("failed to migrate: %v", err)
		}
		return sqlite.NewUserRepository(db), func() { _ = db.Close() }

	default:
		fatalf("unsupported database driver: %s", cfg.Database.Driver)
		return nil, nil
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Leonidas Directory Admin CLI

Usage:
  leonidas-admin <command> [arguments]

Commands:
  bootstrap   Create the initial admin account directly in the store
  user        Inspect users (list, show)
  version     Print version information
  help        Show this help message

Examples:
  leonidas-admin bootstrap --login root --password changeme
  leonidas-admin user list
  leonidas-admin user show --login root
  leonidas-admin user show --id 6f1c1f2e-8f57-4f6a-9a3c-0f4f5b2a9d11

Use "leonidas-admin <command> --help" for more information about a command.`)
}
