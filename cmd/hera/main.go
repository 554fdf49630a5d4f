// Command hera runs the universal data core: an HTTP server plus a small
// operational CLI for migrations, tenants and tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aethra/hera/internal/api"
	"github.com/aethra/hera/internal/auth"
	"github.com/aethra/hera/internal/config"
	"github.com/aethra/hera/internal/database"
	"github.com/aethra/hera/internal/engine"
	"github.com/aethra/hera/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const usage = `Usage: hera [-config path] <command>

Commands:
  serve                 run the HTTP server
  migrate               create or update the database schema
  org list              list organizations
  org create            create an organization and print its API key
  token                 mint an actor token for one organization
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}

	switch args[0] {
	case "serve":
		runServe(cfg, db, log)
	case "migrate":
		if err := database.Migrate(db, log); err != nil {
			log.Fatal("migration failed", "error", err)
		}
	case "org":
		runOrg(args[1:], db, log)
	case "token":
		runToken(args[1:], cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runServe(cfg *config.Config, db *gorm.DB, log *logger.Logger) {
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("migration failed", "error", err)
	}

	validator := engine.NewValidator()
	handler := api.NewHandler(
		engine.NewOrganizationEngine(db, log),
		engine.NewEntityEngine(db, log),
		engine.NewFieldEngine(db, validator, log),
		engine.NewRelationshipEngine(db, log),
		engine.NewTransactionEngine(db, log),
		auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry),
		log,
	)

	r := api.SetupRouter(handler, cfg)
	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "mode", cfg.Server.Mode)
	if err := r.Run(addr); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func runOrg(args []string, db *gorm.DB, log *logger.Logger) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: hera org <list|create>")
		os.Exit(2)
	}
	orgs := engine.NewOrganizationEngine(db, log)
	ctx := context.Background()

	switch args[0] {
	case "list":
		list, err := orgs.List(ctx)
		if err != nil {
			log.Fatal("list failed", "error", err)
		}
		for _, org := range list {
			fmt.Printf("%s  %-20s  %s\n", org.ID, org.OrganizationCode, org.OrganizationName)
		}
	case "create":
		fs := flag.NewFlagSet("org create", flag.ExitOnError)
		code := fs.String("code", "", "organization code (required)")
		name := fs.String("name", "", "organization name (required)")
		orgType := fs.String("type", "", "organization type")
		_ = fs.Parse(args[1:])

		key, hash, err := auth.GenerateAPIKey()
		if err != nil {
			log.Fatal("key generation failed", "error", err)
		}
		org, err := orgs.Create(ctx, engine.CreateOrganizationRequest{
			OrganizationCode: *code,
			OrganizationName: *name,
			OrganizationType: *orgType,
			Settings:         map[string]interface{}{auth.APIKeySettingsKey: hash},
		}, nil)
		if err != nil {
			log.Fatal("create failed", "error", err)
		}
		fmt.Printf("organization: %s\n", org.ID)
		fmt.Printf("api key (store it now, it is not shown again): %s\n", key)
	default:
		fmt.Fprintln(os.Stderr, "usage: hera org <list|create>")
		os.Exit(2)
	}
}

func runToken(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	orgIDStr := fs.String("org", "", "organization id (required)")
	actorIDStr := fs.String("actor", "", "actor id (defaults to a fresh id)")
	_ = fs.Parse(args)

	orgID, err := uuid.Parse(*orgIDStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token: valid -org is required")
		os.Exit(2)
	}
	actorID := uuid.New()
	if *actorIDStr != "" {
		if actorID, err = uuid.Parse(*actorIDStr); err != nil {
			fmt.Fprintln(os.Stderr, "token: invalid -actor")
			os.Exit(2)
		}
	}

	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessExpiry)
	token, expiresAt, err := jwtSvc.GenerateToken(actorID, orgID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("actor: %s\n", actorID)
	fmt.Printf("expires: %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Println(token)
}
