package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/db"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/migrate"
)

const usage = "usage: migrate [-name n] [-version v] up|down|to|status|version|create|validate"

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "", "migration name for create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for to")
	dir := flag.String("dir", migrate.SourceDir, "source directory for create and validate")
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		fail(usage)
	}

	// create and validate work on files only.
	switch command {
	case "create":
		path, err := migrate.Create(*dir, *name, time.Now())
		if err != nil {
			fail("create: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.Validate(os.DirFS(*dir)); err != nil {
			fail("validate: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "command": command})

	if cfg.DB.Driver == config.DriverSQLite {
		fail("goose migrations target postgres; sqlite databases use the embedded schema")
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "migrate.db_unavailable", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		logg.Error(ctx, "migrate.db_unavailable", err)
		os.Exit(1)
	}
	runner, err := migrate.NewRunner(sqlDB, nil)
	if err != nil {
		logg.Error(ctx, "migrate.provider", err)
		os.Exit(1)
	}

	var done []migrate.Applied
	switch command {
	case "up":
		done, err = runner.Up(ctx)
	case "down":
		done, err = runner.Down(ctx)
	case "to":
		done, err = runner.To(ctx, *version)
	case "status":
		var pending []int64
		if pending, err = runner.Pending(ctx); err == nil {
			fmt.Printf("%d pending: %v\n", len(pending), pending)
		}
	case "version":
		var current int64
		if current, err = runner.Version(ctx); err == nil {
			fmt.Println(current)
		}
	default:
		fail(usage)
	}
	if err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
	for _, m := range done {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": m.Version, "path": m.Path, "direction": m.Direction}), "migrate.applied")
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
