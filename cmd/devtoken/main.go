package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	pkgAuth "github.com/angelmondragon/tradelink-backend/pkg/auth"
	"github.com/angelmondragon/tradelink-backend/pkg/auth/session"
	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/redis"
)

// devtoken mints an access token for a seeded user and registers its session,
// standing in for the identity provider on local stacks.
func main() {
	logg := logger.New(logger.Options{ServiceName: "devtoken"})
	_ = godotenv.Load()

	userFlag := flag.String("user", "", "user id (uuid)")
	accountFlag := flag.String("account", "", "consumer or supplier account id (uuid)")
	roleFlag := flag.String("role", string(enums.RoleConsumer), "consumer|supplier_admin|sales_rep|manager")
	flag.Parse()

	cfg, err := config.Load()
	requireOK(logg, "config", err)
	if !cfg.App.IsDev() {
		fmt.Fprintln(os.Stderr, "devtoken only runs with TRADELINK_APP_ENV=dev")
		os.Exit(1)
	}

	userID, err := uuid.Parse(*userFlag)
	requireOK(logg, "user id", err)
	accountID, err := uuid.Parse(*accountFlag)
	requireOK(logg, "account id", err)
	role, err := enums.ParseRole(*roleFlag)
	requireOK(logg, "role", err)

	ctx := context.Background()
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireOK(logg, "redis", err)
	defer redisClient.Close()

	sessions, err := session.NewManager(redisClient)
	requireOK(logg, "session manager", err)

	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:    userID,
		AccountID: accountID,
		Role:      role,
		JTI:       accessID,
	})
	requireOK(logg, "mint token", err)
	requireOK(logg, "register session", sessions.Register(ctx, accessID, userID.String(), cfg.JWT.AccessTTL()))

	fmt.Println(token)
}

func requireOK(logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("devtoken: %s", step), err)
	os.Exit(1)
}
