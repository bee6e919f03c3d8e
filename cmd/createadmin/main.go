// Command createadmin bootstraps the first administrator account, since
// registration through the API already requires an admin session.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	"github.com/segyhp/lending-ledger/internal/service"
)

func main() {
	name := flag.String("name", "", "administrator name")
	phone := flag.String("phone", "", "administrator phone number")
	password := flag.String("password", "", "administrator password (min 6 characters)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	if *name == "" || *phone == "" || len(*password) < 6 {
		flag.Usage()
		os.Exit(2)
	}

	db, err := repository.Open(cfg.Database)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repository.Migrate(ctx, db); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	users := service.NewUserService(repository.NewUserRepository(db), cfg)
	admin, err := users.Register(ctx, &domain.RegisterUserRequest{
		Name:             *name,
		Phone:            *phone,
		Password:         *password,
		Role:             domain.RoleAdmin,
		VerificationCode: cfg.Auth.RegistrationCode,
	})
	if err != nil {
		slog.Error("failed to create administrator", "error", err)
		os.Exit(1)
	}

	slog.Info("administrator created", "id", admin.ID, "phone", admin.Phone)
}
