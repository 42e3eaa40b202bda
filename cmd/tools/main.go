package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/auth"
	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/database"
	"github.com/voxmind/voxmind-backend/internal/keys"
	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/providers/openai"
	"github.com/voxmind/voxmind-backend/internal/repository/postgres"
	"github.com/voxmind/voxmind-backend/internal/services"
)

const usage = `Usage: tools <command> [arguments]

Commands:
  migrate up|down|version     apply, roll back or show schema migrations
  token [-subject s] [-ttl d] print an admin JWT
  summarize <conversation_id> summarize a conversation now
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(cfg, os.Args[2:])
	case "token":
		err = runToken(cfg, os.Args[2:])
	case "summarize":
		err = runSummarize(cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logrus.WithError(err).Fatal(os.Args[1] + " failed")
	}
}

func runMigrate(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("migrate needs one of up, down or version")
	}

	switch args[0] {
	case "up":
		if err := database.RunMigrations(cfg.Database); err != nil {
			return err
		}
		logrus.Info("Migrations applied")
	case "down":
		if err := database.RollbackMigration(cfg.Database); err != nil {
			return err
		}
		logrus.Info("Rolled back one migration")
	case "version":
		version, dirty, err := database.MigrationVersion(cfg.Database)
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
	default:
		return fmt.Errorf("unknown migrate direction %q", args[0])
	}
	return nil
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "admin", "token subject")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := auth.NewJWTService(cfg.Auth.JWTSecret).GenerateAdminToken(*subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runSummarize(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("summarize needs a conversation id")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid conversation id: %w", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	// Submitted keys are only readable with the encryption key.
	var keyring *keys.Keyring
	if cfg.Auth.EncryptionKey != "" {
		sealer, err := keys.NewSealer(cfg.Auth.EncryptionKey)
		if err != nil {
			return err
		}
		keyring = keys.NewKeyring(cfg.Auth, sealer, postgres.NewProviderKeyRepository(db.DB), nil)
		if err := keyring.Load(context.Background()); err != nil {
			return err
		}
	} else {
		keyring = keys.NewKeyring(cfg.Auth, nil, nil, nil)
	}

	completer := openai.NewProvider(cfg.OpenAI, keyring, nil, nil, nil)
	store := services.NewMemoryStore(postgres.NewMessageRepository(db.DB), postgres.NewMemoryRepository(db.DB))
	summarizer := memory.NewSummarizer(services.MemoryConfig(cfg.Memory), completer, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if !summarizer.Summarize(ctx, id) {
		return fmt.Errorf("no summary was stored for %s", id)
	}
	logrus.WithField("conversation_id", id).Info("Summary stored")
	return nil
}
