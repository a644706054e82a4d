package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/iudanet/transitauth/internal/admin"
	"github.com/iudanet/transitauth/internal/client/iocli"
	"github.com/iudanet/transitauth/internal/config"
	"github.com/iudanet/transitauth/internal/crypto"
	"github.com/iudanet/transitauth/internal/server/stores"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml if present)")
	email := flag.String("email", "", "Admin email (prompted if empty)")
	name := flag.String("name", "", "Admin display name (prompted if empty)")
	passwordFile := flag.String("password-file", "", "Read the password from file instead of prompting")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("TransitAuth Admin\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	if err := run(*configPath, admin.Input{Email: *email, Name: *name, PasswordFile: *passwordFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, in admin.Input) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()

	users, err := stores.OpenUsers(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer users.Close()

	stdio := iocli.NewStdio()
	stdio.Println("=== Create administrator ===")

	b := admin.NewBootstrapper(users, crypto.NewPasswordHasher(cfg.Auth.BcryptCost), stdio)
	user, err := b.CreateAdmin(ctx, in)
	if err != nil {
		return err
	}

	stdio.Println()
	stdio.Println("✓ Administrator created")
	stdio.Printf("User ID: %d\n", user.ID)
	stdio.Printf("Email:   %s\n", user.Email)
	return nil
}
