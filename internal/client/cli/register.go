package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/transitauth/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	name, err := c.io.ReadInput("Name: ")
	if err != nil {
		return fmt.Errorf("failed to read name: %w", err)
	}

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password (min 8 chars, upper, lower, digit, special): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	// Подтверждение пароля, совпадение проверяет сервер
	confirmPassword, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	c.io.Println()
	c.io.Println("Registering...")

	resp, err := c.apiClient.Register(ctx, api.RegisterRequest{
		Name:            name,
		Email:           email,
		Password:        password,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("User ID: %d\n", resp.User.ID)
	c.io.Printf("Email: %s\n", resp.User.Email)
	c.io.Println()
	c.io.Println("Check your inbox to verify the email, then run 'transitauth login'.")

	return nil
}
