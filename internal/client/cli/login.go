package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/transitauth/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context, remember bool) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	// Шаг 1: пароль, сервер отправляет код на email
	challenge, err := c.apiClient.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Printf("A login code was sent to %s (valid until %s).\n", email, challenge.ExpiresAt.Local().Format(time.Kitchen))

	code, err := c.io.ReadInput("Code: ")
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}

	// Шаг 2: код из письма
	resp, err := c.apiClient.VerifyOTP(ctx, api.VerifyOTPRequest{
		SessionID:  challenge.SessionID,
		OTP:        code,
		RememberMe: remember,
	})
	if err != nil {
		return err
	}

	if err := c.saveAuth(ctx, resp, remember); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Email: %s\n", resp.User.Email)
	c.io.Printf("Access token expires in: %d seconds\n", resp.ExpiresIn)

	return nil
}
