package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/transitauth/pkg/api"
)

func (c *Cli) runChangePassword(ctx context.Context) error {
	authData, err := c.token(ctx)
	if err != nil {
		return err
	}

	current, err := c.io.ReadPassword("Current password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	next, err := c.io.ReadPassword("New password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm new password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	err = c.apiClient.ChangePassword(ctx, authData.AccessToken, api.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
		ConfirmPassword: confirm,
	})
	if err != nil {
		return err
	}

	c.io.Println("✓ Password changed")
	return nil
}

func (c *Cli) runForgotPassword(ctx context.Context) error {
	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	if err := c.apiClient.ForgotPassword(ctx, email); err != nil {
		return err
	}

	c.io.Println("If the account exists, a reset link has been sent.")
	return nil
}

func (c *Cli) runResetPassword(ctx context.Context) error {
	token, err := c.io.ReadInput("Reset token: ")
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	next, err := c.io.ReadPassword("New password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm new password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	err = c.apiClient.ResetPassword(ctx, api.ResetPasswordRequest{
		Token:           token,
		NewPassword:     next,
		ConfirmPassword: confirm,
	})
	if err != nil {
		return err
	}

	c.io.Println("✓ Password has been reset. You can now log in.")
	return nil
}
