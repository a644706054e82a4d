package cli

import (
	"context"
)

func (c *Cli) runMe(ctx context.Context) error {
	authData, err := c.token(ctx)
	if err != nil {
		return err
	}

	user, err := c.apiClient.Me(ctx, authData.AccessToken)
	if err != nil {
		return err
	}

	c.io.Printf("ID: %d\n", user.ID)
	c.io.Printf("Name: %s %s\n", user.Name, user.LastName)
	c.io.Printf("Email: %s (verified: %t)\n", user.Email, user.EmailVerified)
	c.io.Printf("Role: %s\n", user.Role)
	c.io.Printf("Status: %s\n", user.Status)
	return nil
}

func (c *Cli) runRefresh(ctx context.Context) error {
	authData, err := c.token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.apiClient.Refresh(ctx, authData.AccessToken)
	if err != nil {
		return err
	}

	if err := c.saveAuth(ctx, resp, authData.Remember); err != nil {
		return err
	}

	c.io.Printf("✓ Token refreshed, expires in %d seconds\n", resp.ExpiresIn)
	return nil
}
