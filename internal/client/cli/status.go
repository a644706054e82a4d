package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/transitauth/internal/client/storage"
)

// runStatus показывает локальную сессию без запроса к серверу
func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Printf("Server: %s\n", c.apiClient.BaseURL())

	authData, err := c.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		c.io.Println("Status: not logged in")
		c.io.Println("Run 'transitauth login' to authenticate.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get auth data: %w", err)
	}

	expiresAt := time.Unix(authData.ExpiresAt, 0)
	left := expiresAt.Sub(c.now())
	if left <= 0 {
		c.io.Printf("Status: session of %s expired at %s\n", authData.Email, expiresAt.Format(time.RFC3339))
		c.io.Println("Run 'transitauth login' to authenticate again.")
		return nil
	}

	c.io.Println("Status: logged in")
	c.io.Printf("Email: %s\n", authData.Email)
	c.io.Printf("Role: %s\n", authData.Role)
	c.io.Printf("Token expires: %s (in %s)\n", expiresAt.Format(time.RFC3339), left.Round(time.Second))
	if authData.Remember {
		c.io.Println("Remember me: on")
	}
	return nil
}
