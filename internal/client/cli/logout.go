package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/transitauth/internal/client/storage"
)

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	authData, err := c.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("failed to get auth data: %w", err)
	}

	// Ошибка сервера не мешает удалить локальную сессию
	if err := c.apiClient.Logout(ctx, authData.AccessToken); err != nil {
		c.io.Printf("Warning: server logout failed: %v\n", err)
	}

	if err := c.store.DeleteAuth(ctx); err != nil {
		return fmt.Errorf("failed to delete local session: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")

	return nil
}
