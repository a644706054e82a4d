package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/iudanet/transitauth/internal/client/api"
	"github.com/iudanet/transitauth/internal/client/iocli"
	"github.com/iudanet/transitauth/internal/client/storage"
	pkgapi "github.com/iudanet/transitauth/pkg/api"
)

// ErrUnknownCommand is returned by Run for an unsupported command.
var ErrUnknownCommand = errors.New("unknown command")

// errNotAuthenticated подсказка при отсутствии сохраненной сессии
var errNotAuthenticated = errors.New("not authenticated. Please run 'transitauth login' first")

// Cli выполняет команды пользователя против API сервера
type Cli struct {
	apiClient *api.Client
	store     storage.AuthStorage
	io        iocli.IO
	now       func() time.Time
}

// New creates the command runner.
func New(apiClient *api.Client, store storage.AuthStorage, io iocli.IO) *Cli {
	return &Cli{
		apiClient: apiClient,
		store:     store,
		io:        io,
		now:       time.Now,
	}
}

// Run executes command with its arguments.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		fs := newFlagSet(command)
		remember := fs.Bool("remember", false, "Keep the session for 30 days")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.runLogin(ctx, *remember)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "me":
		return c.runMe(ctx)
	case "refresh":
		return c.runRefresh(ctx)
	case "change-password":
		return c.runChangePassword(ctx)
	case "forgot-password":
		return c.runForgotPassword(ctx)
	case "reset-password":
		return c.runResetPassword(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// token возвращает сохраненный и не истекший access token
func (c *Cli) token(ctx context.Context) (*storage.AuthData, error) {
	ok, err := c.store.IsAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check authentication: %w", err)
	}
	if !ok {
		return nil, errNotAuthenticated
	}
	return c.store.GetAuth(ctx)
}

// saveAuth сохраняет токен из ответа сервера
func (c *Cli) saveAuth(ctx context.Context, resp *pkgapi.AuthResponse, remember bool) error {
	authData := &storage.AuthData{
		Email:       resp.User.Email,
		Role:        string(resp.User.Role),
		UserID:      resp.User.ID,
		AccessToken: resp.Token,
		Remember:    remember,
		ExpiresAt:   c.now().Unix() + resp.ExpiresIn,
	}
	if err := c.store.SaveAuth(ctx, authData); err != nil {
		return fmt.Errorf("failed to save auth data: %w", err)
	}
	return nil
}

// PrintUsage печатает справку
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "TransitAuth Client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  transitauth [OPTIONS] COMMAND")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version                    Show version information")
	fmt.Fprintln(w, "  --server URL                 Server URL (default: http://localhost:8080)")
	fmt.Fprintln(w, "  --db PATH                    Path to local session file (default: transitauth-client.db)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  register                Register new account")
	fmt.Fprintln(w, "  login [--remember]      Login with password and emailed code")
	fmt.Fprintln(w, "  logout                  Logout and delete the local session")
	fmt.Fprintln(w, "  status                  Show authentication status")
	fmt.Fprintln(w, "  me                      Show the current account")
	fmt.Fprintln(w, "  refresh                 Re-issue the access token")
	fmt.Fprintln(w, "  change-password         Change the account password")
	fmt.Fprintln(w, "  forgot-password         Request a password reset email")
	fmt.Fprintln(w, "  reset-password          Set a new password with the emailed token")
}
