package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/jwtauth/internal/api"
	"github.com/dmitrijs2005/jwtauth/internal/client/client"
	"github.com/dmitrijs2005/jwtauth/internal/client/config"
	"github.com/dmitrijs2005/jwtauth/internal/common"
)

// AccessTokenEnv is consulted by whoami when no token argument is given.
const AccessTokenEnv = "JWTAUTH_ACCESS_TOKEN"

const usage = `usage: jwtauth-cli [-a addr] [-t seconds] [-c config.json] <command>

commands:
  register [username]                 create an account
  login [username]                    obtain an access and refresh token
  refresh <userId> <refreshToken>     rotate the token pair
  whoami [accessToken]                show the identity in an access token`

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("invalid usage")

type authService interface {
	Register(ctx context.Context, userName, password string) (*api.RegisterResponse, error)
	Login(ctx context.Context, userName, password string) (*api.TokenPairResponse, error)
	RefreshToken(ctx context.Context, userID, refreshToken string) (*api.TokenPairResponse, error)
	WhoAmI(ctx context.Context, accessToken string) (*api.WhoAmIResponse, error)
	Close() error
}

type App struct {
	config *config.Config
	client authService
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	c, err := client.NewAuthClient(cfg.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return &App{config: cfg, client: c, in: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

// Close releases the underlying connection.
func (a *App) Close() error {
	return a.client.Close()
}

// Run executes the single command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "refresh":
		return a.refresh(ctx, rest)
	case "whoami":
		return a.whoami(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, "Unknown command:", cmd)
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	userName, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.Register(ctx, userName, string(password))
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) login(ctx context.Context, args []string) error {
	userName, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.Login(ctx, userName, string(password))
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) refresh(ctx context.Context, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(a.out, "Usage: refresh <userId> <refreshToken>")
		return ErrUsage
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.RefreshToken(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) whoami(ctx context.Context, args []string) error {
	token := os.Getenv(AccessTokenEnv)
	if len(args) > 0 {
		token = args[0]
	}
	if token == "" {
		fmt.Fprintf(a.out, "Usage: whoami <accessToken> (or set %s)\n", AccessTokenEnv)
		return ErrUsage
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.WhoAmI(ctx, token)
	if err != nil {
		return err
	}
	return a.print(resp)
}

// credentials takes the username from args or a prompt, and always prompts
// for the password.
func (a *App) credentials(args []string) (string, []byte, error) {
	var userName string
	if len(args) > 0 {
		userName = args[0]
	} else {
		u, err := GetSimpleText(a.in, "Enter username", a.out)
		if err != nil {
			return "", nil, err
		}
		userName = u
	}
	userName = strings.TrimSpace(userName)

	password, err := GetPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return userName, password, nil
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
