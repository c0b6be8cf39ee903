package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/yomi/internal/server"
	"github.com/desertthunder/yomi/internal/shared"
	"github.com/desertthunder/yomi/internal/store"
)

const loginTimeout = 2 * time.Minute

// AuthLogin stores an access token. Without --token or --curl it runs the authorization code flow with PKCE
// against the identity provider, receiving the callback on a local server.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	token, err := r.loginToken(ctx, cmd)
	if err != nil {
		return err
	}

	claims, err := shared.ParseTokenClaims(token)
	if err != nil {
		return fmt.Errorf("%w: access token is not a JWT: %v", shared.ErrAuthFailed, err)
	}
	if claims.Expired(r.now()) {
		return fmt.Errorf("%w: token expired at %s", shared.ErrTokenExpired, claims.ExpiresAt.Format(time.RFC3339))
	}

	if err := r.store.Set(ctx, store.TokenKey, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	r.writePlain("✓ Signed in as %s\n", displayName(claims))

	if synced, err := r.syncer.Sync(ctx, claims, false); err != nil {
		r.logger.Warn("user sync failed", "error", err)
		r.writePlain("⚠ Could not register your account with the API: %v\n", err)
	} else if synced {
		r.writePlain("✓ Account registered with the API\n")
	}
	return nil
}

func (r *Runner) loginToken(ctx context.Context, cmd *cli.Command) (string, error) {
	curlCmd, curlFile := cmd.String("curl"), cmd.String("curl-file")
	if curlCmd != "" && curlFile != "" {
		return "", fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	switch {
	case cmd.String("token") != "":
		return cmd.String("token"), nil
	case curlCmd != "" || curlFile != "":
		var headers *shared.CurlHeaders
		var err error
		if curlFile != "" {
			headers, err = shared.ParseCurlFile(curlFile)
		} else {
			headers, err = shared.ParseCurlCommand(curlCmd)
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse cURL command: %w", err)
		}
		return headers.BearerToken()
	}

	auth := r.config.Auth
	if auth.ClientID == "" || auth.ClientID == shared.DefaultConfig().Auth.ClientID {
		return "", fmt.Errorf("%w: set auth.client_id in config.toml", shared.ErrInvalidConfig)
	}

	result, err := r.doOAuth(ctx, server.NewLogin(auth))
	if err != nil {
		return "", err
	}
	return result.Token.AccessToken, nil
}

// doOAuth executes the authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, login *server.Login) (*server.OAuthResult, error) {
	handler := login.Handler()
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	serverAddr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", serverAddr, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", serverAddr)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := login.AuthURL()
	r.writePlain("→ Opening browser to sign in...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil || result.Token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return &result, nil
}

// AuthLogout forgets the stored token. Sync flags are kept so signing in again does not re-register the user.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.store.Delete(ctx, store.TokenKey); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports the signed-in identity and the API's health.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	claims, err := r.currentClaims(ctx)
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		r.writePlain("Authentication: ✗ Not signed in\n")
	case errors.Is(err, shared.ErrTokenExpired):
		r.writePlain("Authentication: ✗ Token for %s expired at %s\n", displayName(claims), claims.ExpiresAt.Format(time.RFC3339))
	case err != nil:
		return err
	default:
		r.writePlain("Authentication: ✓ Signed in as %s\n", displayName(claims))
		if !claims.ExpiresAt.IsZero() {
			r.writePlain("Expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))
		}
		if synced, _ := store.IsSet(ctx, r.store, store.SyncedKey(claims.Subject)); synced {
			r.writePlain("Registered: ✓\n")
		} else {
			r.writePlain("Registered: ✗ run 'yomi auth sync'\n")
		}
	}

	status, err := r.stats.Status(ctx)
	if err != nil {
		return r.writePlain("API: ✗ %v\n", err)
	}
	return r.writePlain("API: ✓ %s (%s)\n", status.Status, status.Message)
}

// AuthSync registers the signed-in user with the API.
func (r *Runner) AuthSync(ctx context.Context, cmd *cli.Command) error {
	claims, err := r.currentClaims(ctx)
	if err != nil {
		return err
	}

	synced, err := r.syncer.Sync(ctx, claims, cmd.Bool("force"))
	if err != nil {
		return err
	}
	if !synced {
		return r.writePlain("✓ %s is already registered (use --force to sync again)\n", displayName(claims))
	}
	return r.writePlain("✓ Registered %s\n", displayName(claims))
}

func displayName(c *shared.TokenClaims) string {
	switch {
	case c == nil:
		return "unknown"
	case c.Email != "":
		return c.Email
	case c.Nickname != "":
		return c.Nickname
	default:
		return c.Subject
	}
}
