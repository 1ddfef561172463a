package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/repositories"
	"github.com/desertthunder/linkd/internal/services"
	"github.com/desertthunder/linkd/internal/shared"
	"github.com/urfave/cli/v3"
)

const (
	statusLinked   = "linked"
	statusExpired  = "expired"
	statusUnlinked = "unlinked"
)

// TokenStatusEntry is one row of `token status`.
type TokenStatusEntry struct {
	Provider   string     `json:"provider"`
	Status     string     `json:"status"`
	Refresh    bool       `json:"refreshable"`
	Scope      string     `json:"scope,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	Configured bool       `json:"configured"`
}

// TokenStatus reports, for each provider, whether a token is stored and whether it is still fresh.
func (r *Runner) TokenStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := repositories.NewTokenRepository(db, r.driver(config)).List(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	entries := make([]TokenStatusEntry, 0, len(providers))
	for _, id := range providers {
		creds := credentials(config, id)
		entry := TokenStatusEntry{
			Provider:   id,
			Status:     statusUnlinked,
			Configured: creds.ClientID != "" && creds.ClientSecret != "",
		}

		idx := slices.IndexFunc(tokens, func(t *models.OAuthToken) bool { return t.Provider == id })
		if idx >= 0 {
			t := tokens[idx]
			entry.Status = statusLinked
			if t.Expired(now) {
				entry.Status = statusExpired
			}
			entry.Refresh = t.HasRefreshToken()
			entry.Scope = t.Scope
			entry.ExpiresAt = &t.ExpiresAt
			entry.UpdatedAt = &t.UpdatedAt
		}
		entries = append(entries, entry)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Linked providers")
	for _, e := range entries {
		var status string
		switch e.Status {
		case statusLinked:
			status = styles.ok.Render(e.Status)
		case statusExpired:
			status = styles.warn.Render(e.Status)
		default:
			status = styles.err.Render(e.Status)
		}

		line := fmt.Sprintf("%s %s", styles.cell.Render(e.Provider), styles.cell.Render(status))
		if e.ExpiresAt != nil {
			line += styles.help.Render(fmt.Sprintf(" expires %s", e.ExpiresAt.Local().Format(time.RFC3339)))
			if !e.Refresh {
				line += styles.warn.Render(" (no refresh token)")
			}
		}
		if !e.Configured {
			line += styles.warn.Render(" (credentials missing)")
		}
		if err := r.writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

// TokenUnlink deletes the stored token of the provider argument.
func (r *Runner) TokenUnlink(ctx context.Context, cmd *cli.Command) error {
	provider, err := providerArg(cmd)
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewTokenRepository(db, r.driver(config)).Delete(ctx, provider); err != nil {
		return fmt.Errorf("failed to unlink %s: %w", provider, err)
	}

	r.logger.Info("token deleted", "provider", provider)
	return r.writePlain("%s unlinked %s\n", styles.ok.Render("✓"), provider)
}

// StatePurge deletes expired state codes from the SQL store.
func (r *Runner) StatePurge(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.State.Backend == stateBackendRedis {
		return r.writePlain("%s\n", styles.help.Render("redis state codes expire on their own, nothing to purge"))
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repositories.NewStateCodeRepository(db, r.driver(config)).Purge(ctx)
	if err != nil {
		return err
	}

	r.logger.Debug("purged state codes", "count", n)
	return r.writePlain("%s purged %d expired state code(s)\n", styles.ok.Render("✓"), n)
}

// Link opens the login endpoint of the configured server for the provider argument.
func (r *Runner) Link(ctx context.Context, cmd *cli.Command) error {
	provider, err := providerArg(cmd)
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(config.Server.PublicURL, "/")
	if base == "" {
		base = "http://" + config.Server.Addr()
	}
	url := fmt.Sprintf("%s/api/%s/login", base, provider)

	if cmd.Bool("print") {
		return r.writePlain("%s\n", url)
	}

	r.logger.Info("opening browser", "url", url)
	if err := shared.OpenBrowser(url); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		return r.writePlain("Open this URL to link %s:\n%s\n", provider, url)
	}
	return nil
}

func credentials(config *shared.Config, provider string) shared.ProviderConfig {
	if provider == services.GPhotosID {
		return config.Credentials.GPhotos
	}
	return config.Credentials.Spotify
}

func providerArg(cmd *cli.Command) (string, error) {
	provider := strings.ToLower(strings.TrimSpace(cmd.StringArg("provider")))
	if provider == "" {
		return "", fmt.Errorf("%w: provider (one of %s)", shared.ErrMissingArgument, strings.Join(providers, ", "))
	}
	if !slices.Contains(providers, provider) {
		return "", fmt.Errorf("%w: unknown provider %q", shared.ErrInvalidArgument, provider)
	}
	return provider, nil
}
