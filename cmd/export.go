package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/linkd/internal/formatter"
	"github.com/desertthunder/linkd/internal/shared"
	"github.com/urfave/cli/v3"
)

const (
	listingTracks = "tracks"
	listingAlbums = "albums"
)

// Export fetches a listing through the linked token and renders it with the formatter.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	listing := strings.ToLower(strings.TrimSpace(cmd.StringArg("listing")))
	if listing != listingTracks && listing != listingAlbums {
		return fmt.Errorf("%w: listing must be %q or %q", shared.ErrInvalidArgument, listingTracks, listingAlbums)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := r.build(ctx, config)
	if err != nil {
		return err
	}
	defer d.Close()

	var data []byte
	switch listing {
	case listingTracks:
		tracks, err := d.spotify.TopTracks(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch top tracks: %w", err)
		}
		data, err = formatter.Tracks(format, tracks)
		if err != nil {
			return err
		}
	case listingAlbums:
		albums, err := d.gphotos.Albums(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch albums: %w", err)
		}
		data, err = formatter.Albums(format, albums)
		if err != nil {
			return err
		}
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, data); err != nil {
			return err
		}
		r.logger.Info("export written", "listing", listing, "format", format, "path", path)
		return nil
	}

	_, err = r.output.Write(data)
	return err
}
