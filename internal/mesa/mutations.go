package mesa

import (
	"context"
	"fmt"

	"mesa/internal/graphql"
)

func (c *Client) mutate(ctx context.Context, document string, variables map[string]any) error {
	if _, err := c.gql.Do(ctx, graphql.NewRequest(document, variables)); err != nil {
		c.logger.Debug().Err(err).Interface("variables", variables).Msg("mutation failed")
		return err
	}
	return nil
}

func requireArg(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s: %w", name, ErrMissingArgument)
	}
	return nil
}

// PlaySong starts playback of a song
func (c *Client) PlaySong(ctx context.Context, songPath string) error {
	if err := requireArg("song path", songPath); err != nil {
		return err
	}
	return c.mutate(ctx, PlaySongDocument, map[string]any{"songPath": songPath})
}

// PlayPlaylist replaces the queue with a playlist
func (c *Client) PlayPlaylist(ctx context.Context, name string) error {
	if err := requireArg("playlist name", name); err != nil {
		return err
	}
	return c.mutate(ctx, PlayPlaylistDocument, map[string]any{"playlistName": name})
}

// PlayAlbum replaces the queue with an album
func (c *Client) PlayAlbum(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("album id: %w", ErrMissingArgument)
	}
	return c.mutate(ctx, PlayAlbumDocument, map[string]any{"id": id})
}

func (c *Client) PauseSong(ctx context.Context) error {
	return c.mutate(ctx, PauseSongDocument, nil)
}

func (c *Client) NextSong(ctx context.Context) error {
	return c.mutate(ctx, NextSongDocument, nil)
}

func (c *Client) PrevSong(ctx context.Context) error {
	return c.mutate(ctx, PrevSongDocument, nil)
}

func (c *Client) ToggleLoop(ctx context.Context) error {
	return c.mutate(ctx, ToggleLoopDocument, nil)
}

// PlayAtPosition plays the queue entry at position
func (c *Client) PlayAtPosition(ctx context.Context, position int) error {
	if position < 0 {
		return fmt.Errorf("queue position: %w", ErrMissingArgument)
	}
	return c.mutate(ctx, PlayAtPositionDocument, map[string]any{"position": position})
}

// AddSongsToQueue appends songs to the queue
func (c *Client) AddSongsToQueue(ctx context.Context, songPaths []string) error {
	if len(songPaths) == 0 {
		return fmt.Errorf("song paths: %w", ErrMissingArgument)
	}
	return c.mutate(ctx, AddSongsToQueueDocument, map[string]any{"songPaths": songPaths})
}

// RemoveSongFromQueue removes the queue entry at position
func (c *Client) RemoveSongFromQueue(ctx context.Context, position int) error {
	if position < 0 {
		return fmt.Errorf("queue position: %w", ErrMissingArgument)
	}
	return c.mutate(ctx, RemoveSongFromQueueDocument, map[string]any{"position": position})
}

func (c *Client) ClearQueue(ctx context.Context) error {
	return c.mutate(ctx, ClearQueueDocument, nil)
}

// UpdateDatabase starts an incremental library scan. Completion arrives as
// an OnDatabaseUpdate event.
func (c *Client) UpdateDatabase(ctx context.Context) error {
	return c.mutate(ctx, UpdateDatabaseDocument, nil)
}

// BuildDatabase starts a full library rebuild
func (c *Client) BuildDatabase(ctx context.Context) error {
	return c.mutate(ctx, BuildDatabaseDocument, nil)
}

func (c *Client) CreatePlaylist(ctx context.Context, name string) error {
	if err := requireArg("playlist name", name); err != nil {
		return err
	}
	if err := c.mutate(ctx, CreatePlaylistDocument, map[string]any{"name": name}); err != nil {
		return err
	}
	c.cache.Invalidate(PlaylistsDocument)
	return nil
}

func (c *Client) DeletePlaylist(ctx context.Context, name string) error {
	if err := requireArg("playlist name", name); err != nil {
		return err
	}
	if err := c.mutate(ctx, DeletePlaylistDocument, map[string]any{"name": name}); err != nil {
		return err
	}
	c.cache.Invalidate(PlaylistsDocument)
	return nil
}

func (c *Client) RenamePlaylist(ctx context.Context, name, newName string) error {
	if err := requireArg("playlist name", name); err != nil {
		return err
	}
	if err := requireArg("new playlist name", newName); err != nil {
		return err
	}
	vars := map[string]any{"name": name, "newName": newName}
	if err := c.mutate(ctx, RenamePlaylistDocument, vars); err != nil {
		return err
	}
	c.cache.Invalidate(PlaylistsDocument)
	return nil
}

func (c *Client) AddSongToPlaylist(ctx context.Context, name, songPath string) error {
	return c.changePlaylistSongs(ctx, AddSongToPlaylistDocument, name, songPath)
}

func (c *Client) DeleteSongFromPlaylist(ctx context.Context, name, songPath string) error {
	return c.changePlaylistSongs(ctx, DeleteSongFromPlaylistDocument, name, songPath)
}

func (c *Client) changePlaylistSongs(ctx context.Context, document, name, songPath string) error {
	if err := requireArg("playlist name", name); err != nil {
		return err
	}
	if err := requireArg("song path", songPath); err != nil {
		return err
	}
	vars := map[string]any{"name": name, "songPath": songPath}
	if err := c.mutate(ctx, document, vars); err != nil {
		return err
	}
	c.invalidatePlaylistSongs(name)
	return nil
}

func (c *Client) invalidatePlaylistSongs(name string) {
	c.cache.Invalidate(PlaylistsDocument)
	c.cache.InvalidateQuery(playlistSongsQuery(name))
}
