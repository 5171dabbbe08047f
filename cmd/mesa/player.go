package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mesa/internal/app"
	"mesa/internal/mesa"
)

// simpleCmd runs a mutation without arguments
func simpleCmd(flags *globalFlags, use, short, done string, fn func(*mesa.Client, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				if err := fn(a.API(), ctx); err != nil {
					return err
				}
				color.Green("✅ %s", done)
				return nil
			})
		},
	}
}

func createPlayerCmds(flags *globalFlags) []*cobra.Command {
	play := &cobra.Command{
		Use:   "play <song path>",
		Short: "Play a song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				return a.API().PlaySong(ctx, args[0])
			})
		},
	}

	playAlbum := &cobra.Command{
		Use:   "play-album <id>",
		Short: "Play an album",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid album id %q", args[0])
			}
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				return a.API().PlayAlbum(ctx, id)
			})
		},
	}

	playPlaylist := &cobra.Command{
		Use:   "play-playlist <name>",
		Short: "Play a playlist, matching the name fuzzily",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				name, err := resolvePlaylist(ctx, a.API(), args[0])
				if err != nil {
					return err
				}
				if err := a.API().PlayPlaylist(ctx, name); err != nil {
					return err
				}
				color.Green("✅ Playing %s", name)
				return nil
			})
		},
	}

	return []*cobra.Command{
		play, playAlbum, playPlaylist,
		simpleCmd(flags, "pause", "Toggle pause", "Toggled pause", (*mesa.Client).PauseSong),
		simpleCmd(flags, "next", "Play the next song", "Skipped", (*mesa.Client).NextSong),
		simpleCmd(flags, "prev", "Play the previous song", "Went back", (*mesa.Client).PrevSong),
		simpleCmd(flags, "loop", "Toggle loop mode", "Toggled loop", (*mesa.Client).ToggleLoop),
	}
}

func createQueueCmd(flags *globalFlags) *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Show or edit the play queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				songs, err := a.API().SongsInQueue(ctx)
				if err != nil {
					return err
				}
				heading.Printf("Queue (%d)\n", len(songs))
				for _, s := range songs {
					marker := " "
					if s.Playing {
						marker = "▶"
					}
					fmt.Printf("%s %3d  %s - %s\n", marker, s.Position, s.Name, s.Artists)
				}
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <song path>...",
		Short: "Append songs to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				return a.API().AddSongsToQueue(ctx, args)
			})
		},
	}

	positionCmd := func(use, short string, fn func(*mesa.Client, context.Context, int) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <position>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				pos, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid position %q", args[0])
				}
				return runOnce(flags, func(ctx context.Context, a *app.App) error {
					return fn(a.API(), ctx, pos)
				})
			},
		}
	}

	queue.AddCommand(
		add,
		positionCmd("remove", "Remove the song at a position", (*mesa.Client).RemoveSongFromQueue),
		positionCmd("jump", "Play the song at a position", (*mesa.Client).PlayAtPosition),
		simpleCmd(flags, "clear", "Clear the queue", "Queue cleared", (*mesa.Client).ClearQueue),
	)
	return queue
}

func createDatabaseCmd(flags *globalFlags) *cobra.Command {
	db := &cobra.Command{
		Use:   "db",
		Short: "Scan the music library",
	}
	db.AddCommand(
		simpleCmd(flags, "update", "Scan for changed files", "Update started, run watch to follow it", (*mesa.Client).UpdateDatabase),
		simpleCmd(flags, "build", "Rebuild the library from scratch", "Build started", (*mesa.Client).BuildDatabase),
	)
	return db
}

func createPlaylistCmd(flags *globalFlags) *cobra.Command {
	playlists := &cobra.Command{
		Use:     "playlists [name]",
		Aliases: []string{"playlist"},
		Short:   "List playlists, or the songs of one",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					name, err := resolvePlaylist(ctx, a.API(), args[0])
					if err != nil {
						return err
					}
					songs, err := a.API().PlaylistSongs(ctx, name)
					if err != nil {
						return err
					}
					heading.Printf("%s (%d)\n", name, len(songs))
					for i, s := range songs {
						fmt.Printf("%3d. %s - %s %s\n", i+1, s.Name, s.Artists, color.HiBlackString(s.Path))
					}
					return nil
				}

				list, err := a.API().Playlists(ctx)
				if err != nil {
					return err
				}
				heading.Printf("Playlists (%d)\n", len(list))
				for _, p := range list {
					fmt.Printf("  %s %s\n", p.Name, color.HiBlackString("(%d songs)", p.SongCount))
				}
				return nil
			})
		},
	}

	nameCmd := func(use, short, done string, fn func(*mesa.Client, context.Context, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <name>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(flags, func(ctx context.Context, a *app.App) error {
					if err := fn(a.API(), ctx, args[0]); err != nil {
						return err
					}
					color.Green("✅ %s %s", done, args[0])
					return nil
				})
			},
		}
	}

	songCmd := func(use, short string, fn func(*mesa.Client, context.Context, string, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <name> <song path>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(flags, func(ctx context.Context, a *app.App) error {
					return fn(a.API(), ctx, args[0], args[1])
				})
			},
		}
	}

	rename := &cobra.Command{
		Use:   "rename <name> <new name>",
		Short: "Rename a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				return a.API().RenamePlaylist(ctx, args[0], args[1])
			})
		},
	}

	playlists.AddCommand(
		nameCmd("create", "Create a playlist", "Created", (*mesa.Client).CreatePlaylist),
		nameCmd("delete", "Delete a playlist", "Deleted", (*mesa.Client).DeletePlaylist),
		rename,
		songCmd("add", "Add a song to a playlist", (*mesa.Client).AddSongToPlaylist),
		songCmd("remove", "Remove a song from a playlist", (*mesa.Client).DeleteSongFromPlaylist),
	)
	return playlists
}

// resolvePlaylist maps a typed name to an existing playlist
func resolvePlaylist(ctx context.Context, api *mesa.Client, query string) (string, error) {
	list, err := api.Playlists(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	name, ok := mesa.MatchPlaylist(names, query)
	if !ok {
		return "", fmt.Errorf("no playlist matches %q", query)
	}
	return name, nil
}
