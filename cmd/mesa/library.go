package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mesa/internal/app"
	"mesa/internal/mesa"
)

var heading = color.New(color.FgCyan, color.Bold)

func createLibraryCmds(flags *globalFlags) []*cobra.Command {
	var fresh bool
	readOpts := func() []mesa.ReadOption {
		if fresh {
			return []mesa.ReadOption{mesa.Fresh()}
		}
		return nil
	}

	var filter string
	albums := &cobra.Command{
		Use:   "albums",
		Short: "List albums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				list, err := a.API().Albums(ctx, readOpts()...)
				if err != nil {
					return err
				}
				list = mesa.FilterAlbums(list, filter)
				heading.Printf("Albums (%d)\n", len(list))
				for _, al := range list {
					fmt.Printf("%5d  %s - %s %s\n", al.ID, al.Name, al.Artist, color.HiBlackString(al.Date))
				}
				return nil
			})
		},
	}
	albums.Flags().StringVarP(&filter, "filter", "f", "", "fuzzy filter by name or artist")

	album := &cobra.Command{
		Use:   "album <id>",
		Short: "Show an album with its songs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid album id %q", args[0])
			}
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				al, err := a.API().Album(ctx, id, readOpts()...)
				if err != nil {
					return err
				}
				heading.Printf("%s - %s (%s)\n", al.Name, al.Artist, al.Date)
				fmt.Println(color.HiBlackString(a.API().CoverURL(al.ID)))
				for i, s := range al.Songs {
					fmt.Printf("%3d. %s %s\n", i+1, s.Name, color.HiBlackString(formatDuration(s.Duration)))
				}
				fmt.Printf("Total %s\n", formatDuration(al.TotalDuration))
				return nil
			})
		},
	}

	tags := &cobra.Command{
		Use:   "tags <genre|artist|album-artist> [id]",
		Short: "List genres, artists or album artists, or the albums of one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := mesa.ParseGeneralTag(args[0])
			if err != nil {
				return err
			}
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				if len(args) == 2 {
					id, err := strconv.Atoi(args[1])
					if err != nil {
						return fmt.Errorf("invalid %s id %q", tag, args[1])
					}
					list, err := a.API().TagAlbums(ctx, tag, id, readOpts()...)
					if err != nil {
						return err
					}
					heading.Printf("Albums (%d)\n", len(list))
					for _, al := range list {
						fmt.Printf("%5d  %s - %s\n", al.ID, al.Name, al.Artist)
					}
					return nil
				}

				items, err := a.API().Tags(ctx, tag, readOpts()...)
				if err != nil {
					return err
				}
				heading.Printf("%s (%d)\n", tag, len(items))
				for _, it := range items {
					fmt.Printf("%5d  %s %s\n", it.ID, it.Name, color.HiBlackString("(%d albums)", it.AlbumCount))
				}
				return nil
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show library counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				st, err := a.API().Stats(ctx, readOpts()...)
				if err != nil {
					return err
				}
				heading.Println("Library")
				fmt.Printf("Albums:  %d\nArtists: %d\nSongs:   %d\n", st.Albums, st.Artists, st.Songs)
				return nil
			})
		},
	}

	search := &cobra.Command{
		Use:   "search <text>",
		Short: "Search albums, artists and songs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				res, err := a.API().Search(ctx, args[0])
				if err != nil {
					return err
				}
				heading.Printf("Albums (%d)\n", len(res.Albums))
				for _, al := range res.Albums {
					fmt.Printf("%5d  %s - %s\n", al.ID, al.Name, al.Artist)
				}
				heading.Printf("Artists (%d)\n", len(res.Artists))
				for _, ar := range res.Artists {
					fmt.Printf("%5d  %s\n", ar.ID, ar.Name)
				}
				heading.Printf("Songs (%d)\n", len(res.Songs))
				for _, s := range res.Songs {
					fmt.Printf("  %s - %s %s\n", s.Name, s.Artists, color.HiBlackString(s.Path))
				}
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the playback status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(flags, func(ctx context.Context, a *app.App) error {
				st, err := a.API().PlaybackStatus(ctx)
				if err != nil {
					return err
				}
				if st.Song == nil {
					fmt.Println("⏹ Nothing playing")
					return nil
				}
				state := "▶"
				if !st.Playing {
					state = "⏸"
				}
				fmt.Printf("%s %s - %s [%s/%s]\n", state, st.Song.Name, st.Song.Artists,
					formatDuration(st.Elapsed), formatDuration(st.Song.Duration))
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{albums, album, tags, stats} {
		c.Flags().BoolVar(&fresh, "fresh", false, "skip cached data")
	}

	return []*cobra.Command{albums, album, tags, stats, search, status}
}

// formatDuration renders seconds as m:ss
func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
