package mesa

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"mesa/internal/graphql"
	"mesa/internal/querycache"
)

// Doer executes GraphQL requests
type Doer interface {
	Do(ctx context.Context, req *graphql.Request) (json.RawMessage, error)
}

// NewFetcher adapts a Doer to the query cache
func NewFetcher(d Doer) querycache.Fetcher {
	return func(ctx context.Context, q querycache.Query) (json.RawMessage, error) {
		return d.Do(ctx, graphql.NewRequest(q.Document, q.Variables))
	}
}

// Client is the typed API of the music server
type Client struct {
	gql       Doer
	cache     querycache.Cache
	coverBase func(albumID string) string
	logger    zerolog.Logger
}

// NewClient creates an API client. coverURL builds album cover addresses.
func NewClient(gql Doer, cache querycache.Cache, coverURL func(albumID string) string, logger zerolog.Logger) *Client {
	return &Client{
		gql:       gql,
		cache:     cache,
		coverBase: coverURL,
		logger:    logger.With().Str("component", "mesa-api").Logger(),
	}
}

// ReadOption adjusts a single read
type ReadOption func(*readOptions)

type readOptions struct {
	fresh bool
}

// Fresh bypasses cached data and waits for the server
func Fresh() ReadOption {
	return func(o *readOptions) { o.fresh = true }
}

// CoverURL returns the cover image address of an album
func (c *Client) CoverURL(albumID int) string {
	return c.coverBase(strconv.Itoa(albumID))
}

// read fetches document through the cache and decodes field into out.
// A null field leaves out untouched.
func (c *Client) read(ctx context.Context, document string, variables map[string]any, staleTime time.Duration, field string, out any, opts []ReadOption) error {
	_, err := c.readField(ctx, document, variables, staleTime, field, out, opts)
	return err
}

// readOne is read for single objects: a null field is ErrNotFound
func (c *Client) readOne(ctx context.Context, document string, variables map[string]any, staleTime time.Duration, field string, out any, opts []ReadOption) error {
	found, err := c.readField(ctx, document, variables, staleTime, field, out, opts)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", field, ErrNotFound)
	}
	return nil
}

func (c *Client) readField(ctx context.Context, document string, variables map[string]any, staleTime time.Duration, field string, out any, opts []ReadOption) (bool, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	q := querycache.Query{Document: document, Variables: variables, StaleTime: staleTime}

	var data json.RawMessage
	var err error
	if o.fresh {
		data, err = c.cache.Load(ctx, q)
	} else {
		data, err = c.cache.Fetch(ctx, q)
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", field, err)
	}

	return decodeField(data, field, out)
}

// decodeField unmarshals data[field] into out. found is false when the
// field is missing or null.
func decodeField(data json.RawMessage, field string, out any) (found bool, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, fmt.Errorf("%s: failed to decode data: %w", field, err)
	}
	raw, ok := fields[field]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("%s: failed to decode field: %w", field, err)
	}
	return true, nil
}

// Albums lists every album
func (c *Client) Albums(ctx context.Context, opts ...ReadOption) ([]Album, error) {
	var albums []Album
	err := c.read(ctx, AlbumsDocument, nil, querycache.Forever, "Albums", &albums, opts)
	return albums, err
}

// Album returns one album with its songs, or ErrNotFound
func (c *Client) Album(ctx context.Context, id int, opts ...ReadOption) (*Album, error) {
	if id <= 0 {
		return nil, fmt.Errorf("album id: %w", ErrMissingArgument)
	}
	var album Album
	vars := map[string]any{"id": id}
	if err := c.readOne(ctx, AlbumDetailDocument, vars, querycache.Forever, "Album", &album, opts); err != nil {
		return nil, err
	}
	return &album, nil
}

// Playlists lists every playlist
func (c *Client) Playlists(ctx context.Context, opts ...ReadOption) ([]Playlist, error) {
	var playlists []Playlist
	err := c.read(ctx, PlaylistsDocument, nil, querycache.Forever, "Playlists", &playlists, opts)
	return playlists, err
}

// PlaylistSongs lists the songs of a playlist
func (c *Client) PlaylistSongs(ctx context.Context, name string, opts ...ReadOption) ([]Song, error) {
	if name == "" {
		return nil, fmt.Errorf("playlist name: %w", ErrMissingArgument)
	}
	var songs []Song
	q := playlistSongsQuery(name)
	err := c.read(ctx, q.Document, q.Variables, q.StaleTime, "PlaylistSongs", &songs, opts)
	return songs, err
}

func playlistSongsQuery(name string) querycache.Query {
	return querycache.Query{
		Document:  PlaylistSongsDocument,
		Variables: map[string]any{"name": name},
		StaleTime: querycache.Forever,
	}
}

// Tags lists the items of a tag dimension
func (c *Client) Tags(ctx context.Context, tag GeneralTag, opts ...ReadOption) ([]TagItem, error) {
	docs, err := tag.documents()
	if err != nil {
		return nil, err
	}
	var items []TagItem
	err = c.read(ctx, docs.listDocument, nil, querycache.Forever, docs.listField, &items, opts)
	return items, err
}

// TagAlbums lists the albums of one tag item
func (c *Client) TagAlbums(ctx context.Context, tag GeneralTag, id int, opts ...ReadOption) ([]Album, error) {
	docs, err := tag.documents()
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("%s id: %w", tag, ErrMissingArgument)
	}
	var albums []Album
	vars := map[string]any{"id": id}
	err = c.read(ctx, docs.albumsDocument, vars, querycache.Forever, docs.albumsField, &albums, opts)
	return albums, err
}

// Stats returns library counters
func (c *Client) Stats(ctx context.Context, opts ...ReadOption) (*Stats, error) {
	var stats Stats
	if err := c.readOne(ctx, StatsDocument, nil, querycache.Forever, "Stats", &stats, opts); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Search searches albums, artists and songs. An empty text returns an empty result.
func (c *Client) Search(ctx context.Context, text string, opts ...ReadOption) (*SearchResult, error) {
	var result SearchResult
	if text == "" {
		return &result, nil
	}
	vars := map[string]any{"searchText": text}
	if err := c.read(ctx, SearchDocument, vars, 0, "Search", &result, opts); err != nil {
		return nil, err
	}
	return &result, nil
}

// PlaybackStatus returns the player state
func (c *Client) PlaybackStatus(ctx context.Context, opts ...ReadOption) (*PlaybackStatus, error) {
	var status PlaybackStatus
	if err := c.read(ctx, PlaybackStatusDocument, nil, 0, "PlaybackStatus", &status, opts); err != nil {
		return nil, err
	}
	return &status, nil
}

// SongsInQueue lists the play queue
func (c *Client) SongsInQueue(ctx context.Context, opts ...ReadOption) ([]QueueSong, error) {
	var songs []QueueSong
	err := c.read(ctx, SongsInQueueDocument, nil, 0, "SongsInQueue", &songs, opts)
	return songs, err
}

// DecodePlaybackStatus decodes a cached PlaybackStatus result
func DecodePlaybackStatus(data json.RawMessage) (*PlaybackStatus, error) {
	var status PlaybackStatus
	if _, err := decodeField(data, "PlaybackStatus", &status); err != nil {
		return nil, err
	}
	return &status, nil
}
