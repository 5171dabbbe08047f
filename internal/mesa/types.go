package mesa

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingArgument is returned when a required argument is empty
	ErrMissingArgument = errors.New("missing argument")

	// ErrNotFound is returned when the server answers null for a single object
	ErrNotFound = errors.New("not found")
)

// Song is one track of the library
type Song struct {
	Name         string `json:"name"`
	Artists      string `json:"artists"`
	AlbumID      int    `json:"albumId"`
	Album        string `json:"album,omitempty"`
	Path         string `json:"path"`
	Date         string `json:"date,omitempty"`
	Genre        string `json:"genre,omitempty"`
	Composer     string `json:"composer,omitempty"`
	Performer    string `json:"performer,omitempty"`
	Disc         int    `json:"disc,omitempty"`
	TrackNum     int    `json:"trackNum,omitempty"`
	Duration     int64  `json:"duration"`
	ModifiedTime int64  `json:"modifiedTime,omitempty"`
	AddTime      int64  `json:"addTime,omitempty"`
}

// QueueSong is a song in the play queue
type QueueSong struct {
	Song
	Playing  bool `json:"playing"`
	Position int  `json:"position"`
}

// Album of the library
type Album struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Date          string `json:"date"`
	Artist        string `json:"artist"`
	AddTime       int64  `json:"addTime"`
	Songs         []Song `json:"songs,omitempty"`
	TotalDuration int64  `json:"totalDuration,omitempty"`
}

// Playlist summary
type Playlist struct {
	Name         string `json:"name"`
	ModifiedTime int64  `json:"modifiedTime"`
	SongCount    int    `json:"songCount"`
	CoverID      *int   `json:"coverId,omitempty"`
}

// TagItem is one genre, artist or album artist
type TagItem struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
}

// PlaybackStatus of the player
type PlaybackStatus struct {
	Playing bool  `json:"playing"`
	Elapsed int64 `json:"elapsed"`
	LoopID  int   `json:"loopId"`
	Song    *Song `json:"song,omitempty"`
}

// Stats of the library
type Stats struct {
	Albums  int `json:"albums"`
	Artists int `json:"artists"`
	Songs   int `json:"songs"`
}

// SearchResult groups matches by kind
type SearchResult struct {
	Albums  []Album   `json:"albums"`
	Artists []TagItem `json:"artists"`
	Songs   []Song    `json:"songs"`
}

// GeneralTag selects one of the tag dimensions of the library
type GeneralTag int

const (
	Genre GeneralTag = iota
	Artist
	AlbumArtist
)

// tagDocuments holds the operations of one tag
type tagDocuments struct {
	listDocument   string
	listField      string
	albumsDocument string
	albumsField    string
}

var tagTable = map[GeneralTag]tagDocuments{
	Genre: {
		listDocument:   GenresDocument,
		listField:      "Genres",
		albumsDocument: GenreAlbumsDocument,
		albumsField:    "GenreAlbums",
	},
	Artist: {
		listDocument:   ArtistsDocument,
		listField:      "Artists",
		albumsDocument: ArtistAlbumsDocument,
		albumsField:    "ArtistAlbums",
	},
	AlbumArtist: {
		listDocument:   AlbumArtistsDocument,
		listField:      "AlbumArtists",
		albumsDocument: AlbumArtistAlbumsDocument,
		albumsField:    "AlbumArtistAlbums",
	},
}

func (t GeneralTag) documents() (tagDocuments, error) {
	docs, ok := tagTable[t]
	if !ok {
		return tagDocuments{}, fmt.Errorf("unknown tag %d", int(t))
	}
	return docs, nil
}

func (t GeneralTag) String() string {
	switch t {
	case Genre:
		return "genre"
	case Artist:
		return "artist"
	case AlbumArtist:
		return "album-artist"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// ParseGeneralTag parses genre, artist or album-artist
func ParseGeneralTag(s string) (GeneralTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "genre", "genres":
		return Genre, nil
	case "artist", "artists":
		return Artist, nil
	case "album-artist", "albumartist", "album-artists":
		return AlbumArtist, nil
	default:
		return 0, fmt.Errorf("unknown tag %q (want genre, artist or album-artist)", s)
	}
}
