package mesa

import "mesa/internal/realtime"

// Queries
const (
	AlbumsDocument = `query {
  Albums { id name date artist addTime }
}`

	AlbumDetailDocument = `query AlbumDetail($id: Int!) {
  Album(id: $id) {
    id name date artist
    songs { name artists path duration }
    totalDuration
  }
}`

	PlaylistsDocument = `query {
  Playlists { name modifiedTime songCount coverId }
}`

	PlaylistSongsDocument = `query PlaylistSongs($name: String!) {
  PlaylistSongs(name: $name) { name artists path duration albumId }
}`

	GenresDocument       = `query { Genres { id name albumCount } }`
	ArtistsDocument      = `query { Artists { id name albumCount } }`
	AlbumArtistsDocument = `query { AlbumArtists { id name albumCount } }`

	GenreAlbumsDocument = `query AlbumForGenre($id: Int!) {
  GenreAlbums(id: $id) { id name date artist addTime }
}`

	ArtistAlbumsDocument = `query AlbumForArtist($id: Int!) {
  ArtistAlbums(id: $id) { id name date artist addTime }
}`

	AlbumArtistAlbumsDocument = `query AlbumForAlbumArtist($id: Int!) {
  AlbumArtistAlbums(id: $id) { id name date artist addTime }
}`

	StatsDocument = `query { Stats { albums artists songs } }`

	SearchDocument = `query Search($searchText: String!) {
  Search(key: $searchText) {
    albums { id name artist }
    artists { id name albumCount }
    songs { name artists path duration albumId }
  }
}`

	// PlaybackStatusDocument is refetched on every playback song update
	PlaybackStatusDocument = `query {
  PlaybackStatus {
    playing elapsed loopId
    song { name path artists albumId album duration }
  }
}`

	SongsInQueueDocument = `query {
  SongsInQueue { playing position name path artists albumId }
}`
)

// Mutations
const (
	PlaySongDocument       = `mutation PlaySong($songPath: String!) { PlaySong(songPath: $songPath) }`
	PlayPlaylistDocument   = `mutation PlayPlaylist($playlistName: String!) { PlayPlaylist(playlistName: $playlistName) }`
	PlayAlbumDocument      = `mutation PlayAlbum($id: Int!) { PlayAlbum(id: $id) }`
	PauseSongDocument      = `mutation { PauseSong }`
	NextSongDocument       = `mutation { NextSong }`
	PrevSongDocument       = `mutation { PrevSong }`
	ToggleLoopDocument     = `mutation ToggleLoop { ToggleLoop }`
	PlayAtPositionDocument = `mutation PlaySongInQueueAtPosition($position: Int!) { PlaySongInQueueAtPosition(position: $position) }`

	AddSongsToQueueDocument     = `mutation AddSongsToQueue($songPaths: [String!]!) { AddSongsToQueue(songPaths: $songPaths) }`
	RemoveSongFromQueueDocument = `mutation RemoveSongFromQueue($position: Int!) { RemoveSongFromQueue(position: $position) }`
	ClearQueueDocument          = `mutation { ClearQueue }`

	UpdateDatabaseDocument = `mutation { Update }`
	BuildDatabaseDocument  = `mutation { Build }`

	CreatePlaylistDocument         = `mutation CreatePlaylist($name: String!) { CreatePlaylist(name: $name) }`
	DeletePlaylistDocument         = `mutation DeletePlaylist($name: String!) { DeletePlaylist(name: $name) }`
	RenamePlaylistDocument         = `mutation RenamePlaylist($name: String!, $newName: String!) { RenamePlaylist(name: $name, newName: $newName) }`
	AddSongToPlaylistDocument      = `mutation AddSongToPlaylist($name: String!, $songPath: String!) { AddSongToPlaylist(name: $name, songPath: $songPath) }`
	DeleteSongFromPlaylistDocument = `mutation DeleteSongFromPlaylist($name: String!, $songPath: String!) { DeleteSongFromPlaylist(name: $name, songPath: $songPath) }`
)

// Server event topics
var (
	TopicDatabaseUpdate = realtime.Topic{
		Name:     "OnDatabaseUpdate",
		Document: `subscription OnDatabaseUpdate { OnDatabaseUpdate }`,
	}
	TopicPlaybackSongUpdate = realtime.Topic{
		Name:     "OnPlaybackSongUpdate",
		Document: `subscription OnPlaybackSongUpdate { OnPlaybackSongUpdate }`,
	}
)
