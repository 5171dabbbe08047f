package mesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAlbums(t *testing.T) {
	albums := []Album{
		{ID: 1, Name: "Blue", Artist: "Joni Mitchell"},
		{ID: 2, Name: "Kind of Blue", Artist: "Miles Davis"},
		{ID: 3, Name: "Hejira", Artist: "Joni Mitchell"},
	}

	assert.Equal(t, albums, FilterAlbums(albums, " "))

	got := FilterAlbums(albums, "hejira")
	if assert.Len(t, got, 1) {
		assert.Equal(t, 3, got[0].ID)
	}

	got = FilterAlbums(albums, "miles")
	if assert.Len(t, got, 1) {
		assert.Equal(t, 2, got[0].ID)
	}

	assert.Empty(t, FilterAlbums(albums, "zzz"))
}

func TestMatchPlaylist(t *testing.T) {
	names := []string{"Road", "Road Trip", "Chill"}

	name, ok := MatchPlaylist(names, "Road")
	assert.True(t, ok)
	assert.Equal(t, "Road", name)

	name, ok = MatchPlaylist(names, "chl")
	assert.True(t, ok)
	assert.Equal(t, "Chill", name)

	_, ok = MatchPlaylist(names, "xyz")
	assert.False(t, ok)

	_, ok = MatchPlaylist(names, "")
	assert.False(t, ok)
}
