package mesa

import (
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"
)

// albumIndex implements fuzzy.Source over lowercase "name artist" strings
type albumIndex struct {
	albums []Album
	lower  []string
}

func (idx *albumIndex) String(i int) string { return idx.lower[i] }
func (idx *albumIndex) Len() int            { return len(idx.albums) }

// FilterAlbums returns the albums matching query, best match first. An empty
// query returns albums unchanged.
func FilterAlbums(albums []Album, query string) []Album {
	query = strings.TrimSpace(query)
	if query == "" {
		return albums
	}

	idx := &albumIndex{albums: albums, lower: make([]string, len(albums))}
	for i, a := range albums {
		idx.lower[i] = strings.ToLower(a.Name + " " + a.Artist)
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), idx)
	result := make([]Album, len(matches))
	for i, m := range matches {
		result[i] = albums[m.Index]
	}
	return result
}

// MatchPlaylist resolves query to a playlist name: an exact match wins,
// otherwise the closest fuzzy match. ok is false when nothing matches.
func MatchPlaylist(names []string, query string) (string, bool) {
	if query == "" {
		return "", false
	}
	for _, name := range names {
		if name == query {
			return name, true
		}
	}

	ranks := lfuzzy.RankFindNormalizedFold(query, names)
	if len(ranks) == 0 {
		return "", false
	}
	sort.Sort(ranks)
	return ranks[0].Target, true
}
