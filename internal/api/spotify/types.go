package spotify

import (
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/sumannaidur/extractor/internal/shared"
)

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func toAlbum(a spotify.SimpleAlbum) *shared.Album {
	return &shared.Album{
		ID:          a.ID.String(),
		Name:        a.Name,
		ReleaseDate: a.ReleaseDate,
		Artists:     artistNames(a.Artists),
	}
}

func toCatalogTrack(t spotify.SimpleTrack) shared.CatalogTrack {
	return shared.CatalogTrack{
		ID:      t.ID.String(),
		Name:    t.Name,
		Artists: artistNames(t.Artists),
	}
}
