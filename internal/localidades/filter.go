package localidades

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/luzparatodos-am/localidades-backend/internal/spatial"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// Filter narrows QueryAll. Zero fields are ignored.
type Filter struct {
	BBox         *spatial.BBox
	Source       string
	Municipality string
	BasinID      *uint
	Search       string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// apply adds the filter to q. With sqlSearch false the search term is left to
// matchSearch.
func (f Filter) apply(q *gorm.DB, sqlSearch bool) *gorm.DB {
	if b := f.BBox; b != nil {
		q = q.Where("longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?", b.West, b.East, b.South, b.North)
	}
	if f.Source != "" {
		if tag, err := ParseSourceTag(f.Source); err == nil {
			q = q.Where("source = ?", tag)
		} else {
			q = q.Where("LOWER(source) = ?", strings.ToLower(f.Source))
		}
	}
	if f.Municipality != "" {
		q = q.Where("municipality = ?", f.Municipality)
	}
	if f.BasinID != nil {
		q = q.Where("basin_id = ?", *f.BasinID)
	}
	if s := strings.TrimSpace(f.Search); s != "" && sqlSearch {
		term := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		q = q.Where(`(LOWER(community) LIKE ? ESCAPE '\' OR LOWER(municipality) LIKE ? ESCAPE '\' OR LOWER(uf) LIKE ? ESCAPE '\')`,
			term, term, term)
	}
	return q
}

// matchSearch keeps the localities whose community, municipality or UF
// contains the search term under Unicode case folding. SQLite's LOWER folds
// ASCII only, so "são" would miss "SÃO GABRIEL DA CACHOEIRA" in SQL.
func (f Filter) matchSearch(ls []Locality) []Locality {
	s := strings.TrimSpace(f.Search)
	if s == "" {
		return ls
	}
	fold := cases.Fold()
	term := fold.String(s)
	out := ls[:0]
	for _, l := range ls {
		if strings.Contains(fold.String(l.Community), term) ||
			strings.Contains(fold.String(l.Municipality), term) ||
			strings.Contains(fold.String(l.UF), term) {
			out = append(out, l)
		}
	}
	return out
}

// FilterFromQuery reads the list endpoint parameters. A malformed in_bbox is
// ignored; a non-numeric calha_rio is an error.
func FilterFromQuery(v url.Values) (Filter, error) {
	f := Filter{
		Source:       strings.TrimSpace(v.Get("fonte_dados")),
		Municipality: strings.TrimSpace(v.Get("municipio")),
		Search:       v.Get("search"),
	}
	if box, ok := spatial.ParseBBox(v.Get("in_bbox")); ok {
		f.BBox = &box
	}
	if raw := strings.TrimSpace(v.Get("calha_rio")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("calha_rio must be a basin id, got %q", raw)
		}
		bid := uint(id)
		f.BasinID = &bid
	}
	return f, nil
}
