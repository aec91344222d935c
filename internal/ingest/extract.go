package ingest

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/spatial"
)

// DropReason explains why a row produced no candidate.
type DropReason string

const (
	DropBlank              DropReason = "blank"
	DropMissingRequired    DropReason = "missing_required"
	DropInvalidCoordinates DropReason = "invalid_coordinates"
	DropTooLong            DropReason = "too_long"
)

// Candidate is a cleaned row ready for deduplication. Row is the zero-based
// physical row it came from. BasinID is left unset.
type Candidate struct {
	Row      int
	Locality localidades.Locality
}

// Stats counts what an extraction saw.
type Stats struct {
	Rows       int
	Candidates int
	Dropped    map[DropReason]int
	Defaults   map[Field]int
}

type boundColumn struct {
	field   Field
	indices []int
}

// Extraction reads candidates from one sheet under one schema. It is single
// use: a second pass yields ErrExhausted.
type Extraction struct {
	schema  Schema
	src     RowSource
	cols    map[Field][]int
	row     int
	started bool
	stats   Stats
}

// NewExtraction binds schema to src. Named schemas read up to the header
// row here, so a missing required header fails before any data row is read.
func NewExtraction(src RowSource, schema Schema) (*Extraction, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	e := &Extraction{
		schema: schema,
		src:    src,
		cols:   map[Field][]int{},
		stats: Stats{
			Dropped:  map[DropReason]int{},
			Defaults: map[Field]int{},
		},
	}

	if schema.Layout == LayoutPositional {
		for _, c := range schema.Columns {
			e.cols[c.Field] = []int{c.Index}
		}
		return e, nil
	}

	header, err := e.readHeader()
	if err != nil {
		return nil, err
	}
	if err := e.bindHeaders(header); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Extraction) readHeader() ([]string, error) {
	for e.src.Next() {
		cells, err := e.src.Columns()
		if err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", e.schema.Sheet, e.row, err)
		}
		row := e.row
		e.row++
		if row == e.schema.HeaderRow {
			return cells, nil
		}
	}
	if err := e.src.Error(); err != nil {
		return nil, fmt.Errorf("sheet %q: %w", e.schema.Sheet, err)
	}
	return nil, fmt.Errorf("%w: sheet %q ends before header row %d", ErrHeaderMissing, e.schema.Sheet, e.schema.HeaderRow)
}

func (e *Extraction) bindHeaders(header []string) error {
	pos := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; h != "" && !dup {
			pos[h] = i
		}
	}

	var missing []string
	for _, c := range e.schema.Columns {
		var idx []int
		for _, h := range c.Headers {
			if i, ok := pos[h]; ok {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 && c.Field.Required() {
			missing = append(missing, strings.Join(c.Headers, " | "))
			continue
		}
		e.cols[c.Field] = idx
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: sheet %q: %s", ErrHeaderMissing, e.schema.Sheet, strings.Join(missing, ", "))
	}
	return nil
}

// Stats returns the counters so far.
func (e *Extraction) Stats() Stats {
	return e.stats
}

// Candidates yields cleaned rows lazily in sheet order. Rows missing a
// required field are counted and skipped. A read error ends the sequence.
func (e *Extraction) Candidates() iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		if e.started {
			yield(Candidate{}, ErrExhausted)
			return
		}
		e.started = true

		for e.src.Next() {
			cells, err := e.src.Columns()
			if err != nil {
				yield(Candidate{}, fmt.Errorf("sheet %q row %d: %w", e.schema.Sheet, e.row, err))
				return
			}
			row := e.row
			e.row++
			if e.schema.Layout == LayoutPositional && row < e.schema.SkipRows {
				continue
			}

			e.stats.Rows++
			cand, reason, ok := e.build(row, cells)
			if !ok {
				e.stats.Dropped[reason]++
				continue
			}
			e.stats.Candidates++
			if !yield(cand, nil) {
				return
			}
		}
		if err := e.src.Error(); err != nil {
			yield(Candidate{}, fmt.Errorf("sheet %q: %w", e.schema.Sheet, err))
		}
	}
}

func (e *Extraction) cell(cells []string, f Field) Cell {
	for _, i := range e.cols[f] {
		if c := CellAt(cells, i); c.Present {
			return c
		}
	}
	return Cell{}
}

func (e *Extraction) build(row int, cells []string) (Candidate, DropReason, bool) {
	if blankRow(cells) {
		return Candidate{}, DropBlank, false
	}

	community := CleanString(e.cell(cells, FieldCommunity), None[string]())
	municipality := CleanString(e.cell(cells, FieldMunicipality), None[string]())
	lat := CleanFloat(e.cell(cells, FieldLatitude), None[float64]())
	lon := CleanFloat(e.cell(cells, FieldLongitude), None[float64]())
	if !community.Valid || !municipality.Valid || !lat.Valid || !lon.Valid {
		return Candidate{}, DropMissingRequired, false
	}
	if tooLong(community.V, localidades.MaxCommunityLen) || tooLong(municipality.V, localidades.MaxMunicipalityLen) {
		return Candidate{}, DropTooLong, false
	}
	if !spatial.Valid(lat.V, lon.V) {
		return Candidate{}, DropInvalidCoordinates, false
	}

	defaulted := func(f Field, used bool) {
		if used {
			e.stats.Defaults[f]++
		}
	}

	uf := CleanString(e.cell(cells, FieldUF), Some("AM"))
	uf.V = strings.ToUpper(uf.V)
	if utf8.RuneCountInString(uf.V) != 2 {
		uf = Value[string]{V: "AM", Valid: true, Defaulted: true}
	}
	defaulted(FieldUF, uf.Defaulted)

	ibge := CleanString(e.cell(cells, FieldIBGE), None[string]())
	if tooLong(ibge.V, localidades.MaxIBGELen) {
		ibge = Value[string]{Defaulted: true}
	}
	defaulted(FieldIBGE, ibge.Defaulted)

	kind := CleanString(e.cell(cells, FieldCommunityType), None[string]())
	if tooLong(kind.V, localidades.MaxCommunityTypeLen) {
		kind = Value[string]{Defaulted: true}
	}
	defaulted(FieldCommunityType, kind.Defaulted)

	households := nonNegative(CleanInt(e.cell(cells, FieldHouseholds), None[int]()))
	defaulted(FieldHouseholds, households.Defaulted)

	total := nonNegative(CleanInt(e.cell(cells, FieldTotalConnections), None[int]()))
	defaulted(FieldTotalConnections, total.Defaulted)

	return Candidate{
		Row: row,
		Locality: localidades.Locality{
			IBGE:             ibge.Ptr(),
			UF:               uf.V,
			Municipality:     municipality.V,
			Community:        community.V,
			CommunityType:    kind.Ptr(),
			Households:       households.Ptr(),
			TotalConnections: total.Ptr(),
			Latitude:         lat.V,
			Longitude:        lon.V,
			Source:           e.schema.Source,
		},
	}, "", true
}

func tooLong(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}

func nonNegative(v Value[int]) Value[int] {
	if v.Valid && v.V < 0 {
		return Value[int]{Defaulted: true}
	}
	return v
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
