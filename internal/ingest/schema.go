package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
)

// Field names one locality attribute read from a sheet.
type Field string

const (
	FieldIBGE             Field = "ibge"
	FieldUF               Field = "uf"
	FieldMunicipality     Field = "municipio"
	FieldCommunity        Field = "nome_comunidade"
	FieldCommunityType    Field = "tipo_comunidade"
	FieldHouseholds       Field = "domicilios"
	FieldTotalConnections Field = "total_ligacoes"
	FieldLatitude         Field = "latitude"
	FieldLongitude        Field = "longitude"
)

// Required reports whether rows lacking f are discarded.
func (f Field) Required() bool {
	switch f {
	case FieldMunicipality, FieldCommunity, FieldLatitude, FieldLongitude:
		return true
	}
	return false
}

// Layout selects how a schema addresses its columns.
type Layout int

const (
	// LayoutNamed finds columns by header text on HeaderRow.
	LayoutNamed Layout = iota
	// LayoutPositional reads fixed column indexes after SkipRows rows.
	LayoutPositional
)

func (l Layout) String() string {
	if l == LayoutPositional {
		return "positional"
	}
	return "named"
}

// Column binds a field to its header candidates (named) or index (positional).
// Candidates are tried in order; per row the first present cell wins.
type Column struct {
	Field   Field
	Headers []string
	Index   int
}

// Schema is the fixed column contract of one sheet. Row numbers are zero-based
// physical rows, blank rows included.
type Schema struct {
	Name      string
	Sheet     string
	Source    localidades.SourceTag
	Layout    Layout
	HeaderRow int
	SkipRows  int
	Columns   []Column
}

// ErrInvalidSchema reports a schema that cannot be applied to any sheet.
var ErrInvalidSchema = errors.New("invalid sheet schema")

// Validate checks the schema covers every required field.
func (s Schema) Validate() error {
	have := map[Field]bool{}
	for _, c := range s.Columns {
		if s.Layout == LayoutNamed && len(c.Headers) == 0 {
			return fmt.Errorf("%w: %s: field %s has no header candidates", ErrInvalidSchema, s.Name, c.Field)
		}
		if s.Layout == LayoutPositional && c.Index < 0 {
			return fmt.Errorf("%w: %s: field %s has negative index", ErrInvalidSchema, s.Name, c.Field)
		}
		have[c.Field] = true
	}
	for _, f := range []Field{FieldMunicipality, FieldCommunity, FieldLatitude, FieldLongitude} {
		if !have[f] {
			return fmt.Errorf("%w: %s: required field %s not mapped", ErrInvalidSchema, s.Name, f)
		}
	}
	return nil
}

// Both survey sheets share these headers, with two spellings for some of them.
var namedColumns = []Column{
	{Field: FieldIBGE, Headers: []string{"Código do Municipio (IBGE)", "Código do Município (IBGE)"}},
	{Field: FieldUF, Headers: []string{"UF"}},
	{Field: FieldMunicipality, Headers: []string{"Nome do Município"}},
	{Field: FieldCommunity, Headers: []string{"Nome da Comunidade"}},
	{Field: FieldCommunityType, Headers: []string{"Tipo de Comunidade"}},
	{Field: FieldHouseholds, Headers: []string{"Quantidade de Unidades Consumidoras", "Domicílios"}},
	{Field: FieldTotalConnections, Headers: []string{"Total de Ligações", "Total de unidades consumidoras previstas"}},
	{Field: FieldLatitude, Headers: []string{"Latitude"}},
	{Field: FieldLongitude, Headers: []string{"Longitude"}},
}

// TranchePositional reads the "3ª Tranche" sheet by column index, skipping
// the seven title rows:
//
//	0 IBGE, 1 UF, 2 municipality, 3 community, 4 community type,
//	5 households, 22 total connections, 26 latitude, 27 longitude.
var TranchePositional = Schema{
	Name:     "tranche-positional",
	Sheet:    "3ª Tranche",
	Source:   localidades.SourceTranche,
	Layout:   LayoutPositional,
	SkipRows: 7,
	Columns: []Column{
		{Field: FieldIBGE, Index: 0},
		{Field: FieldUF, Index: 1},
		{Field: FieldMunicipality, Index: 2},
		{Field: FieldCommunity, Index: 3},
		{Field: FieldCommunityType, Index: 4},
		{Field: FieldHouseholds, Index: 5},
		{Field: FieldTotalConnections, Index: 22},
		{Field: FieldLatitude, Index: 26},
		{Field: FieldLongitude, Index: 27},
	},
}

// TrancheNamed reads the "3ª Tranche" sheet by header, found on row 7.
var TrancheNamed = Schema{
	Name:      "tranche-named",
	Sheet:     "3ª Tranche",
	Source:    localidades.SourceTranche,
	Layout:    LayoutNamed,
	HeaderRow: 7,
	Columns:   namedColumns,
}

// ConventionalNamed reads the "Convencional" sheet by header, found on row 3.
var ConventionalNamed = Schema{
	Name:      "conventional-named",
	Sheet:     "Convencional",
	Source:    localidades.SourceConventional,
	Layout:    LayoutNamed,
	HeaderRow: 3,
	Columns:   namedColumns,
}

// Profile is the ordered list of sheets one run reads. Order decides which
// duplicate wins.
type Profile struct {
	Name    string
	Schemas []Schema
}

var (
	ImportProfile  = Profile{Name: "import", Schemas: []Schema{TranchePositional, ConventionalNamed}}
	FixtureProfile = Profile{Name: "fixture", Schemas: []Schema{TrancheNamed, ConventionalNamed}}
)

// ProfileByName looks up a built-in profile.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(name) {
	case ImportProfile.Name:
		return ImportProfile, nil
	case FixtureProfile.Name:
		return FixtureProfile, nil
	}
	return Profile{}, fmt.Errorf("unknown profile %q (want import or fixture)", name)
}
