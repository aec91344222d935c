package localidades

import (
	"fmt"
	"strings"
)

// SourceTag names the spreadsheet layout a locality came from.
type SourceTag string

const (
	SourceTranche      SourceTag = "3ª Tranche"
	SourceConventional SourceTag = "Convencional"
)

// ParseSourceTag accepts a stored label or its short code, ignoring case.
func ParseSourceTag(s string) (SourceTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case strings.ToLower(string(SourceTranche)), "tranche":
		return SourceTranche, nil
	case strings.ToLower(string(SourceConventional)), "conventional":
		return SourceConventional, nil
	}
	return "", fmt.Errorf("unknown source tag %q", s)
}

// Code is the short name used on the command line and in change messages.
func (s SourceTag) Code() string {
	switch s {
	case SourceTranche:
		return "tranche"
	case SourceConventional:
		return "conventional"
	}
	return string(s)
}

// RiverBasin is a calha: a named drainage grouping of municipalities.
// Tables take their names from the naming strategy (river_basins,
// localities) so the schema prefix applies on Postgres.
type RiverBasin struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null;uniqueIndex" json:"nome"`
}

// Locality is one surveyed community. (Community, Municipality, Source) is unique.
type Locality struct {
	ID               uint      `gorm:"primaryKey"`
	IBGE             *string   `gorm:"size:10;index"`
	UF               string    `gorm:"size:2;not null;default:AM"`
	Municipality     string    `gorm:"size:100;not null;index;uniqueIndex:idx_locality_natural_key,priority:2"`
	Community        string    `gorm:"size:255;not null;index;uniqueIndex:idx_locality_natural_key,priority:1"`
	CommunityType    *string   `gorm:"size:100"`
	Households       *int
	TotalConnections *int
	Latitude         float64   `gorm:"not null"`
	Longitude        float64   `gorm:"not null"`
	Source           SourceTag `gorm:"size:50;not null;index;uniqueIndex:idx_locality_natural_key,priority:3"`

	BasinID *uint       `gorm:"index"`
	Basin   *RiverBasin `gorm:"constraint:OnDelete:SET NULL"`
}

// Widths of the Locality string columns, in characters. Keep them in step
// with the size tags above.
const (
	MaxIBGELen          = 10
	MaxMunicipalityLen  = 100
	MaxCommunityLen     = 255
	MaxCommunityTypeLen = 100
)

func (l Locality) LatLon() (float64, float64) { return l.Latitude, l.Longitude }

// NaturalKey identifies a locality across runs.
type NaturalKey struct {
	Community    string
	Municipality string
	Source       SourceTag
}

func (l Locality) Key() NaturalKey {
	return NaturalKey{Community: l.Community, Municipality: l.Municipality, Source: l.Source}
}
