package ingest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
)

// FixtureModel is the model label the external loader expects.
const FixtureModel = "localidades.localidade"

// FixtureRecord is one {model, pk, fields} entry.
type FixtureRecord struct {
	Model  string        `json:"model"`
	PK     int           `json:"pk"`
	Fields FixtureFields `json:"fields"`
}

type FixtureFields struct {
	Community        string  `json:"nome_comunidade"`
	Municipality     string  `json:"municipio"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	IBGE             *string `json:"ibge"`
	UF               string  `json:"uf"`
	CommunityType    *string `json:"tipo_comunidade"`
	Households       *int    `json:"domicilios"`
	TotalConnections *int    `json:"total_ligacoes"`
	Source           string  `json:"fonte_dados"`
}

// fixtureBuilder numbers records from 1 in the order they are added.
type fixtureBuilder struct {
	records []FixtureRecord
}

func (b *fixtureBuilder) add(l localidades.Locality) {
	b.records = append(b.records, FixtureRecord{
		Model: FixtureModel,
		PK:    len(b.records) + 1,
		Fields: FixtureFields{
			Community:        l.Community,
			Municipality:     l.Municipality,
			Latitude:         l.Latitude,
			Longitude:        l.Longitude,
			IBGE:             l.IBGE,
			UF:               l.UF,
			CommunityType:    l.CommunityType,
			Households:       l.Households,
			TotalConnections: l.TotalConnections,
			Source:           string(l.Source),
		},
	})
}

// WriteFixture writes records as an indented JSON array, keeping non-ASCII text readable.
func WriteFixture(w io.Writer, records []FixtureRecord) error {
	if records == nil {
		records = []FixtureRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}
