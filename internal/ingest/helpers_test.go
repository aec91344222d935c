package ingest

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/luzparatodos-am/localidades-backend/internal/basin"
	"github.com/luzparatodos-am/localidades-backend/internal/db/dbtest"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// sliceSource is an in-memory RowSource.
type sliceSource struct {
	rows   [][]string
	i      int
	failAt int // Next returns false with err once i reaches failAt (0 disables)
	err    error
	reads  int
	closed bool
}

func rowsOf(rows ...[]string) *sliceSource { return &sliceSource{rows: rows} }

func (s *sliceSource) Next() bool {
	if s.failAt > 0 && s.i >= s.failAt {
		s.err = errors.New("corrupt sheet xml")
		return false
	}
	if s.i >= len(s.rows) {
		return false
	}
	s.i++
	return true
}

func (s *sliceSource) Columns() ([]string, error) {
	s.reads++
	return s.rows[s.i-1], nil
}

func (s *sliceSource) Error() error { return s.err }
func (s *sliceSource) Close() error { s.closed = true; return nil }

// trancheRow lays values out at the positional indexes of the tranche sheet.
func trancheRow(ibge, uf, municipality, community, kind, households, total, lat, lon string) []string {
	row := make([]string, 28)
	row[0], row[1], row[2], row[3], row[4], row[5] = ibge, uf, municipality, community, kind, households
	row[22], row[26], row[27] = total, lat, lon
	return row
}

var trancheHeader = trancheRow(
	"Código do Municipio (IBGE)", "UF", "Nome do Município", "Nome da Comunidade", "Tipo de Comunidade",
	"Quantidade de Unidades Consumidoras", "Total de unidades consumidoras previstas", "Latitude", "Longitude",
)

func titleRows(n int, title string) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = []string{title}
	}
	out[n-1] = []string{}
	return out
}

func trancheSheet(data ...[]string) [][]string {
	rows := titleRows(7, "Programa Luz para Todos - 3ª Tranche")
	rows = append(rows, trancheHeader)
	return append(rows, data...)
}

var conventionalHeader = []string{
	"UF", "Código do Município (IBGE)", "Nome do Município", "Nome da Comunidade", "Tipo de Comunidade",
	"Domicílios", "Total de Ligações", " Latitude ", "Longitude",
}

func conventionalSheet(data ...[]string) [][]string {
	rows := titleRows(3, "Obras convencionais")
	rows = append(rows, conventionalHeader)
	return append(rows, data...)
}

// workbook writes sheets, in order, to an in-memory XLSX and opens it again.
func workbook(t *testing.T, sheets ...namedSheet) *Workbook {
	t.Helper()
	wb, err := ReadWorkbook(bytes.NewReader(workbookBytes(t, sheets...)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

type namedSheet struct {
	name string
	rows [][]string
}

func workbookBytes(t *testing.T, sheets ...namedSheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			if len(row) == 0 {
				continue
			}
			vals := make([]any, len(row))
			for j, v := range row {
				vals[j] = v
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(s.name, cell, &vals))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSQLiteRunner(t *testing.T) (*Runner, *localidades.Store) {
	t.Helper()
	store := localidades.NewStore(dbtest.Open(t, &localidades.RiverBasin{}, &localidades.Locality{}))
	return NewRunner(store, basin.Default(), discardLogger(), observability.NewMetricsForTesting()), store
}
