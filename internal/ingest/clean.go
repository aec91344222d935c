package ingest

import (
	"math"
	"strconv"
	"strings"
)

// Cell is one raw spreadsheet value. Present is false for missing, blank and
// NaN-like cells.
type Cell struct {
	Raw     string
	Present bool
}

var missingTokens = map[string]bool{
	"nan":  true,
	"#n/a": true,
	"n/a":  true,
	"null": true,
}

// NewCell classifies a raw value.
func NewCell(raw string) Cell {
	t := strings.TrimSpace(raw)
	if t == "" || missingTokens[strings.ToLower(t)] {
		return Cell{Raw: raw}
	}
	return Cell{Raw: raw, Present: true}
}

// CellAt returns column i of a row, treating short rows as missing cells.
func CellAt(row []string, i int) Cell {
	if i < 0 || i >= len(row) {
		return Cell{}
	}
	return NewCell(row[i])
}

// Value is a cleaned field. Defaulted is set when the cell could not be used
// and the caller's default was returned instead.
type Value[T any] struct {
	V         T
	Valid     bool
	Defaulted bool
}

func Some[T any](v T) Value[T] { return Value[T]{V: v, Valid: true} }

func None[T any]() Value[T] { return Value[T]{} }

// Ptr returns nil for an invalid value.
func (v Value[T]) Ptr() *T {
	if !v.Valid {
		return nil
	}
	x := v.V
	return &x
}

func fallback[T any](def Value[T]) Value[T] {
	def.Defaulted = true
	return def
}

// CleanString trims the cell.
func CleanString(c Cell, def Value[string]) Value[string] {
	if !c.Present {
		return fallback(def)
	}
	return Some(strings.TrimSpace(c.Raw))
}

// CleanFloat parses the cell, accepting a comma as decimal separator.
func CleanFloat(c Cell, def Value[float64]) Value[float64] {
	if !c.Present {
		return fallback(def)
	}
	f, ok := parseDecimal(c.Raw)
	if !ok {
		return fallback(def)
	}
	return Some(f)
}

// CleanInt parses the cell as a decimal and truncates it toward zero, so
// "12.0" and "12,7" both give 12.
func CleanInt(c Cell, def Value[int]) Value[int] {
	if !c.Present {
		return fallback(def)
	}
	f, ok := parseDecimal(c.Raw)
	if !ok || math.Abs(f) >= math.MaxInt32 {
		return fallback(def)
	}
	return Some(int(math.Trunc(f)))
}

func parseDecimal(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
