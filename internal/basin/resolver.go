package basin

// Resolve maps a municipality to a basin identifier through the static table
// and the live catalog ids (basin name -> id). A miss in either returns false.
func Resolve(municipality string, table LookupTable, live map[string]uint) (uint, bool) {
	name, ok := table.BasinFor(municipality)
	if !ok {
		return 0, false
	}
	id, ok := live[name]
	return id, ok
}

// Resolver binds a lookup table to the basin ids stored for one run.
type Resolver struct {
	table LookupTable
	live  map[string]uint
}

func NewResolver(table LookupTable, live map[string]uint) *Resolver {
	return &Resolver{table: table, live: live}
}

// Resolve returns the basin id for municipality, or nil when none is known.
func (r *Resolver) Resolve(municipality string) *uint {
	id, ok := Resolve(municipality, r.table, r.live)
	if !ok {
		return nil
	}
	return &id
}
