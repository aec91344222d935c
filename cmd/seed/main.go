// Command seed loads the basin catalog into the river_basins table.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/luzparatodos-am/localidades-backend/internal/basin"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/db"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
)

func main() {
	var (
		catalog = flag.String("catalog", "", "basin catalog YAML (default: embedded, or BASIN_CATALOG)")
		replace = flag.Bool("replace", false, "DANGER: delete every basin first; localities lose their basin")
	)
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := observability.NewLogger(cfg)

	path := cfg.BasinCatalog
	if *catalog != "" {
		path = *catalog
	}
	cat, err := basin.Load(path)
	if err != nil {
		log.Fatal(err)
	}

	d, err := db.Connect(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := localidades.Migrate(d); err != nil {
		log.Fatal(err)
	}

	store := localidades.NewStore(d)
	ctx := context.Background()
	var idx map[string]uint
	if *replace {
		idx, err = store.ReplaceBasins(ctx, cat.Basins)
	} else {
		idx, err = store.EnsureBasins(ctx, cat.Basins)
	}
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("basins seeded", "catalog", cat.Version, "basins", len(idx), "replaced", *replace)
}
