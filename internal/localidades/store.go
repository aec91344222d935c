package localidades

import (
	"context"
	"errors"
	"fmt"

	"github.com/luzparatodos-am/localidades-backend/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists localities and the basin catalog.
type Store struct {
	db *gorm.DB
}

func NewStore(d *gorm.DB) *Store {
	return &Store{db: d}
}

var naturalKeyColumns = []clause.Column{
	{Name: "community"},
	{Name: "municipality"},
	{Name: "source"},
}

// Every non-key column is replaced on conflict.
var upsertColumns = []string{
	"ibge", "uf", "community_type", "households", "total_connections",
	"latitude", "longitude", "basin_id",
}

// Upsert inserts l or, when its natural key exists, overwrites the other fields
// in the same statement.
func (s *Store) Upsert(ctx context.Context, l *Locality) error {
	err := s.db.WithContext(ctx).
		Omit("Basin").
		Clauses(clause.OnConflict{
			Columns:   naturalKeyColumns,
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(l).Error
	if err != nil {
		return fmt.Errorf("upsert locality %q/%q: %w", l.Municipality, l.Community, err)
	}
	return nil
}

// Insert adds l and fails with ErrDuplicate when its natural key is taken.
func (s *Store) Insert(ctx context.Context, l *Locality) error {
	err := s.db.WithContext(ctx).Omit("Basin").Create(l).Error
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %q/%q (%s)", ErrDuplicate, l.Municipality, l.Community, l.Source)
	}
	if err != nil {
		return fmt.Errorf("insert locality %q/%q: %w", l.Municipality, l.Community, err)
	}
	return nil
}

// ClearAll deletes every locality and returns how many were removed.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Locality{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear localities: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// QueryAll returns the localities matching f ordered by municipality then community.
func (s *Store) QueryAll(ctx context.Context, f Filter) ([]Locality, error) {
	var out []Locality
	// Postgres LOWER is Unicode aware; elsewhere the search runs in Go.
	pg := db.IsPostgres(s.db)
	q := f.apply(s.db.WithContext(ctx).Model(&Locality{}), pg).
		Preload("Basin").
		Order("municipality").Order("community").Order("id")
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query localities: %w", err)
	}
	if !pg {
		out = f.matchSearch(out)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id uint) (*Locality, error) {
	var l Locality
	err := s.db.WithContext(ctx).Preload("Basin").First(&l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get locality %d: %w", id, err)
	}
	return &l, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Locality{}).Count(&n).Error
	return n, err
}

// ListBasins returns the stored catalog ordered by name.
func (s *Store) ListBasins(ctx context.Context) ([]RiverBasin, error) {
	var out []RiverBasin
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list basins: %w", err)
	}
	return out, nil
}

// BasinIndex maps basin names to their ids.
func (s *Store) BasinIndex(ctx context.Context) (map[string]uint, error) {
	basins, err := s.ListBasins(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]uint, len(basins))
	for _, b := range basins {
		idx[b.Name] = b.ID
	}
	return idx, nil
}

// ReplaceBasins swaps the whole catalog for names in one transaction.
// Localities keep existing but lose their basin reference.
func (s *Store) ReplaceBasins(ctx context.Context, names []string) (map[string]uint, error) {
	idx := make(map[string]uint, len(names))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Locality{}).Where("basin_id IS NOT NULL").
			Update("basin_id", nil).Error; err != nil {
			return fmt.Errorf("detach basins: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&RiverBasin{}).Error; err != nil {
			return fmt.Errorf("delete basins: %w", err)
		}
		for _, name := range names {
			b := RiverBasin{Name: name}
			if err := tx.Create(&b).Error; err != nil {
				return fmt.Errorf("insert basin %q: %w", name, err)
			}
			idx[name] = b.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// EnsureBasins adds any of names not yet stored and returns the full index.
func (s *Store) EnsureBasins(ctx context.Context, names []string) (map[string]uint, error) {
	for _, name := range names {
		b := RiverBasin{Name: name}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
			Create(&b).Error
		if err != nil {
			return nil, fmt.Errorf("ensure basin %q: %w", name, err)
		}
	}
	return s.BasinIndex(ctx)
}

// DeleteBasin removes one basin after clearing every reference to it.
func (s *Store) DeleteBasin(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Locality{}).Where("basin_id = ?", id).
			Update("basin_id", nil).Error; err != nil {
			return fmt.Errorf("detach basin %d: %w", id, err)
		}
		res := tx.Delete(&RiverBasin{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete basin %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrBasinNotFound, id)
		}
		return nil
	})
}
