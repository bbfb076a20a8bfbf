package benefit

import (
	"context"
	"sort"
	"sync"
)

type pair struct {
	benefitID  int64
	locationID int64
}

// memoryRepository keeps the catalog in maps, with secondary indexes on the
// mapping table so cascade checks do not scan every row.
type memoryRepository struct {
	mu             sync.RWMutex
	nextLocationID int64
	nextBenefitID  int64
	nextMapID      int64
	locations      map[int64]Location
	definitions    map[int64]Definition
	mappings       map[pair]LocationMap
	mapsByBenefit  map[int64]map[int64]struct{}
	mapsByLocation map[int64]map[int64]struct{}
}

// NewMemoryRepository builds an in-memory catalog store for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		nextLocationID: 1,
		nextBenefitID:  1,
		nextMapID:      1,
		locations:      make(map[int64]Location),
		definitions:    make(map[int64]Definition),
		mappings:       make(map[pair]LocationMap),
		mapsByBenefit:  make(map[int64]map[int64]struct{}),
		mapsByLocation: make(map[int64]map[int64]struct{}),
	}
}

func (r *memoryRepository) indexMapping(m LocationMap) {
	if r.mapsByBenefit[m.BenefitID] == nil {
		r.mapsByBenefit[m.BenefitID] = make(map[int64]struct{})
	}
	r.mapsByBenefit[m.BenefitID][m.LocationID] = struct{}{}
	if r.mapsByLocation[m.LocationID] == nil {
		r.mapsByLocation[m.LocationID] = make(map[int64]struct{})
	}
	r.mapsByLocation[m.LocationID][m.BenefitID] = struct{}{}
}

func (r *memoryRepository) unindexMapping(benefitID, locationID int64) {
	delete(r.mapsByBenefit[benefitID], locationID)
	delete(r.mapsByLocation[locationID], benefitID)
}

func (r *memoryRepository) CreateLocation(_ context.Context, loc *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc.ID = r.nextLocationID
	r.nextLocationID++
	r.locations[loc.ID] = *loc
	return nil
}

func (r *memoryRepository) UpdateLocation(_ context.Context, loc Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locations[loc.ID]; !ok {
		return ErrLocationNotFound
	}
	r.locations[loc.ID] = loc
	return nil
}

func (r *memoryRepository) DeleteLocation(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locations[id]; !ok {
		return ErrLocationNotFound
	}
	delete(r.locations, id)
	return nil
}

func (r *memoryRepository) FindLocation(_ context.Context, id int64) (Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.locations[id]
	if !ok {
		return Location{}, ErrLocationNotFound
	}
	return loc, nil
}

func (r *memoryRepository) ListActiveLocations(_ context.Context) ([]Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Location
	for _, l := range r.locations {
		if l.IsActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) CreateDefinitionWithMapping(_ context.Context, def *Definition, mapping *LocationMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	def.ID = r.nextBenefitID
	r.nextBenefitID++
	r.definitions[def.ID] = *def

	mapping.BenefitID = def.ID
	mapping.ID = r.nextMapID
	r.nextMapID++
	r.mappings[pair{mapping.BenefitID, mapping.LocationID}] = *mapping
	r.indexMapping(*mapping)
	return nil
}

func (r *memoryRepository) UpdateDefinition(_ context.Context, def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.definitions[def.ID]; !ok {
		return ErrDefinitionNotFound
	}
	r.definitions[def.ID] = def
	return nil
}

func (r *memoryRepository) DeleteDefinitionCascade(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.definitions[id]; !ok {
		return ErrDefinitionNotFound
	}
	delete(r.definitions, id)
	for locationID := range r.mapsByBenefit[id] {
		delete(r.mappings, pair{id, locationID})
		delete(r.mapsByLocation[locationID], id)
	}
	delete(r.mapsByBenefit, id)
	return nil
}

func (r *memoryRepository) FindDefinition(_ context.Context, id int64) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[id]
	if !ok {
		return Definition{}, ErrDefinitionNotFound
	}
	return def, nil
}

func (r *memoryRepository) ListActiveDefinitionsByIDs(_ context.Context, ids []int64) ([]Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Definition
	for _, id := range ids {
		if d, ok := r.definitions[id]; ok && d.IsActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) FindMapping(_ context.Context, benefitID, locationID int64) (LocationMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[pair{benefitID, locationID}]
	if !ok {
		return LocationMap{}, ErrMappingNotFound
	}
	return m, nil
}

func (r *memoryRepository) CreateMapping(_ context.Context, mapping *LocationMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mapping.ID = r.nextMapID
	r.nextMapID++
	r.mappings[pair{mapping.BenefitID, mapping.LocationID}] = *mapping
	r.indexMapping(*mapping)
	return nil
}

func (r *memoryRepository) DeleteMapping(_ context.Context, benefitID, locationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mappings[pair{benefitID, locationID}]; !ok {
		return ErrMappingNotFound
	}
	delete(r.mappings, pair{benefitID, locationID})
	r.unindexMapping(benefitID, locationID)
	return nil
}

func (r *memoryRepository) ListMappingsByLocations(_ context.Context, locationIDs []int64) ([]LocationMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []LocationMap
	for _, locationID := range locationIDs {
		for benefitID := range r.mapsByLocation[locationID] {
			out = append(out, r.mappings[pair{benefitID, locationID}])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) CountDefinitionsByPrimaryLocation(_ context.Context, locationID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, d := range r.definitions {
		if d.PrimaryLocationID == locationID {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) CountMappingsByLocation(_ context.Context, locationID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.mapsByLocation[locationID])), nil
}
