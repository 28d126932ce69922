package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/campus-carpool/internal/models"
)

type UniversityStore interface {
	Get(ctx context.Context, id string) (models.University, error)
	List(ctx context.Context) ([]models.University, error)
}

// SeedUniversities is the campus list the product launched with.
func SeedUniversities() []models.University {
	return []models.University{
		{ID: "aub", Name: "American University of Beirut (AUB)", City: "Beirut", Location: models.GeoPoint{Lat: 33.9, Lon: 35.48}},
		{ID: "lau", Name: "Lebanese American University (LAU)", City: "Beirut", Location: models.GeoPoint{Lat: 33.89, Lon: 35.47}},
		{ID: "ndu", Name: "Notre Dame University (NDU)", City: "Zouk Mosbeh", Location: models.GeoPoint{Lat: 33.98, Lon: 35.62}},
		{ID: "usj", Name: "Université Saint-Joseph (USJ)", City: "Beirut", Location: models.GeoPoint{Lat: 33.88, Lon: 35.5}},
		{ID: "lu", Name: "Lebanese University (LU)", City: "Beirut", Location: models.GeoPoint{Lat: 33.87, Lon: 35.51}},
		{ID: "balamand", Name: "University of Balamand", City: "Koura", Location: models.GeoPoint{Lat: 34.37, Lon: 35.76}},
		{ID: "bau", Name: "Beirut Arab University (BAU)", City: "Beirut", Location: models.GeoPoint{Lat: 33.88, Lon: 35.49}},
		{ID: "usek", Name: "Holy Spirit University of Kaslik (USEK)", City: "Jounieh", Location: models.GeoPoint{Lat: 33.98, Lon: 35.65}},
	}
}

type MemoryUniversities struct {
	mu   sync.RWMutex
	byID map[string]models.University
}

func NewMemoryUniversities(seed []models.University) *MemoryUniversities {
	m := &MemoryUniversities{byID: make(map[string]models.University, len(seed))}
	for _, u := range seed {
		m.byID[u.ID] = u
	}
	return m
}

func (m *MemoryUniversities) Get(_ context.Context, id string) (models.University, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return models.University{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryUniversities) List(context.Context) ([]models.University, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.University, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
