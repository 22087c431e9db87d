package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fiam/dboembed/internal/models"
)

type identityKey struct {
	name string
	url  string
}

// InMemoryEmbedRepository keeps resources in process memory. It is used by
// the resolve command and in tests.
type InMemoryEmbedRepository struct {
	mu         sync.Mutex
	resources  map[string]models.EmbedResource
	identities map[identityKey]models.ProviderIdentity
	now        func() time.Time
}

// NewInMemoryEmbedRepository constructs an empty, process-local embed repository.
func NewInMemoryEmbedRepository() *InMemoryEmbedRepository {
	return &InMemoryEmbedRepository{
		resources:  make(map[string]models.EmbedResource),
		identities: make(map[identityKey]models.ProviderIdentity),
		now:        time.Now,
	}
}

// Create stores res and reuses an existing identity with the same name and url.
func (r *InMemoryEmbedRepository) Create(ctx context.Context, res models.EmbedResource) (models.EmbedResource, error) {
	if err := ctx.Err(); err != nil {
		return models.EmbedResource{}, err
	}
	if !res.Type.Valid() {
		return models.EmbedResource{}, fmt.Errorf("insert embed resource: invalid type %q", res.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if _, exists := r.resources[res.ID]; exists {
		return models.EmbedResource{}, ErrConflict
	}

	if res.Provider != nil {
		key := identityKey{name: res.Provider.Name, url: res.Provider.URL}
		identity, ok := r.identities[key]
		if !ok {
			identity = models.ProviderIdentity{ID: uuid.NewString(), Name: key.name, URL: key.url}
			r.identities[key] = identity
		}
		res.Provider = &identity
	}
	res.Created = r.now().UTC()

	r.resources[res.ID] = cloneResource(res)
	return res, nil
}

// FindByID returns the resource stored under id.
func (r *InMemoryEmbedRepository) FindByID(ctx context.Context, id string) (models.EmbedResource, error) {
	if err := ctx.Err(); err != nil {
		return models.EmbedResource{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[id]
	if !ok {
		return models.EmbedResource{}, ErrNotFound
	}
	return cloneResource(res), nil
}

// ListRecent returns up to limit resources, newest first.
func (r *InMemoryEmbedRepository) ListRecent(ctx context.Context, limit int) ([]models.EmbedResource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	r.mu.Lock()
	resources := make([]models.EmbedResource, 0, len(r.resources))
	for _, res := range r.resources {
		resources = append(resources, cloneResource(res))
	}
	r.mu.Unlock()

	sort.Slice(resources, func(i, j int) bool {
		if resources[i].Created.Equal(resources[j].Created) {
			return resources[i].ID < resources[j].ID
		}
		return resources[i].Created.After(resources[j].Created)
	})
	if len(resources) > limit {
		resources = resources[:limit]
	}
	return resources, nil
}

// Identities reports how many distinct provider identities are stored.
func (r *InMemoryEmbedRepository) Identities() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.identities)
}

func cloneResource(res models.EmbedResource) models.EmbedResource {
	if res.Provider != nil {
		identity := *res.Provider
		res.Provider = &identity
	}
	return res
}
