package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EmptySchemaID identifies the degenerate zero-column schema every registry
// holds. It is the fallback when no field catalog exists yet and cannot be
// removed.
const EmptySchemaID = "empty"

// ErrNotFound is returned when a schema ID is not in the registry.
var ErrNotFound = errors.New("schema not found")

// Registry is an in-memory catalog of schemas with memoized compilation.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	schemas  map[string]Schema
	order    []string
	compiled map[string][]ExpectedColumn
}

// NewRegistry builds a registry seeded with the empty schema followed by the
// given schemas. Seeds with duplicate or blank IDs panic: seed data is code,
// not user input.
func NewRegistry(seeds ...Schema) *Registry {
	r := &Registry{
		schemas:  make(map[string]Schema),
		compiled: make(map[string][]ExpectedColumn),
	}
	r.insert(Schema{ID: EmptySchemaID, Name: "Empty", Columns: []SchemaColumn{}})
	for _, s := range seeds {
		if s.ID == "" {
			panic(fmt.Sprintf("seed schema %q has no ID", s.Name))
		}
		if _, exists := r.schemas[s.ID]; exists {
			panic(fmt.Sprintf("seed schema already registered: %s", s.ID))
		}
		r.insert(s)
	}
	return r
}

func (r *Registry) insert(s Schema) {
	r.schemas[s.ID] = s
	r.order = append(r.order, s.ID)
}

// List returns all schemas in stable order: seeded order first, then user
// insertion order.
func (r *Registry) List() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Schema, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.schemas[id])
	}
	return result
}

// Get returns a schema by ID.
func (r *Registry) Get(id string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[id]
	return s, ok
}

// Add inserts a new schema. A blank ID is assigned a fresh UUID; a duplicate
// ID is an error. The stored schema is returned.
func (r *Registry) Add(s Schema) (Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if _, exists := r.schemas[s.ID]; exists {
		return Schema{}, fmt.Errorf("add schema %s: id already registered", s.ID)
	}
	r.insert(s)
	return s, nil
}

// Replace swaps the schema with the given ID for a new definition, keeping
// its position in List order. The memoized compilation is discarded.
func (r *Registry) Replace(id string, s Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[id]; !exists {
		return fmt.Errorf("replace schema %s: %w", id, ErrNotFound)
	}
	s.ID = id
	r.schemas[id] = s
	delete(r.compiled, id)
	return nil
}

// Remove deletes a schema. The empty schema is load-bearing and stays.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == EmptySchemaID {
		return fmt.Errorf("remove schema %s: the empty schema cannot be removed", id)
	}
	if _, exists := r.schemas[id]; !exists {
		return fmt.Errorf("remove schema %s: %w", id, ErrNotFound)
	}
	delete(r.schemas, id)
	delete(r.compiled, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Compiled returns the schema's columns in evaluable form, compiling on first
// use and caching until the schema is replaced or removed.
func (r *Registry) Compiled(id string) ([]ExpectedColumn, bool) {
	r.mu.RLock()
	cols, ok := r.compiled[id]
	r.mu.RUnlock()
	if ok {
		return cols, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schemas[id]
	if !ok {
		return nil, false
	}
	if cols, ok := r.compiled[id]; ok {
		return cols, true
	}
	cols = Compile(s)
	r.compiled[id] = cols
	return cols, true
}

// Count returns the number of registered schemas, the empty schema included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}
