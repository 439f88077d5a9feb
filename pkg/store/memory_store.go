package store

import (
	"sort"
	"sync"
	"time"

	"personify/pkg/domain"
)

// MemoryStore keeps all records in-process. Used in tests and local runs
// without Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	personas    map[string]domain.Persona
	byUser      map[string]string // user ID -> persona ID
	images      map[string]domain.PersonaImage
	generations map[string]domain.Generation
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		email:       make(map[string]string),
		personas:    make(map[string]domain.Persona),
		byUser:      make(map[string]string),
		images:      make(map[string]domain.PersonaImage),
		generations: make(map[string]domain.Generation),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// SavePersona stores or replaces a persona, keeping its images.
func (m *MemoryStore) SavePersona(p domain.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.personas[p.ID]; ok {
		p.Images = prior.Images
	}
	m.personas[p.ID] = p
	m.byUser[p.UserID] = p.ID
	return nil
}

// GetPersonaByUser returns the persona owned by a user.
func (m *MemoryStore) GetPersonaByUser(userID string) (domain.Persona, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUser[userID]
	if !ok {
		return domain.Persona{}, false, nil
	}
	p, exists := m.personas[id]
	return p, exists, nil
}

// DeletePersona removes a persona and its image rows.
func (m *MemoryStore) DeletePersona(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok {
		return nil
	}
	for imgID, img := range m.images {
		if img.PersonaID == id {
			delete(m.images, imgID)
		}
	}
	delete(m.byUser, p.UserID)
	delete(m.personas, id)
	return nil
}

// AddPersonaImage records an uploaded image.
func (m *MemoryStore) AddPersonaImage(img domain.PersonaImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.ID] = img
	if p, ok := m.personas[img.PersonaID]; ok {
		p.Images = append(p.Images, img)
		m.personas[img.PersonaID] = p
	}
	return nil
}

// GetPersonaImage returns one image by ID.
func (m *MemoryStore) GetPersonaImage(id string) (domain.PersonaImage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[id]
	return img, ok, nil
}

// DeletePersonaImage removes one image row.
func (m *MemoryStore) DeletePersonaImage(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return nil
	}
	if p, exists := m.personas[img.PersonaID]; exists {
		kept := p.Images[:0]
		for _, item := range p.Images {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		p.Images = kept
		m.personas[img.PersonaID] = p
	}
	delete(m.images, id)
	return nil
}

// CreateGeneration inserts a generation record.
func (m *MemoryStore) CreateGeneration(g domain.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[g.ID] = g
	return nil
}

// SetGenerationOutcome moves a generation out of pending exactly once.
func (m *MemoryStore) SetGenerationOutcome(id string, status domain.GenerationStatus, result, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok || g.Status != domain.StatusPending {
		return nil
	}
	g.Status = status
	g.Result = result
	g.ErrorMessage = errMsg
	m.generations[id] = g
	return nil
}

// GetGeneration retrieves one generation by ID.
func (m *MemoryStore) GetGeneration(id string) (domain.Generation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.generations[id]
	return g, ok, nil
}

// ListGenerationsByUser returns generations newest-first, optionally filtered.
func (m *MemoryStore) ListGenerationsByUser(userID string, genType domain.GenerationType, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Generation, 0)
	for _, g := range m.generations {
		if g.UserID != userID {
			continue
		}
		if genType != "" && g.Type != genType {
			continue
		}
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// DeleteGeneration removes one generation.
func (m *MemoryStore) DeleteGeneration(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.generations, id)
	return nil
}

// CountGenerationsSince counts generations of one type created at or after
// the cutoff.
func (m *MemoryStore) CountGenerationsSince(userID string, genType domain.GenerationType, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, g := range m.generations {
		if g.UserID == userID && g.Type == genType && !g.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
