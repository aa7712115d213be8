package relation

import (
	"fmt"
	"sync"

	"github.com/obsstack/lokiop/pkg/databag"
)

// Memory is an in-memory Transport. It backs the unit tests and any
// embedding where the hosting agent mirrors databags straight into the
// process.
type Memory struct {
	mu        sync.RWMutex
	relations map[string]*Relation
}

// NewMemory creates an empty in-memory transport.
func NewMemory() *Memory {
	return &Memory{relations: make(map[string]*Relation)}
}

// Add installs a relation on endpoint with the given identity. Databags
// start empty. Adding with an empty remoteApp models a relation whose
// remote side has not yet resolved.
func (m *Memory) Add(id int, endpoint, remoteApp string) *Relation {
	m.mu.Lock()
	defer m.mu.Unlock()

	rel := &Relation{
		ID:        id,
		Endpoint:  endpoint,
		RemoteApp: remoteApp,
		Data: map[Participant]databag.Bag{
			LocalUnit: {},
			LocalApp:  {},
			RemoteApp: {},
		},
	}
	if remoteApp == "" {
		rel.Data = nil
	}
	m.relations[endpoint] = rel
	return rel
}

// Remove deletes the relation on endpoint.
func (m *Memory) Remove(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.relations, endpoint)
}

// SetRemoteAppBag replaces the coordinator application's databag, as the
// platform does when remote data changes.
func (m *Memory) SetRemoteAppBag(endpoint string, bag databag.Bag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rel, ok := m.relations[endpoint]; ok && rel.Data != nil {
		rel.Data[RemoteApp] = bag.Copy()
	}
}

// Relation implements Transport.
func (m *Memory) Relation(endpoint string) (*Relation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rel, ok := m.relations[endpoint]
	if !ok {
		return nil, false
	}
	return snapshot(rel), true
}

// Write implements Transport.
func (m *Memory) Write(relationID int, p Participant, bag databag.Bag) error {
	if p == RemoteApp {
		return ErrReadOnly
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rel := range m.relations {
		if rel.ID != relationID {
			continue
		}
		if rel.Data == nil {
			return fmt.Errorf("relation %d has no data yet", relationID)
		}
		rel.Data[p] = bag.Copy()
		return nil
	}
	return fmt.Errorf("no relation with id %d", relationID)
}

func snapshot(rel *Relation) *Relation {
	out := &Relation{
		ID:        rel.ID,
		Endpoint:  rel.Endpoint,
		RemoteApp: rel.RemoteApp,
	}
	if rel.Data != nil {
		out.Data = make(map[Participant]databag.Bag, len(rel.Data))
		for p, bag := range rel.Data {
			out.Data[p] = bag.Copy()
		}
	}
	return out
}
