package inbox

import "sync"

// Directory resolves a sender id to a display name and avatar.
type Directory interface {
	Lookup(id string) (Person, bool)
}

// People is an in-memory Directory fed from loaded conversations and the
// signed-in user.
type People struct {
	mu sync.RWMutex
	m  map[string]Person
}

func NewPeople() *People {
	return &People{m: make(map[string]Person)}
}

// Add records p, replacing a previous entry with the same id.
func (d *People) Add(p Person) {
	if p.ID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[p.ID] = p
}

// AddParticipants records the participants of conversations whose identity
// is already known.
func (d *People) AddParticipants(list []Conversation) {
	for _, c := range list {
		d.Add(Person{ID: c.Participant.ID, Name: c.Participant.Name, AvatarURL: c.Participant.AvatarURL})
	}
}

func (d *People) Lookup(id string) (Person, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.m[id]
	return p, ok
}
