package core

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"inventorycore/pkg/domain"
)

// UserDirectory maps usernames to people and tracks the signed-in user. It
// implements domain.UserAccessor.
type UserDirectory struct {
	mu      sync.RWMutex
	people  map[string]domain.Person
	current string
}

// NewUserDirectory returns a directory holding people.
func NewUserDirectory(people ...domain.Person) *UserDirectory {
	d := &UserDirectory{people: make(map[string]domain.Person)}
	for _, p := range people {
		_ = d.Add(p)
	}
	return d
}

func normalizeUsername(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Add registers or replaces p.
func (d *UserDirectory) Add(p domain.Person) error {
	key := normalizeUsername(p.Username)
	if key == "" {
		return errors.New("username required")
	}
	d.mu.Lock()
	d.people[key] = p
	d.mu.Unlock()
	return nil
}

// Remember registers p unless the username is already known. Owners seen
// in payloads are learned this way without clobbering configured users.
func (d *UserDirectory) Remember(p domain.Person) {
	key := normalizeUsername(p.Username)
	if key == "" {
		return
	}
	d.mu.Lock()
	if _, ok := d.people[key]; !ok {
		d.people[key] = p
	}
	d.mu.Unlock()
}

// Lookup returns the person with username.
func (d *UserDirectory) Lookup(username string) (domain.Person, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.people[normalizeUsername(username)]
	return p, ok
}

// SetCurrent signs in username. An empty username signs out.
func (d *UserDirectory) SetCurrent(username string) error {
	key := normalizeUsername(username)
	d.mu.Lock()
	defer d.mu.Unlock()
	if key != "" {
		if _, ok := d.people[key]; !ok {
			return errors.Errorf("user %q not found", username)
		}
	}
	d.current = key
	return nil
}

// CurrentUser implements domain.UserAccessor.
func (d *UserDirectory) CurrentUser() (domain.Person, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.current == "" {
		return domain.Person{}, false
	}
	p, ok := d.people[d.current]
	return p, ok
}

// People returns every known person ordered by username.
func (d *UserDirectory) People() []domain.Person {
	d.mu.RLock()
	out := make([]domain.Person, 0, len(d.people))
	for _, p := range d.people {
		out = append(out, p)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
