package domain

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Change fields published by the domain capabilities.
const (
	FieldLocation = "location"
	FieldQuantity = "quantity"
	FieldExpanded = "expanded"
	FieldSelected = "selected"
)

// Event describes a state change of one record or view model.
type Event struct {
	Source GlobalID
	Field  string
}

// Observer receives change events.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify calls f(ev).
func (f ObserverFunc) Notify(ev Event) { f(ev) }

// Notifier fans events out to subscribed observers in subscription order.
// The zero value is ready to use and a nil *Notifier drops every event.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]Observer
	log  *logrus.Logger
}

// NewNotifier returns a notifier that logs recovered observer panics to log.
func NewNotifier(log *logrus.Logger) *Notifier {
	return &Notifier{log: log}
}

// Subscribe registers o and returns a function that removes it again.
func (n *Notifier) Subscribe(o Observer) func() {
	if n == nil || o == nil {
		return func() {}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]Observer)
	}
	id := n.next
	n.next++
	n.subs[id] = o
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Len returns the number of subscribed observers.
func (n *Notifier) Len() int {
	if n == nil {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Publish delivers ev to every observer. Observers run outside the lock so
// they may subscribe or unsubscribe while handling an event.
func (n *Notifier) Publish(ev Event) {
	if n == nil {
		return
	}
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, n.subs[id])
	}
	n.mu.Unlock()

	for _, o := range observers {
		n.deliver(o, ev)
	}
}

func (n *Notifier) deliver(o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil && n.log != nil {
			n.log.WithFields(logrus.Fields{
				"source": ev.Source,
				"field":  ev.Field,
			}).Errorf("observer panicked: %v", r)
		}
	}()
	o.Notify(ev)
}
