package broker

import (
	"sync"

	"github.com/illmade-knight/go-messagebroker/pkg/messaging"
)

// registry is the broker's top-level channel map. Creation is atomic per name so
// concurrent first-use of a topic yields exactly one channel instance.
type registry struct {
	mu       sync.RWMutex
	channels map[string]*channel

	// newChannel is injected by the broker so the registry stays free of
	// construction wiring.
	newChannel func(name string, ctype messaging.ChannelType, props messaging.ChannelProperties) *channel
}

func newRegistry(factory func(string, messaging.ChannelType, messaging.ChannelProperties) *channel) *registry {
	return &registry{
		channels:   make(map[string]*channel),
		newChannel: factory,
	}
}

// create stores a new channel under name, failing if the name is taken.
func (r *registry) create(name string, ctype messaging.ChannelType, props messaging.ChannelProperties) (*channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[name]; exists {
		return nil, false
	}
	ch := r.newChannel(name, ctype, props)
	r.channels[name] = ch
	return ch, true
}

// getOrCreateTopic resolves name, implicitly creating a TOPIC channel with
// default properties on first use. The bool reports whether a channel was
// created.
func (r *registry) getOrCreateTopic(name string) (*channel, bool) {
	r.mu.RLock()
	ch, ok := r.channels[name]
	r.mu.RUnlock()
	if ok {
		return ch, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return ch, false
	}
	ch = r.newChannel(name, messaging.ChannelTopic, messaging.DefaultChannelProperties())
	r.channels[name] = ch
	return ch, true
}

func (r *registry) get(name string) (*channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// remove deletes name from the map and signals the channel's consumer loop to
// stop. Waiting for the loop is left to the caller.
func (r *registry) remove(name string) (*channel, bool) {
	r.mu.Lock()
	ch, ok := r.channels[name]
	if ok {
		delete(r.channels, name)
	}
	r.mu.Unlock()
	if ok {
		ch.signalStop()
	}
	return ch, ok
}

// list returns a point-in-time snapshot of channel metadata.
func (r *registry) list() []messaging.ChannelInfo {
	r.mu.RLock()
	channels := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.RUnlock()

	infos := make([]messaging.ChannelInfo, 0, len(channels))
	for _, ch := range channels {
		infos = append(infos, ch.info())
	}
	return infos
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// clear empties the registry, signalling every channel to stop, and returns the
// removed channels so the caller can await their consumer loops.
func (r *registry) clear() []*channel {
	r.mu.Lock()
	removed := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		removed = append(removed, ch)
	}
	r.channels = make(map[string]*channel)
	r.mu.Unlock()

	for _, ch := range removed {
		ch.signalStop()
	}
	return removed
}
