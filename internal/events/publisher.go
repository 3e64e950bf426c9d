package events

import (
	"sync"
)

// GlobalRepo is the special repo key for subscribing to all events.
// Subscribers to this key receive events for ALL repositories.
const GlobalRepo = "*"

// Publisher defines the interface for event publishing.
type Publisher interface {
	// Publish sends an event to all subscribers of the event's repo.
	Publish(event Event)
	// Subscribe returns a channel that receives events for the given repo.
	// Use GlobalRepo ("*") to receive events for all repositories.
	Subscribe(repo string) <-chan Event
	// Unsubscribe removes a subscription channel.
	Unsubscribe(repo string, ch <-chan Event)
	// Close shuts down the publisher and all subscriptions.
	Close()
}

// MemoryPublisher is an in-memory implementation of Publisher.
type MemoryPublisher struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
}

// PublisherOption configures a MemoryPublisher.
type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets the channel buffer size for subscribers.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) {
		p.bufferSize = size
	}
}

// NewMemoryPublisher creates a new in-memory publisher.
func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{
		subscribers: make(map[string][]chan Event),
		bufferSize:  100,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event to all subscribers of the event's repo.
// Also sends to global subscribers (those subscribed to GlobalRepo).
// Non-blocking: skips subscribers with full buffers.
func (p *MemoryPublisher) Publish(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	for _, ch := range p.subscribers[event.Repo] {
		select {
		case ch <- event:
		default:
			// Skip if channel buffer is full (non-blocking)
		}
	}

	if event.Repo != GlobalRepo {
		for _, ch := range p.subscribers[GlobalRepo] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribe returns a channel that receives events for the given repo.
func (p *MemoryPublisher) Subscribe(repo string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, p.bufferSize)
	p.subscribers[repo] = append(p.subscribers[repo], ch)
	return ch
}

// Unsubscribe removes a subscription channel.
func (p *MemoryPublisher) Unsubscribe(repo string, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subscribers[repo]
	for i, sub := range subs {
		if sub == ch {
			p.subscribers[repo] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(p.subscribers[repo]) == 0 {
		delete(p.subscribers, repo)
	}
}

// Close shuts down the publisher and closes all subscription channels.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for repo, subs := range p.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(p.subscribers, repo)
	}
}

// SubscriberCount returns the number of subscribers for a repo.
func (p *MemoryPublisher) SubscriberCount(repo string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers[repo])
}

// NopPublisher discards all events. Useful in tests and CLI runs.
type NopPublisher struct{}

func (NopPublisher) Publish(Event)                        {}
func (NopPublisher) Subscribe(string) <-chan Event        { return nil }
func (NopPublisher) Unsubscribe(string, <-chan Event)     {}
func (NopPublisher) Close()                               {}
