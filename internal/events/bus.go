// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageType identifies what a message reports.
type MessageType string

const (
	TypeEnterEditing MessageType = "editing.entered"
	TypeExitEditing  MessageType = "editing.exited"
	TypeCancel       MessageType = "editing.cancelled"
	TypeDragUpdate   MessageType = "drag.updated"
	TypeError        MessageType = "editor.error"
)

// AllTypes lists every message type the editor publishes.
var AllTypes = []MessageType{TypeEnterEditing, TypeExitEditing, TypeCancel, TypeDragUpdate, TypeError}

// Message is the envelope for data transmitted over the Bus.
type Message struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload"`
}

// Bus fans editor events out to subscribers.
type Bus struct {
	logger *zap.Logger

	// Map of message type to a list of channels (subscribers).
	subscribers map[MessageType][]chan Message
	// channels holds every channel handed out, including unsubscribed ones,
	// so Shutdown can close and drain them all.
	channels   map[chan Message]struct{}
	mu         sync.RWMutex
	bufferSize int

	// WaitGroup to track messages currently being processed by consumers.
	processingWg sync.WaitGroup
	// WaitGroup to track active Post operations.
	activePostsWg sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.Mutex
}

// NewBus initializes a Bus. Each subscriber gets a buffer of bufferSize.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:       logger.Named("events"),
		subscribers:  make(map[MessageType][]chan Message),
		channels:     make(map[chan Message]struct{}),
		bufferSize:   bufferSize,
		shutdownChan: make(chan struct{}),
	}
}

// ErrSubscriberBusy is returned by TryPost when a subscriber's buffer was full.
var ErrSubscriberBusy = errors.New("subscriber buffer full")

// Post sends a message onto the bus. Blocks while subscriber buffers are
// full, until ctx is done or the bus shuts down.
func (b *Bus) Post(ctx context.Context, msgType MessageType, payload interface{}) error {
	return b.send(ctx, msgType, payload, true)
}

// TryPost sends a message without waiting. Subscribers whose buffers are
// full miss it, and ErrSubscriberBusy is returned.
func (b *Bus) TryPost(msgType MessageType, payload interface{}) error {
	return b.send(context.Background(), msgType, payload, false)
}

func (b *Bus) send(ctx context.Context, msgType MessageType, payload interface{}, wait bool) error {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return fmt.Errorf("cannot post message: bus is shut down")
	}
	b.activePostsWg.Add(1)
	b.shutdownMu.Unlock()
	defer b.activePostsWg.Done()

	msg := Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      msgType,
		Payload:   payload,
	}

	b.mu.RLock()
	subscribers, ok := b.subscribers[msg.Type]
	if !ok || len(subscribers) == 0 {
		b.mu.RUnlock()
		return nil // No one is listening.
	}
	// Copy so the lock is not held during channel sends.
	subsCopy := make([]chan Message, len(subscribers))
	copy(subsCopy, subscribers)
	b.mu.RUnlock()

	dropped := 0
	for _, ch := range subsCopy {
		b.processingWg.Add(1)
		if !wait {
			select {
			case ch <- msg:
			default:
				b.processingWg.Done()
				dropped++
			}
			continue
		}
		select {
		case ch <- msg:
			// Delivered. The consumer must call Acknowledge.
		case <-ctx.Done():
			b.processingWg.Done()
			return ctx.Err()
		case <-b.shutdownChan:
			b.processingWg.Done()
			return fmt.Errorf("failed to post message: bus is shutting down")
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d of %d subscribers", ErrSubscriberBusy, dropped, len(subsCopy))
	}
	return nil
}

// Subscribe returns a channel receiving the given message types, and a
// function that stops delivery. Channels are closed by Shutdown only.
func (b *Bus) Subscribe(msgTypes ...MessageType) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdownLocked() {
		closedCh := make(chan Message)
		close(closedCh)
		return closedCh, func() {}
	}
	if len(msgTypes) == 0 {
		panic("must subscribe to at least one message type")
	}

	ch := make(chan Message, b.bufferSize)
	b.channels[ch] = struct{}{}
	subscribedTypes := make([]MessageType, len(msgTypes))
	copy(subscribedTypes, msgTypes)
	for _, msgType := range subscribedTypes {
		b.subscribers[msgType] = append(b.subscribers[msgType], ch)
	}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, msgType := range subscribedTypes {
			subs := b.subscribers[msgType]
			for i, subscriberCh := range subs {
				if subscriberCh == ch {
					copy(subs[i:], subs[i+1:])
					b.subscribers[msgType] = subs[:len(subs)-1]
					if len(b.subscribers[msgType]) == 0 {
						delete(b.subscribers, msgType)
					}
					break
				}
			}
		}
	}
	return ch, unsubscribe
}

func (b *Bus) isShutdownLocked() bool {
	b.shutdownMu.Lock()
	defer b.shutdownMu.Unlock()
	return b.isShutdown
}

// Acknowledge signals that a message has been processed by a consumer.
func (b *Bus) Acknowledge(Message) {
	b.processingWg.Done()
}

// Shutdown stops accepting posts, closes every subscriber channel, drains
// what was never read and waits for outstanding acknowledgements.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.logger.Debug("Shutting down event bus.")

		b.shutdownMu.Lock()
		b.isShutdown = true
		b.shutdownMu.Unlock()

		close(b.shutdownChan)
		b.activePostsWg.Wait()

		b.mu.Lock()
		// No Post can be sending any more, so closing is safe.
		for ch := range b.channels {
			close(ch)
		}
		drained := 0
		for ch := range b.channels {
			for range ch {
				drained++
				b.processingWg.Done()
			}
		}
		b.subscribers = make(map[MessageType][]chan Message)
		b.channels = make(map[chan Message]struct{})
		b.mu.Unlock()

		if drained > 0 {
			b.logger.Debug("Drained buffered messages during shutdown.", zap.Int("count", drained))
		}
		b.processingWg.Wait()
		b.logger.Debug("Event bus shut down.")
	})
}
