package broker

import "github.com/skyward-er/segs-sub000/protocol"

// MessageBundle batches the messages of one distribution cycle, keyed by
// message ID. Buckets and their capacity survive Reset so steady-state
// cycles allocate nothing. Few distinct IDs are expected, so bucket
// lookup is a linear scan.
type MessageBundle struct {
	buckets []bundleBucket
	count   int
}

type bundleBucket struct {
	id       uint32
	messages []protocol.TimedMessage
}

// NewMessageBundle creates an empty bundle.
func NewMessageBundle() *MessageBundle {
	return &MessageBundle{}
}

// Insert appends a message to its ID's bucket, creating the bucket on
// first sight of the ID.
func (b *MessageBundle) Insert(msg protocol.TimedMessage) {
	b.count++
	for i := range b.buckets {
		if b.buckets[i].id == msg.ID() {
			b.buckets[i].messages = append(b.buckets[i].messages, msg)
			return
		}
	}
	b.buckets = append(b.buckets, bundleBucket{
		id:       msg.ID(),
		messages: []protocol.TimedMessage{msg},
	})
}

// Get returns the messages received for an ID this cycle, oldest first.
// The returned slice is valid until the next Reset.
func (b *MessageBundle) Get(id uint32) []protocol.TimedMessage {
	for i := range b.buckets {
		if b.buckets[i].id == id {
			return b.buckets[i].messages
		}
	}
	return nil
}

// All returns every message of the cycle, grouped by ID bucket. The
// returned slice is freshly allocated; the messages are shared.
func (b *MessageBundle) All() []protocol.TimedMessage {
	out := make([]protocol.TimedMessage, 0, b.count)
	for i := range b.buckets {
		out = append(out, b.buckets[i].messages...)
	}
	return out
}

// Reset clears every bucket for the next cycle, keeping the buckets and
// their allocated capacity.
func (b *MessageBundle) Reset() {
	for i := range b.buckets {
		b.buckets[i].messages = b.buckets[i].messages[:0]
	}
	b.count = 0
}

// Count reports how many messages were inserted since the last Reset.
func (b *MessageBundle) Count() int {
	return b.count
}
