package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(id string) *Client {
	return &Client{
		ID:     id,
		send:   make(chan ChangeEvent, 8),
		topics: make(map[string]struct{}),
	}
}

// fakeBus records publishes and per-topic subscription lifecycles.
type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	subbed    map[string]int
	cancelled map[string]int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		subbed:    make(map[string]int),
		cancelled: make(map[string]int),
	}
}

func (f *fakeBus) PublishChange(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeBus) SubscribeTopic(topic string, handler func(payload []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subbed[topic]++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled[topic]++
	}, nil
}

func TestTopicsForKey(t *testing.T) {
	assert.Equal(t, []string{"poll:", "poll:abc"}, TopicsForKey("poll:abc"))
	assert.Equal(t, []string{"quiz:", "quiz:q1"}, TopicsForKey("quiz:q1"))
	assert.Equal(t, []string{"quiz_progress:", "quiz_progress:u:q"}, TopicsForKey("quiz_progress:u:q"))
	assert.Equal(t, []string{"activity:"}, TopicsForKey("activity:"))
	assert.Equal(t, []string{"health"}, TopicsForKey("health"))
}

func TestHubBroadcastReachesPrefixAndExactSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	prefixSub := newTestClient("c1")
	exactSub := newTestClient("c2")
	otherSub := newTestClient("c3")

	hub.Subscribe(prefixSub, "poll:")
	hub.Subscribe(exactSub, "poll:abc")
	hub.Subscribe(otherSub, "poll:zzz")

	hub.DocumentChanged("poll_voted", "poll:abc")

	ev := <-prefixSub.send
	assert.Equal(t, "poll_voted", ev.Event)
	assert.Equal(t, "poll:abc", ev.Key)

	ev = <-exactSub.send
	assert.Equal(t, "poll:abc", ev.Key)

	select {
	case ev := <-otherSub.send:
		t.Fatalf("subscriber of another key received %+v", ev)
	default:
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient("c1")

	hub.Subscribe(c, "quiz:")
	hub.Unsubscribe(c, "quiz:")
	hub.DocumentChanged("quiz_created", "quiz:q1")

	select {
	case ev := <-c.send:
		t.Fatalf("unsubscribed client received %+v", ev)
	default:
	}
}

func TestHubBroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := &Client{ID: "c1", send: make(chan ChangeEvent), topics: make(map[string]struct{})}
	hub.Subscribe(c, "poll:")

	// Nothing reads c.send; Broadcast must not block.
	done := make(chan struct{})
	go func() {
		hub.Broadcast("poll:", ChangeEvent{Event: "poll_voted", Key: "poll:abc"})
		close(done)
	}()
	<-done
}

func TestHubRefCountsCrossInstanceSubscriptions(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub(zap.NewNop(), bus, bus)
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")

	hub.Subscribe(c1, "poll:")
	hub.Subscribe(c2, "poll:")
	assert.Equal(t, 1, bus.subbed["poll:"], "one upstream subscription per topic")

	hub.Unsubscribe(c1, "poll:")
	assert.Equal(t, 0, bus.cancelled["poll:"], "kept while a subscriber remains")

	hub.Unsubscribe(c2, "poll:")
	assert.Equal(t, 1, bus.cancelled["poll:"], "cancelled with the last subscriber")
	assert.Equal(t, 0, hub.SubscriberCount("poll:"))
}

func TestHubPublishesToEveryTopicOfKey(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub(zap.NewNop(), bus, bus)

	hub.DocumentChanged("poll_updated", "poll:abc")

	require.Len(t, bus.published["poll:"], 1)
	require.Len(t, bus.published["poll:abc"], 1)
	assert.JSONEq(t, `{"event":"poll_updated","key":"poll:abc"}`, string(bus.published["poll:"][0]))
}

func TestUnregisterClearsAllTopics(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient("c1")
	c.hub = hub

	c.addTopic("poll:")
	c.addTopic("quiz:")
	assert.Equal(t, 1, hub.SubscriberCount("poll:"))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.SubscriberCount("poll:"))
	assert.Equal(t, 0, hub.SubscriberCount("quiz:"))
}

func TestSplitTopics(t *testing.T) {
	assert.Equal(t, []string{"poll:", "quiz:q1"}, splitTopics("poll:, quiz:q1"))
	assert.Nil(t, splitTopics(""))
	assert.Nil(t, splitTopics(" , ,"))
}
