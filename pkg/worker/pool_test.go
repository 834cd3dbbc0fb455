package worker

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/eventstream"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnPersistedEvent
	err    error
}

func (p *capturingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnPersistedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) published() []*eventstream.TurnPersistedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.TurnPersistedEvent(nil), p.events...)
}

// newTestPool creates a worker pool backed by a capturing publisher.
// Callers should "wp.Close()" to drain enqueued events before asserting.
func newTestPool() (*Pool, *capturingPublisher) {
	logger, _ := zap.NewDevelopment()
	pub := &capturingPublisher{}

	wp, err := NewPool(&Config{
		Publisher: pub,
		Logger:    logger,
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, pub
}

var _ = Describe("Worker Pool", func() {
	It("requires a publisher", func() {
		_, err := NewPool(&Config{Logger: zap.NewNop()})
		Expect(err).To(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			wp, _ := newTestPool()
			ok := wp.Enqueue(&eventstream.TurnPersistedEvent{ChatID: "c1", TurnID: "t1"})
			Expect(ok).To(BeTrue())
			wp.Close()
		})

		It("rejects nil events", func() {
			wp, _ := newTestPool()
			defer wp.Close()

			Expect(wp.Enqueue(nil)).To(BeFalse())
		})
	})

	Describe("publishing", func() {
		It("publishes enqueued events before Close returns", func() {
			wp, pub := newTestPool()

			for _, turnID := range []string{"t1", "t2", "t3"} {
				ok := wp.Enqueue(&eventstream.TurnPersistedEvent{ChatID: "c1", TurnID: turnID})
				Expect(ok).To(BeTrue())
			}
			wp.Close()

			events := pub.published()
			Expect(events).To(HaveLen(3))
		})

		It("keeps draining after a publish failure", func() {
			logger, _ := zap.NewDevelopment()
			pub := &capturingPublisher{err: context.DeadlineExceeded}

			wp, err := NewPool(&Config{Publisher: pub, Logger: logger})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Enqueue(&eventstream.TurnPersistedEvent{ChatID: "c1", TurnID: "t1"})).To(BeTrue())
			wp.Close()

			Expect(pub.published()).To(BeEmpty())
		})
	})
})
