package sse

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// flushRecorder counts Flush calls so tests can assert per-frame flushing.
type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() error {
	f.flushes++
	return nil
}

var _ = Describe("Writer", func() {
	It("frames an event with type and JSON payload", func() {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		err := w.WriteEvent("chunk", map[string]string{"source": "a", "increment": "hi"})
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(HavePrefix("event: chunk\ndata: "))
		Expect(buf.String()).To(HaveSuffix("\n\n"))
		Expect(buf.String()).To(ContainSubstring(`"source":"a"`))
	})

	It("flushes after every frame when the destination supports it", func() {
		rec := &flushRecorder{}
		w := NewWriter(rec)

		Expect(w.WriteEvent("start", map[string]any{})).To(Succeed())
		Expect(w.WriteEvent("end", map[string]any{})).To(Succeed())

		Expect(rec.flushes).To(Equal(2))
	})

	It("round-trips through the Reader", func() {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		Expect(w.WriteEvent("complete", map[string]string{"source": "b", "text": "done"})).To(Succeed())

		r := NewReader(&buf)
		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Type).To(Equal("complete"))
		Expect(ev.Data).To(ContainSubstring(`"text":"done"`))
	})
})
