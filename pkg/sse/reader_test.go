package sse

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				r := NewReader(strings.NewReader("data: hello world\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello world"))
				Expect(ev.Type).To(BeEmpty())
				Expect(ev.ID).To(BeEmpty())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("parses multiple events", func() {
				r := NewReader(strings.NewReader("data: first\n\ndata: second\n\n"))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Data).To(Equal("first"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Data).To(Equal("second"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3).To(BeNil())
			})

			It("parses event type", func() {
				r := NewReader(strings.NewReader("event: content_block_delta\ndata: {\"type\":\"delta\"}\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Type).To(Equal("content_block_delta"))
				Expect(ev.Data).To(Equal("{\"type\":\"delta\"}"))
			})

			It("joins multiple data lines with newline", func() {
				r := NewReader(strings.NewReader("data: line one\ndata: line two\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("line one\nline two"))
			})

			It("yields an in-progress event when the stream ends without a blank line", func() {
				r := NewReader(strings.NewReader("data: trailing"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("trailing"))
			})
		})

		Context("with OpenAI-style SSE", func() {
			It("parses streaming chunks up to the [DONE] sentinel", func() {
				input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
					"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
					"data: [DONE]\n\n"
				r := NewReader(strings.NewReader(input))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Data).To(ContainSubstring("Hello"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Data).To(ContainSubstring(" world"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3.Data).To(Equal("[DONE]"))

				ev4, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev4).To(BeNil())
			})
		})

		Context("with Anthropic-style SSE", func() {
			It("parses events with explicit event types", func() {
				input := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
					"event: content_block_delta\ndata: {\"delta\":{\"text\":\"Hi\"}}\n\n" +
					"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
				r := NewReader(strings.NewReader(input))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Type).To(Equal("message_start"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Type).To(Equal("content_block_delta"))
				Expect(ev2.Data).To(ContainSubstring("Hi"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3.Type).To(Equal("message_stop"))
			})
		})

		Context("with SSE comments", func() {
			It("ignores comment lines", func() {
				r := NewReader(strings.NewReader(": keep-alive\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})
		})

		Context("with data field variations", func() {
			It("handles data field with no space after colon", func() {
				r := NewReader(strings.NewReader("data:no-space\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("no-space"))
			})

			It("handles empty data field", func() {
				r := NewReader(strings.NewReader("data:\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(BeEmpty())
			})
		})
	})
})
