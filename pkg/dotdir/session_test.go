package dotdir_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choruslabs/chorus/pkg/dotdir"
)

var _ = Describe("SessionState", func() {
	var (
		m   *dotdir.Manager
		dir string
	)

	BeforeEach(func() {
		m = dotdir.NewManager()
		dir = GinkgoT().TempDir()
	})

	It("returns nil when no session exists", func() {
		state, err := m.LoadSessionState(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips a saved session", func() {
		err := m.SaveSessionState(dir, &dotdir.SessionState{ChatID: "chat-1", Title: "my chat"})
		Expect(err).NotTo(HaveOccurred())

		state, err := m.LoadSessionState(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.ChatID).To(Equal("chat-1"))
		Expect(state.Title).To(Equal("my chat"))
	})

	It("rejects a nil session", func() {
		Expect(m.SaveSessionState(dir, nil)).To(HaveOccurred())
	})

	It("clears a saved session", func() {
		err := m.SaveSessionState(dir, &dotdir.SessionState{ChatID: "chat-1"})
		Expect(err).NotTo(HaveOccurred())

		Expect(m.ClearSessionState(dir)).To(Succeed())

		state, err := m.LoadSessionState(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("clearing a missing session is a no-op", func() {
		Expect(m.ClearSessionState(dir)).To(Succeed())
	})
})
