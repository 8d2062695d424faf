package mapek_test

import (
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/knhk/workflow-kernel/pkg/mapek"
)

var _ = Describe("Knowledge", func() {
	var kb *mapek.Knowledge

	BeforeEach(func() {
		kb = mapek.NewKnowledge()
	})

	It("returns the optimistic 0.5 prior for an action with no history", func() {
		Expect(kb.SuccessRate(uuid.New())).To(Equal(0.5))
	})

	It("moves the success rate toward 1.0 after repeated successes", func() {
		actionID := uuid.New()
		for i := 0; i < 20; i++ {
			kb.RecordSuccess("recurring failure", actionID, true)
		}
		Expect(kb.SuccessRate(actionID)).To(BeNumerically(">", 0.9))
	})

	It("moves the success rate toward 0.0 after repeated failures", func() {
		actionID := uuid.New()
		for i := 0; i < 20; i++ {
			kb.RecordSuccess("recurring failure", actionID, false)
		}
		Expect(kb.SuccessRate(actionID)).To(BeNumerically("<", 0.1))
	})

	It("records a learned pattern only on success", func() {
		actionID := uuid.New()
		kb.RecordSuccess("situation A", actionID, true)
		kb.RecordSuccess("situation B", actionID, false)

		patterns := kb.GetPatterns()
		Expect(patterns).To(HaveLen(1))
		Expect(patterns[0].Description).To(Equal("situation A"))
	})

	It("tracks cycle records append-only", func() {
		kb.RecordCycle(mapek.CycleRecord{Outcome: "resolved"})
		kb.RecordCycle(mapek.CycleRecord{Outcome: "partial"})

		cycles := kb.GetCycles()
		Expect(cycles).To(HaveLen(2))
		Expect(cycles[0].Outcome).To(Equal("resolved"))
	})

	It("exposes every tracked memory via GetMemories", func() {
		a, b := uuid.New(), uuid.New()
		kb.RecordSuccess("x", a, true)
		kb.RecordSuccess("y", b, false)

		memories := kb.GetMemories()
		Expect(memories).To(HaveLen(2))
	})
})
