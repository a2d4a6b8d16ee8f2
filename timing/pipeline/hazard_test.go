package pipeline_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/arch"
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

var _ = Describe("HazardUnit", func() {
	var hazardUnit *pipeline.HazardUnit

	BeforeEach(func() {
		hazardUnit = pipeline.NewHazardUnit()
	})

	It("should ignore nil and ordinary errors", func() {
		Expect(hazardUnit.Observe(nil)).To(BeFalse())
		Expect(hazardUnit.Observe(errors.New("boom"))).To(BeFalse())
		Expect(hazardUnit.Observe(&emu.Interrupt{Cause: emu.CauseSyscall})).To(BeFalse())
		Expect(hazardUnit.RAW + hazardUnit.WAW).To(BeZero())
	})

	It("should count stalls by kind", func() {
		Expect(hazardUnit.Observe(&arch.StallError{Kind: arch.StallRAW, Reg: emu.GPR(8)})).To(BeTrue())
		Expect(hazardUnit.Observe(&arch.StallError{Kind: arch.StallRAW, Reg: emu.GPR(9)})).To(BeTrue())
		Expect(hazardUnit.Observe(&arch.StallError{Kind: arch.StallWAW, Reg: emu.PC})).To(BeTrue())

		Expect(hazardUnit.RAW).To(Equal(uint64(2)))
		Expect(hazardUnit.WAW).To(Equal(uint64(1)))
	})

	It("should see stalls through wrapping", func() {
		err := fmt.Errorf("decode: %w", &arch.StallError{Kind: arch.StallWAW, Reg: emu.HI})
		Expect(hazardUnit.Observe(err)).To(BeTrue())
		Expect(hazardUnit.WAW).To(Equal(uint64(1)))
	})

	It("should clear its tallies on reset", func() {
		hazardUnit.Observe(&arch.StallError{Kind: arch.StallRAW})
		hazardUnit.Reset()
		Expect(*hazardUnit).To(Equal(pipeline.HazardUnit{}))
	})
})
