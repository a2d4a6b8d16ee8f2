package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/emu"
)

var _ = Describe("RegFile", func() {
	var rf *emu.RegFile

	BeforeEach(func() {
		rf = emu.NewRegFile()
	})

	Describe("hazard protocol", func() {
		var t0 *emu.Register

		BeforeEach(func() {
			t0 = rf.Reg(emu.GPR(8))
		})

		It("should allow a single lock", func() {
			Expect(t0.Lock(1)).To(Succeed())
			Expect(t0.Locked()).To(BeTrue())
			Expect(t0.Owner()).To(Equal(emu.Owner(1)))
		})

		It("should fail a second lock", func() {
			Expect(t0.Lock(1)).To(Succeed())

			err := t0.Lock(2)

			var violation *emu.HazardViolationError
			Expect(errors.As(err, &violation)).To(BeTrue())
			Expect(violation.Holder).To(Equal(emu.Owner(1)))
			Expect(t0.Owner()).To(Equal(emu.Owner(1)))
		})

		It("should fail to unlock an unlocked register", func() {
			var violation *emu.HazardViolationError
			Expect(errors.As(t0.Unlock(1), &violation)).To(BeTrue())
		})

		It("should fail to unlock another owner's lock", func() {
			Expect(t0.Lock(1)).To(Succeed())
			Expect(t0.Unlock(2)).ToNot(Succeed())
			Expect(t0.Locked()).To(BeTrue())
		})

		It("should fail to commit without the lock", func() {
			Expect(t0.CommitAndUnlock(1, 5)).ToNot(Succeed())
			Expect(t0.Committed()).To(BeZero())
		})

		It("should read a forwarded value before commit", func() {
			Expect(t0.Lock(1)).To(Succeed())
			Expect(t0.Forward(1, 42)).To(Succeed())

			Expect(t0.Read()).To(Equal(uint32(42)))
			Expect(t0.Committed()).To(BeZero())

			Expect(t0.CommitAndUnlock(1, 42)).To(Succeed())
			Expect(t0.Locked()).To(BeFalse())
			Expect(t0.Forwarded()).To(BeFalse())
			Expect(t0.Read()).To(Equal(uint32(42)))
		})

		It("should drop a forwarded value on unlock", func() {
			t0.Set(7)
			Expect(t0.Lock(1)).To(Succeed())
			Expect(t0.Forward(1, 9)).To(Succeed())
			Expect(t0.Unlock(1)).To(Succeed())

			Expect(t0.Read()).To(Equal(uint32(7)))
		})

		It("should release everything an owner holds", func() {
			Expect(rf.Reg(emu.GPR(8)).Lock(3)).To(Succeed())
			Expect(rf.Reg(emu.HI).Lock(3)).To(Succeed())
			Expect(rf.Reg(emu.PC).Lock(4)).To(Succeed())

			Expect(rf.Release(3)).To(Equal(2))
			Expect(rf.Locked()).To(ConsistOf(emu.PC))

			rf.ForceUnlockAll()
			Expect(rf.Locked()).To(BeEmpty())
		})
	})

	It("should hardwire $zero", func() {
		zero := rf.Reg(emu.GPR(0))

		zero.Set(5)
		Expect(zero.Lock(1)).To(Succeed())
		Expect(zero.Lock(2)).To(Succeed())
		Expect(zero.CommitAndUnlock(1, 9)).To(Succeed())
		Expect(zero.Read()).To(BeZero())
		Expect(rf.Locked()).To(BeEmpty())
	})

	It("should keep condition flags after the float registers", func() {
		Expect(emu.FCC(0)).To(Equal(emu.FPR(32)))
		Expect(emu.FCC(7).String()).To(Equal("$fcc7"))
		rf.Reg(emu.FCC(7)).Set(1)
		Expect(rf.Snapshot().FPR[39]).To(Equal(uint32(1)))
	})

	It("should store doubles in even-odd pairs", func() {
		rf.WriteFloat64(2, 1.5)

		lo, hi := emu.SplitFloat64(1.5)
		Expect(rf.Reg(emu.FPR(2)).Read()).To(Equal(lo))
		Expect(rf.Reg(emu.FPR(3)).Read()).To(Equal(hi))
		Expect(rf.ReadFloat64(2)).To(Equal(1.5))
	})

	It("should panic on an odd double register", func() {
		Expect(func() { rf.ReadFloat64(31) }).To(Panic())
		Expect(func() { rf.WriteFloat64(31, 1) }).To(Panic())
		Expect(func() { rf.WriteFloat64(3, 1) }).To(Panic())
		Expect(func() { rf.ReadFloat32(32) }).To(Panic())
		Expect(rf.Reg(emu.FCC(0)).Read()).To(BeZero())
		Expect(rf.Reg(emu.FPR(3)).Read()).To(BeZero())
	})

	It("should snapshot, diff and restore committed state", func() {
		rf.WriteGPR(8, 1)
		rf.SetPC(0x400000)
		before := rf.Snapshot()

		rf.WriteGPR(8, 2)
		Expect(rf.Snapshot()).ToNot(Equal(before))
		Expect(rf.Snapshot().Diff(before)).To(HaveLen(1))

		rf.Restore(before)
		Expect(rf.Snapshot()).To(Equal(before))
	})

	It("should panic on an invalid register", func() {
		Expect(func() { rf.Reg(emu.FPR(40)) }).To(Panic())
	})
})
