package insts_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/insts"
)

var _ = Describe("Pseudo-instructions", func() {
	var set *insts.Set

	BeforeEach(func() {
		set = insts.NewDefaultSet()
	})

	It("should expand li into lui and ori", func() {
		out, err := set.Expand("li",
			[]insts.Operand{insts.Reg(8), insts.Imm(insts.ParamSigned32, 0x12345678)},
			insts.Origin{Line: 1})

		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(2))
		Expect(insts.Words(out)).To(Equal([]uint32{0x3C011234, 0x34285678}))
		Expect(out[0].Origin.Line).To(Equal(1))
		Expect(out[1].Origin.Line).To(Equal(1))
	})

	It("should always expand li to two instructions", func() {
		for _, v := range []int64{0, 1, 0xFFFF, -1, 0x7FFFFFFF, -0x80000000} {
			out, err := set.Expand("li",
				[]insts.Operand{insts.Reg(8), insts.Imm(insts.ParamSigned32, v)}, insts.Origin{})
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(HaveLen(2))
		}
	})

	It("should accept unsigned 32-bit values for li", func() {
		out, err := set.Expand("li",
			[]insts.Operand{insts.Reg(8), insts.Imm(insts.ParamUnsigned32, 0xFFFFFFFF)}, insts.Origin{})

		Expect(err).ToNot(HaveOccurred())
		Expect(insts.Words(out)).To(Equal([]uint32{0x3C01FFFF, 0x3428FFFF}))
	})

	It("should expand blt through slt and bne", func() {
		out, err := set.Expand("blt",
			[]insts.Operand{insts.Reg(8), insts.Reg(9), insts.Imm(insts.ParamSigned16, -2)}, insts.Origin{})

		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(2))
		Expect(out[0].Def.Op).To(Equal(insts.OpSLT))
		Expect(out[0].Rd()).To(Equal(insts.RegAT))
		Expect(out[1].Def.Op).To(Equal(insts.OpBNE))
		Expect(out[1].SImm()).To(Equal(int32(-2)))
	})

	It("should fail when a required definition is missing", func() {
		partial := insts.NewSet()
		for _, d := range insts.DefaultDefinitions() {
			if d.Op != insts.OpLUI {
				Expect(partial.Register(d)).To(Succeed())
			}
		}
		for _, p := range insts.DefaultPseudos() {
			Expect(partial.RegisterPseudo(p)).To(Succeed())
		}

		_, err := partial.Expand("li",
			[]insts.Operand{insts.Reg(8), insts.Imm(insts.ParamSigned32, 5)}, insts.Origin{})

		var missing *insts.MissingDependencyError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Pseudo).To(Equal("li"))
		Expect(missing.Op).To(Equal(insts.OpLUI))
	})

	It("should reject an expansion that emits the wrong count", func() {
		p := insts.NewPseudo("twice", nil, 2, func(b *insts.Builder, _ []insts.Operand) {
			b.Emit(insts.OpSLL, insts.Reg(0), insts.Reg(0), insts.Imm(insts.ParamUnsigned5, 0))
		})
		Expect(set.RegisterPseudo(p)).To(Succeed())

		_, err := set.Expand("twice", nil, insts.Origin{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Assemble", func() {
		It("should prefer a real definition and fall back to a pseudo", func() {
			out, err := set.Assemble([]insts.Statement{
				{Mnemonic: "addi", Operands: []insts.Operand{
					insts.Reg(8), insts.Reg(9), insts.Imm(insts.ParamSigned16, 42)}},
				{Mnemonic: "addi", Operands: []insts.Operand{
					insts.Reg(8), insts.Reg(9), insts.Imm(insts.ParamSigned32, 0x10000)}},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(HaveLen(4))
			Expect(out[0].Word).To(Equal(uint32(0x2128002A)))
			Expect(out[1].Def.Op).To(Equal(insts.OpLUI))
			Expect(out[3].Def.Op).To(Equal(insts.OpADD))
		})

		It("should not coerce a small 32-bit immediate into a real definition", func() {
			out, err := set.Assemble([]insts.Statement{
				{Mnemonic: "addi", Operands: []insts.Operand{
					insts.Reg(8), insts.Reg(9), insts.Imm(insts.ParamSigned32, 42)}},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(HaveLen(3))
			Expect(out[0].Def.Op).To(Equal(insts.OpLUI))
			Expect(out[1].Word & 0xFFFF).To(Equal(uint32(42)))
			Expect(out[2].Def.Op).To(Equal(insts.OpADD))
		})

		It("should widen an immediate into a pseudo slot", func() {
			out, err := set.Assemble([]insts.Statement{
				{Mnemonic: "b", Operands: []insts.Operand{insts.Imm(insts.ParamSigned32, -3)}},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0].Def.Op).To(Equal(insts.OpBEQ))
			Expect(out[0].SImm()).To(Equal(int32(-3)))
		})

		It("should keep going after a bad line and report each origin", func() {
			out, err := set.Assemble([]insts.Statement{
				{Mnemonic: "frob", Origin: insts.Origin{File: "a.s", Line: 1}},
				{Mnemonic: "nop", Origin: insts.Origin{File: "a.s", Line: 2}},
				{Mnemonic: "add", Operands: []insts.Operand{insts.Reg(1)}, Origin: insts.Origin{File: "a.s", Line: 3}},
			})

			Expect(out).To(HaveLen(1))
			var errorset insts.ErrorSet
			Expect(errors.As(err, &errorset)).To(BeTrue())
			Expect(errorset.Len()).To(Equal(2))
			Expect(errorset[0].Error()).To(ContainSubstring("a.s:1"))
			Expect(errorset[1].Error()).To(ContainSubstring("a.s:3"))

			var shape *insts.OperandShapeError
			Expect(errors.As(errorset[1], &shape)).To(BeTrue())
		})
	})
})
