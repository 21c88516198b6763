package invoice

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Flag", func() {
	Describe("MarshalJSON", func() {
		It("should encode an unevaluated flag as null", func() {
			data, err := json.Marshal(Flags{DuplicateInvoice: FlagNotEvaluated})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"duplicate_invoice":null`))
		})

		It("should encode evaluated flags as booleans", func() {
			data, err := json.Marshal(Flags{DuplicateInvoice: FlagTrue, UnusualAmounts: FlagFalse})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"duplicate_invoice":true`))
			Expect(string(data)).To(ContainSubstring(`"unusual_amounts":false`))
		})
	})

	Describe("UnmarshalJSON", func() {
		var (
			input string
			flags Flags
			err   error
		)

		JustBeforeEach(func() {
			err = json.Unmarshal([]byte(input), &flags)
		})

		When("the flags were short-circuited", func() {
			BeforeEach(func() {
				input = `{"incorrect_vendor_info":true,"duplicate_invoice":null,"unusual_amounts":null,"itemized_invoice":false}`
			})

			It("should restore the unevaluated state", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(flags.DuplicateInvoice).To(Equal(FlagNotEvaluated))
				Expect(flags.UnusualAmounts).To(Equal(FlagNotEvaluated))
			})
		})

		When("the flags were evaluated", func() {
			BeforeEach(func() {
				input = `{"incorrect_vendor_info":false,"duplicate_invoice":true,"unusual_amounts":false,"itemized_invoice":true}`
			})

			It("should restore the boolean states", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(flags.DuplicateInvoice).To(Equal(FlagTrue))
				Expect(flags.UnusualAmounts).To(Equal(FlagFalse))
				Expect(flags.ItemizedInvoice).To(BeTrue())
			})
		})

		When("the value is not a boolean", func() {
			BeforeEach(func() {
				input = `{"duplicate_invoice":"yes"}`
			})

			It("should return an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Evaluated", func() {
		It("should be false only for the unevaluated state", func() {
			Expect(FlagNotEvaluated.Evaluated()).To(BeFalse())
			Expect(FlagTrue.Evaluated()).To(BeTrue())
			Expect(FlagFalse.Evaluated()).To(BeTrue())
		})
	})
})
