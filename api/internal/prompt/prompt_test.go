package prompt_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"img2tex/api/internal/prompt"
)

var _ = Describe("Catalog", func() {
	var catalog prompt.Catalog

	BeforeEach(func() {
		var err error
		catalog, err = prompt.Builtin()
		Expect(err).NotTo(HaveOccurred())
	})

	It("ships the three deployment profiles", func() {
		Expect(catalog.Names()).To(Equal([]string{"default", "free", "precise"}))
	})

	DescribeTable("every profile asks for the LaTeX contract",
		func(name string) {
			p, err := catalog.Resolve(name, prompt.Overrides{})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal(name))
			Expect(p.SystemPrompt).To(ContainSubstring(`\[ ... \]`))
			Expect(p.SystemPrompt).To(ContainSubstring("aligned"))
			Expect(p.SystemPrompt).To(ContainSubstring(prompt.NoFormula))
			Expect(p.Temperature).To(BeNumerically("<=", 0.1))
		},
		Entry("default", "default"),
		Entry("precise", "precise"),
		Entry("free", "free"),
	)

	It("keeps the original model pair on the default profile", func() {
		p, err := catalog.Resolve("default", prompt.Overrides{})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.GuestModel).To(Equal("google/gemma-3-27b-it"))
		Expect(p.StandardModel).To(Equal("qwen/qwen2.5-vl-72b-instruct"))
		Expect(p.Temperature).To(Equal(0.01))
	})

	It("applies overrides", func() {
		p, err := catalog.Resolve("DEFAULT", prompt.Overrides{
			GuestModel:     "guest/m",
			StandardModel:  "std/m",
			TemperatureSet: true,
			Temperature:    0,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.GuestModel).To(Equal("guest/m"))
		Expect(p.StandardModel).To(Equal("std/m"))
		Expect(p.Temperature).To(BeZero())
	})

	It("rejects an unknown profile", func() {
		_, err := catalog.Resolve("nope", prompt.Overrides{})
		Expect(err).To(MatchError(ContainSubstring("unknown prompt profile")))
	})

	It("rejects profiles without models", func() {
		_, err := prompt.Parse([]byte("x:\n  system: hi\n"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects profiles without a prompt", func() {
		_, err := prompt.Parse([]byte("x:\n  guest_model: a\n  standard_model: b\n"))
		Expect(err).To(HaveOccurred())
	})
})
