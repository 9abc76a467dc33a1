package options_test

import (
	"github.com/lawrencejones/csvsink/pkg/options"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveLineBreaks", func() {
	DescribeTable("resolves symbolic names",
		func(name string, expected string) {
			resolved := options.ResolveLineBreaks(options.String(name))
			Expect(resolved).NotTo(BeNil())
			Expect(*resolved).To(Equal(expected))

			Expect(*options.ResolveLineBreaks(resolved)).To(Equal(expected), "resolution should be idempotent")
		},
		Entry("unix", options.LineBreaksUnix, "\n"),
		Entry("mac", options.LineBreaksMac, "\r"),
		Entry("windows", options.LineBreaksWindows, "\r\n"),
		Entry("unicode", options.LineBreaksUnicode, "\u2028"),
		Entry("literal", "||", "||"),
	)

	It("resolves auto to nil", func() {
		Expect(options.ResolveLineBreaks(options.String(options.LineBreaksAuto))).To(BeNil())
	})

	It("leaves nil as nil", func() {
		Expect(options.ResolveLineBreaks(nil)).To(BeNil())
	})

	Describe("Options.Resolved", func() {
		It("resolves a copy, leaving the receiver symbolic", func() {
			opts := options.Options{LineBreaks: options.String(options.LineBreaksWindows)}

			resolved := opts.Resolved()

			Expect(*resolved.LineBreaks).To(Equal("\r\n"))
			Expect(*opts.LineBreaks).To(Equal(options.LineBreaksWindows))
		})
	})
})
