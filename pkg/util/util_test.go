package util_test

import (
	"github.com/lawrencejones/csvsink/pkg/util"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Diff", func() {
	It("returns elements missing from the second slice", func() {
		Expect(util.Diff([]string{"c", "a", "b"}, []string{"a"})).To(Equal([]string{"c", "b"}))
	})

	Context("when nothing is missing", func() {
		It("returns an empty slice", func() {
			Expect(util.Diff([]string{"a"}, []string{"a", "b"})).To(BeEmpty())
		})
	})
})

var _ = Describe("Includes", func() {
	It("finds existing elements", func() {
		Expect(util.Includes([]string{"a", "b"}, "b")).To(BeTrue())
		Expect(util.Includes([]string{"a", "b"}, "c")).To(BeFalse())
		Expect(util.Includes(nil, "c")).To(BeFalse())
	})
})

var _ = Describe("SortedKeys", func() {
	It("orders keys lexically", func() {
		Expect(util.SortedKeys(map[string]string{"b": "1", "a": "2", "c": "3"})).To(Equal([]string{"a", "b", "c"}))
	})
})
