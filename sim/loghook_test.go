package sim

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LogHookBase", func() {
	It("should fall back to the standard logger", func() {
		Expect(MakeLogHookBase(nil).Logger).To(BeIdenticalTo(log.Default()))
	})

	It("should write into the given logger", func() {
		buf := new(bytes.Buffer)
		base := MakeLogHookBase(log.New(buf, "", 0))

		base.Printf("tick %d", 3)

		Expect(buf.String()).To(Equal("tick 3\n"))
	})
})
