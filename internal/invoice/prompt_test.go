package invoice

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

var _ = Describe("PromptBuilder", func() {
	Describe("Build", func() {
		It("replaces the placeholder with the text exactly", func() {
			b := NewPromptBuilder("Read:\n<<OCR_TEXT>>\nDone")
			Expect(b.Build("Total {amount} 42")).To(Equal("Read:\nTotal {amount} 42\nDone"))
		})

		It("does not expand placeholders inside the text", func() {
			b := NewPromptBuilder("[<<OCR_TEXT>>]")
			Expect(b.Build("<<OCR_TEXT>>")).To(Equal("[<<OCR_TEXT>>]"))
		})
	})

	Describe("DefaultPrompt", func() {
		It("names every record field and asks for JSON only", func() {
			prompt := DefaultPrompt()
			for _, field := range []string{
				"invoice_number", "invoice_date", "due_date", "vendor_name", "vendor_address",
				"customer_name", "customer_address", "subtotal", "tax_amount", "tax_rate",
				"total_amount", "currency", "line_items",
			} {
				Expect(prompt).To(ContainSubstring(field))
			}
			Expect(prompt).To(ContainSubstring(Placeholder))
			Expect(prompt).To(ContainSubstring("Return only valid JSON."))
		})
	})

	Describe("LoadPromptBuilder", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("reads the template from disk", func() {
			path := filepath.Join(dir, "prompt.txt")
			Expect(os.WriteFile(path, []byte("custom <<OCR_TEXT>>"), 0644)).To(Succeed())

			b := LoadPromptBuilder(path, zerolog.Nop())

			Expect(b.Build("x")).To(Equal("custom x"))
		})

		It("falls back to the default when the file is missing", func() {
			b := LoadPromptBuilder(filepath.Join(dir, "missing.txt"), zerolog.Nop())

			Expect(b.Build("TEXT")).To(Equal(NewPromptBuilder(DefaultPrompt()).Build("TEXT")))
		})

		It("falls back to the default when the path is a directory", func() {
			b := LoadPromptBuilder(dir, zerolog.Nop())

			Expect(b.Build("TEXT")).To(ContainSubstring("OCR Text:\nTEXT"))
		})
	})
})
