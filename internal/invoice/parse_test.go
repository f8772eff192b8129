package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseResponse", func() {
	It("isolates the object from surrounding prose", func() {
		fields, err := ParseResponse("Here is the result:\n{\"invoice_number\":\"A1\"}\nThanks")

		Expect(err).NotTo(HaveOccurred())
		Expect(fields).To(Equal(map[string]any{"invoice_number": "A1"}))
	})

	It("fails without braces", func() {
		_, err := ParseResponse("I could not read this invoice.")
		Expect(err).To(MatchError(ErrNoJSONObject))
	})

	It("fails when nothing between the braces parses", func() {
		_, err := ParseResponse("{not json}")
		Expect(err).To(MatchError(ErrNoJSONObject))
	})

	It("skips brace-delimited prose before the object", func() {
		fields, err := ParseResponse(`a {b} c {"x":1} d`)

		Expect(err).NotTo(HaveOccurred())
		Expect(fields).To(Equal(map[string]any{"x": 1.0}))
	})

	It("stops at the first complete object", func() {
		fields, err := ParseResponse(`{"a":1} and also {"b":2}`)

		Expect(err).NotTo(HaveOccurred())
		Expect(fields).To(Equal(map[string]any{"a": 1.0}))
	})

	It("keeps nested objects and arrays", func() {
		fields, err := ParseResponse("```json\n{\"line_items\":[{\"description\":\"Widget\",\"total\":5}],\"vendor\":{\"name\":\"Acme\"}}\n```")

		Expect(err).NotTo(HaveOccurred())
		Expect(fields["line_items"]).To(HaveLen(1))
		Expect(fields["vendor"]).To(HaveKeyWithValue("name", "Acme"))
	})

	It("ignores braces inside strings", func() {
		fields, err := ParseResponse(`{"vendor_name":"Curly } Braces {Ltd}","note":"say \"}\""}`)

		Expect(err).NotTo(HaveOccurred())
		Expect(fields["vendor_name"]).To(Equal("Curly } Braces {Ltd}"))
		Expect(fields["note"]).To(Equal(`say "}"`))
	})

	It("rejects top-level arrays", func() {
		_, err := ParseResponse(`[1, 2, 3]`)
		Expect(err).To(MatchError(ErrNoJSONObject))
	})
})

var _ = Describe("matchingBrace", func() {
	It("returns -1 for an unterminated object", func() {
		Expect(matchingBrace(`{"a":{"b":1}`, 0)).To(Equal(-1))
	})

	It("finds the closing brace of a nested object", func() {
		Expect(matchingBrace(`x{"a":{"b":1}}y`, 1)).To(Equal(13))
	})
})
