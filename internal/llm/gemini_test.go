package llm

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockGenerator is a mock implementation of contentGenerator
type mockGenerator struct {
	resp        *genai.GenerateContentResponse
	err         error
	model       string
	temperature float32
	parts       []genai.Part
	closed      bool
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, temperature float32, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.model = model
	m.temperature = temperature
	m.parts = parts
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockGenerator) Close() error {
	m.closed = true
	return nil
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: parts}},
		},
	}
}

var _ = Describe("Gemini", func() {
	var (
		generator *mockGenerator
		model     *Gemini
	)

	BeforeEach(func() {
		generator = &mockGenerator{resp: textResponse(genai.Text(`{"invoice_number":`), genai.Text(`"A1"}`))}
		model = newGeminiWithGenerator(generator, "")
	})

	It("defaults the model name", func() {
		Expect(model.Name()).To(Equal("gemini/" + DefaultGeminiModel))
	})

	It("sends the image before the prompt at the requested temperature", func() {
		text, err := model.Generate(context.Background(), Request{
			Prompt:      "extract",
			Image:       &Image{Ext: "jpg", Data: []byte("jpeg")},
			Temperature: 0.1,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(`{"invoice_number":"A1"}`))
		Expect(generator.model).To(Equal(DefaultGeminiModel))
		Expect(generator.temperature).To(BeNumerically("~", 0.1, 0.0001))
		Expect(generator.parts).To(HaveLen(2))
		Expect(generator.parts[0]).To(Equal(genai.Blob{MIMEType: "image/jpeg", Data: []byte("jpeg")}))
		Expect(generator.parts[1]).To(Equal(genai.Text("extract")))
	})

	It("sends only the prompt without an image", func() {
		_, err := model.Generate(context.Background(), Request{Prompt: "extract"})

		Expect(err).NotTo(HaveOccurred())
		Expect(generator.parts).To(Equal([]genai.Part{genai.Text("extract")}))
	})

	It("reports a reply without candidates as empty", func() {
		generator.resp = &genai.GenerateContentResponse{}

		_, err := model.Generate(context.Background(), Request{Prompt: "extract"})

		Expect(err).To(MatchError(ErrEmptyResponse))
	})

	It("wraps API errors", func() {
		generator.err = errors.New("quota exceeded")

		_, err := model.Generate(context.Background(), Request{Prompt: "extract"})

		Expect(err).To(MatchError(ContainSubstring("quota exceeded")))
	})

	It("closes the client", func() {
		Expect(model.Close()).To(Succeed())
		Expect(generator.closed).To(BeTrue())
	})
})
