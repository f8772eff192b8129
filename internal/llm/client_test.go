package llm

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockModel is a mock implementation of Model that replays scripted results
type mockModel struct {
	responses []string
	errs      []error
	calls     int
	requests  []Request
	deadlines []bool
	block     bool
}

func (m *mockModel) Name() string {
	return "mock/test"
}

func (m *mockModel) Generate(ctx context.Context, req Request) (string, error) {
	i := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	_, hasDeadline := ctx.Deadline()
	m.deadlines = append(m.deadlines, hasDeadline)

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (m *mockModel) Close() error {
	return nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		Multiplier:     2,
		AttemptTimeout: time.Second,
	}
}

var _ = Describe("Client", func() {
	var (
		model  *mockModel
		client *Client
		ctx    context.Context
	)

	BeforeEach(func() {
		model = &mockModel{}
		client = NewClient(model, WithRetryPolicy(fastPolicy()))
		ctx = context.Background()
	})

	Describe("Extract", func() {
		When("every attempt fails", func() {
			BeforeEach(func() {
				failure := errors.New("503 service unavailable")
				model.errs = []error{failure, failure, failure, failure}
			})

			It("tries exactly three times and reports the model unavailable", func() {
				_, err := client.Extract(ctx, "prompt", nil)

				Expect(model.calls).To(Equal(3))
				Expect(err).To(MatchError(ErrModelUnavailable))
				Expect(err.Error()).To(ContainSubstring("503 service unavailable"))
			})
		})

		When("the first attempt succeeds", func() {
			BeforeEach(func() {
				model.responses = []string{`{"invoice_number":"A1"}`}
			})

			It("does not retry", func() {
				text, err := client.Extract(ctx, "prompt", nil)

				Expect(err).NotTo(HaveOccurred())
				Expect(text).To(Equal(`{"invoice_number":"A1"}`))
				Expect(model.calls).To(Equal(1))
			})
		})

		When("a later attempt succeeds", func() {
			BeforeEach(func() {
				model.errs = []error{errors.New("timeout")}
				model.responses = []string{"", "ok"}
			})

			It("stops at the first success", func() {
				text, err := client.Extract(ctx, "prompt", nil)

				Expect(err).NotTo(HaveOccurred())
				Expect(text).To(Equal("ok"))
				Expect(model.calls).To(Equal(2))
			})
		})

		It("returns a blank reply without retrying", func() {
			model.responses = []string{"  ", "ok"}

			text, err := client.Extract(ctx, "prompt", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("  "))
			Expect(model.calls).To(Equal(1))
		})

		It("retries when the provider returns no reply at all", func() {
			model.errs = []error{ErrEmptyResponse}
			model.responses = []string{"", "ok"}

			text, err := client.Extract(ctx, "prompt", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("ok"))
			Expect(model.calls).To(Equal(2))
		})

		It("passes prompt, image and temperature to the model", func() {
			model.responses = []string{"ok"}
			client = NewClient(model, WithRetryPolicy(fastPolicy()), WithTemperature(0.3))
			img := &Image{Ext: "png", Data: []byte("png")}

			_, err := client.Extract(ctx, "read this", img)

			Expect(err).NotTo(HaveOccurred())
			Expect(model.requests[0].Prompt).To(Equal("read this"))
			Expect(model.requests[0].Image).To(Equal(img))
			Expect(model.requests[0].Temperature).To(Equal(0.3))
		})

		It("defaults to a low temperature", func() {
			model.responses = []string{"ok"}

			_, err := client.Extract(ctx, "p", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(model.requests[0].Temperature).To(Equal(0.1))
		})

		It("runs every attempt under a deadline", func() {
			model.responses = []string{"ok"}

			_, err := client.Extract(ctx, "p", nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(model.deadlines).To(Equal([]bool{true}))
		})

		It("gives up on a hung attempt after the attempt timeout", func() {
			model.block = true
			policy := fastPolicy()
			policy.AttemptTimeout = 5 * time.Millisecond
			client = NewClient(model, WithRetryPolicy(policy))

			_, err := client.Extract(ctx, "p", nil)

			Expect(err).To(MatchError(ErrModelUnavailable))
			Expect(model.calls).To(Equal(3))
		})

		It("stops immediately when the caller cancels", func() {
			model.block = true
			cancelled, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
			defer cancel()
			policy := fastPolicy()
			policy.AttemptTimeout = time.Minute
			client = NewClient(model, WithRetryPolicy(policy))

			_, err := client.Extract(cancelled, "p", nil)

			Expect(err).To(MatchError(ErrModelUnavailable))
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(model.calls).To(Equal(1))
		})

		It("honours a rate limit", func() {
			model.responses = []string{"ok"}
			client = NewClient(model, WithRetryPolicy(fastPolicy()), WithRateLimit(100))

			_, err := client.Extract(ctx, "p", nil)

			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("WithRetryPolicy", func() {
		It("always makes at least one attempt", func() {
			model.errs = []error{errors.New("down")}
			policy := fastPolicy()
			policy.MaxAttempts = 0
			client = NewClient(model, WithRetryPolicy(policy))

			_, err := client.Extract(ctx, "p", nil)

			Expect(err).To(HaveOccurred())
			Expect(model.calls).To(Equal(1))
		})
	})
})

var _ = Describe("Image", func() {
	DescribeTable("MIMEType",
		func(ext, expected string) {
			Expect(MIMEType(ext)).To(Equal(expected))
		},
		Entry("jpg maps to jpeg", "jpg", "image/jpeg"),
		Entry("jpeg", "jpeg", "image/jpeg"),
		Entry("png", "png", "image/png"),
		Entry("upper case with dot", ".WEBP", "image/webp"),
		Entry("tiff", "tiff", "image/tiff"),
	)

	It("builds a base64 data URL", func() {
		img := &Image{Ext: "jpg", Data: []byte("hi")}
		Expect(img.DataURL()).To(Equal("data:image/jpeg;base64,aGk="))
	})
})

var _ = Describe("New", func() {
	It("builds the openai provider", func() {
		model, err := New(context.Background(), "openai", "sk-test", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(model.Name()).To(Equal("openai/gpt-4o-mini"))
	})

	It("builds the ollama provider", func() {
		model, err := New(context.Background(), "ollama", "", "", "llava")
		Expect(err).NotTo(HaveOccurred())
		Expect(model.Name()).To(Equal("ollama/llava"))
	})

	It("requires a gemini key", func() {
		_, err := New(context.Background(), "gemini", "", "", "")
		Expect(err).To(MatchError(ContainSubstring("api key")))
	})

	It("rejects unknown providers", func() {
		_, err := New(context.Background(), "bard", "", "", "")
		Expect(err).To(MatchError(ContainSubstring("unknown model provider")))
	})
})
