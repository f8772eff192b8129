package scanning

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockRasterizer is a mock implementation of Rasterizer
type mockRasterizer struct {
	page  image.Image
	err   error
	calls int
	dpi   float64
}

func (m *mockRasterizer) FirstPage(data []byte, dpi float64) (image.Image, error) {
	m.calls++
	m.dpi = dpi
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func testPage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

var _ = Describe("Normalizer", func() {
	var (
		tmpDir     string
		rasterizer *mockRasterizer
		normalizer *Normalizer
		ctx        context.Context
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		workspace, err := NewWorkspaceWithDeps(tmpDir, &fixedIDGenerator{id: "id"}, &fixedTimeSource{now: time.Unix(0, 7)})
		Expect(err).NotTo(HaveOccurred())
		rasterizer = &mockRasterizer{page: testPage()}
		normalizer = NewNormalizer(workspace, rasterizer, 2)
		ctx = context.Background()
	})

	scratchFiles := func() []string {
		entries, err := os.ReadDir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names
	}

	When("the document is an image", func() {
		It("passes the bytes through unchanged", func() {
			img, release, err := normalizer.Normalize(ctx, NewDocument("photo.JPG", []byte("jpeg-bytes")))
			Expect(err).NotTo(HaveOccurred())
			defer release()

			Expect(img.Ext).To(Equal("jpg"))
			Expect(img.Data).To(Equal([]byte("jpeg-bytes")))
			Expect(img.Converted).To(BeFalse())
			Expect(img.Path).To(Equal(filepath.Join(tmpDir, "7_id_photo.jpg")))
			Expect(rasterizer.calls).To(BeZero())
		})

		It("removes the stored upload on release", func() {
			_, release, err := normalizer.Normalize(ctx, NewDocument("photo.png", []byte("png")))
			Expect(err).NotTo(HaveOccurred())
			Expect(scratchFiles()).To(HaveLen(1))

			release()
			Expect(scratchFiles()).To(BeEmpty())
		})
	})

	When("the document is a PDF", func() {
		It("renders the first page at twice the base resolution", func() {
			img, release, err := normalizer.Normalize(ctx, NewDocument("invoice.pdf", []byte("%PDF-1.4")))
			Expect(err).NotTo(HaveOccurred())
			defer release()

			Expect(rasterizer.dpi).To(Equal(144.0))
			Expect(img.Ext).To(Equal("png"))
			Expect(img.Converted).To(BeTrue())
			Expect(img.Path).To(Equal(filepath.Join(tmpDir, "7_id_invoice_converted.png")))
			Expect(img.Data[:4]).To(Equal([]byte("\x89PNG")))
		})

		It("removes the upload and the converted page on release", func() {
			_, release, err := normalizer.Normalize(ctx, NewDocument("invoice.pdf", []byte("%PDF-1.4")))
			Expect(err).NotTo(HaveOccurred())
			Expect(scratchFiles()).To(HaveLen(2))

			release()
			Expect(scratchFiles()).To(BeEmpty())
		})

		It("fails on a zero-page document and leaves nothing behind", func() {
			rasterizer.err = ErrNoPages

			img, release, err := normalizer.Normalize(ctx, NewDocument("empty.pdf", []byte("%PDF-1.4")))
			Expect(err).To(MatchError(ErrNoPages))
			Expect(img).To(BeNil())
			release()
			Expect(scratchFiles()).To(BeEmpty())
		})

		It("wraps rendering failures", func() {
			rasterizer.err = errors.New("corrupt xref")

			_, _, err := normalizer.Normalize(ctx, NewDocument("bad.pdf", []byte("junk")))
			Expect(err).To(MatchError(ContainSubstring("converting PDF to image")))
		})
	})

	It("rejects empty documents", func() {
		_, release, err := normalizer.Normalize(ctx, NewDocument("a.png", nil))
		Expect(err).To(MatchError(ErrEmptyDocument))
		release()
	})

	It("rejects unsupported extensions", func() {
		_, _, err := normalizer.Normalize(ctx, NewDocument("notes.txt", []byte("hi")))
		Expect(errors.Is(err, ErrUnsupportedFormat)).To(BeTrue())
	})

	It("stops when the context is done", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := normalizer.Normalize(cancelled, NewDocument("a.png", []byte("png")))
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("IsSupported", func() {
	It("accepts the allow-list in any case", func() {
		for _, ext := range strings.Split("png jpg JPEG .pdf bmp webp tiff heic heif", " ") {
			Expect(IsSupported(ext)).To(BeTrue(), ext)
		}
	})

	It("rejects anything else", func() {
		Expect(IsSupported("gif")).To(BeFalse())
		Expect(IsSupported("")).To(BeFalse())
	})
})

var _ = Describe("isHEICFormat", func() {
	It("detects the ftyp brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x00"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})
