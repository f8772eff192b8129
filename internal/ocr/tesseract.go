package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zombor/invoice-extractor/internal/logger"
	"github.com/zombor/invoice-extractor/internal/scanning"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	log zerolog.Logger
}

// NewExecRunner creates an ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{log: logger.WithComponent("exec")}
}

// Run executes name with args, feeding stdin
func (r *ExecRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		r.log.Error().
			Err(err).
			Str("cmd", name).
			Str("args", strings.Join(args, " ")).
			Dur("duration", time.Since(start)).
			Str("stderr", truncate(errb.String(), 8<<10)).
			Msg("Command failed")
	} else {
		r.log.Debug().
			Str("cmd", name).
			Dur("duration", time.Since(start)).
			Int("stdout_bytes", out.Len()).
			Msg("Command finished")
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// tesseractLanguages maps ISO 639-1 codes to Tesseract traineddata names.
var tesseractLanguages = map[string]string{
	"en": "eng",
	"sv": "swe",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"nl": "nld",
	"da": "dan",
	"no": "nor",
	"fi": "fin",
	"pl": "pol",
	"pt": "por",
}

// TesseractLanguage converts ISO codes to a Tesseract -l argument, e.g. eng+swe.
// Codes without a mapping are passed through.
func TesseractLanguage(langs []string) string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if mapped, ok := tesseractLanguages[l]; ok {
			l = mapped
		}
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "+")
}

// Tesseract runs the local tesseract binary on the CPU
type Tesseract struct {
	runner      Runner
	binary      string
	languages   string
	tessdataDir string
}

// NewTesseract creates a Tesseract engine for the given ISO languages
func NewTesseract(runner Runner, binary string, languages []string, tessdataDir string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{
		runner:      runner,
		binary:      binary,
		languages:   TesseractLanguage(languages),
		tessdataDir: tessdataDir,
	}
}

// Name returns the engine name
func (t *Tesseract) Name() string {
	return "tesseract"
}

// Extract pipes the image to tesseract in TSV mode and groups words into paragraphs
func (t *Tesseract) Extract(ctx context.Context, img *scanning.Image) (Result, error) {
	// tesseract stdin stdout -l <langs> [--tessdata-dir <dir>] tsv
	args := []string{"stdin", "stdout", "-l", t.languages}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, bytes.NewReader(img.Data), t.binary, args...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: tesseract: %w: %s", ErrOCRFailed, err, strings.TrimSpace(string(errb)))
	}

	paragraphs, confidences := parseTSV(string(out))
	return newResult(t.Name(), paragraphs, confidences), nil
}

type paragraphKey struct {
	page, block, par int
}

// parseTSV groups level-5 (word) rows by page, block and paragraph in the
// order tesseract emits them, which is its reading order. Word confidences
// are returned scaled to 0..1; rows with conf -1 carry no word.
func parseTSV(tsv string) ([]string, []float64) {
	var (
		order       []paragraphKey
		words       = map[paragraphKey][]string{}
		confidences []float64
	)

	for i, line := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		// level page_num block_num par_num line_num word_num left top width height conf text
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || conf < 0 || text == "" {
			continue
		}

		page, _ := strconv.Atoi(cols[1])
		block, _ := strconv.Atoi(cols[2])
		par, _ := strconv.Atoi(cols[3])
		key := paragraphKey{page: page, block: block, par: par}

		if _, seen := words[key]; !seen {
			order = append(order, key)
		}
		words[key] = append(words[key], text)
		confidences = append(confidences, conf/100)
	}

	paragraphs := make([]string, 0, len(order))
	for _, key := range order {
		paragraphs = append(paragraphs, strings.Join(words[key], " "))
	}
	return paragraphs, confidences
}
