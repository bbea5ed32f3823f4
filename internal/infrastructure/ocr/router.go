// Package ocr turns stored invoice documents into raw text.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// Engine recognizes text in a single image
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img []byte) (string, error)
}

// document is the subset of a go-fitz document the router reads
type document interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	Image(pageNumber int) (*image.RGBA, error)
	Close() error
}

type openFunc func(path string) (document, error)

func openFitz(path string) (document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Options tune the router
type Options struct {
	// Preprocess enhances images before OCR
	Preprocess bool
	// Timeout bounds one ExtractText call; zero means no limit
	Timeout time.Duration
	// MaxOCRPages caps how many scanned PDF pages go through OCR
	MaxOCRPages int
}

// Router picks a text source by file extension: PDFs use their text layer and
// fall back to OCR of rendered pages, images go straight to the OCR engine.
type Router struct {
	engine  Engine
	opts    Options
	openPDF openFunc
	logger  *zap.Logger
}

// NewRouter creates a Router. engine may be nil, which disables OCR.
func NewRouter(engine Engine, opts Options, logger *zap.Logger) *Router {
	if opts.MaxOCRPages <= 0 {
		opts.MaxOCRPages = 3
	}
	return &Router{
		engine:  engine,
		opts:    opts,
		openPDF: openFitz,
		logger:  logger,
	}
}

// ExtractText implements port.TextSource
func (r *Router) ExtractText(ctx context.Context, path string) (string, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return r.pdfText(ctx, path)
	case ".png", ".jpg", ".jpeg":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read image: %w", err)
		}
		return r.recognize(ctx, data)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", workflow.ErrInvalidPayload, ext)
	}
}

func (r *Router) pdfText(ctx context.Context, path string) (string, error) {
	doc, err := r.openPDF(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %v", workflow.ErrInvalidPayload, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	pages := make([]string, 0, pageCount)
	for n := 0; n < pageCount; n++ {
		text, err := doc.Text(n)
		if err != nil {
			r.logger.Warn("Failed to read page text", zap.String("path", path), zap.Int("page", n), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) > 0 {
		return strings.Join(pages, "\n"), nil
	}

	// scanned document: no text layer
	if r.engine == nil {
		r.logger.Warn("PDF has no text layer and OCR is disabled", zap.String("path", path))
		return "", nil
	}

	limit := min(pageCount, r.opts.MaxOCRPages)
	for n := 0; n < limit; n++ {
		img, err := doc.Image(n)
		if err != nil {
			return "", fmt.Errorf("failed to render page %d: %w", n, err)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return "", fmt.Errorf("failed to encode page %d: %w", n, err)
		}
		text, err := r.recognize(ctx, buf.Bytes())
		if err != nil {
			return "", err
		}
		pages = append(pages, text)
	}
	r.logger.Info("OCR applied to scanned PDF", zap.String("path", path), zap.Int("pages", len(pages)))
	return strings.Join(pages, "\n"), nil
}

func (r *Router) recognize(ctx context.Context, data []byte) (string, error) {
	if r.engine == nil {
		return "", fmt.Errorf("%w: image uploads need an OCR provider", workflow.ErrInvalidPayload)
	}
	if r.opts.Preprocess {
		enhanced, err := Enhance(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", workflow.ErrInvalidPayload, err)
		}
		data = enhanced
	}
	text, err := r.engine.Recognize(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s ocr: %w", r.engine.Name(), err)
	}
	return text, nil
}

var _ port.TextSource = (*Router)(nil)
