package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/scrubber/internal/sequence"
)

var ErrNotFound = errors.New("frame not found")

// Loader decodes the image behind a frame locator.
type Loader interface {
	Load(ctx context.Context, locator string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, locator string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, locator string) (image.Image, error) {
	return f(ctx, locator)
}

// PDFLoader serves frames from one multi-page PDF per sequence
// (root/Sequence1.pdf, root/Sequence2.pdf); page N is frame N.
type PDFLoader struct {
	root string
	dpi  int

	mu    sync.Mutex
	pages map[sequence.Sequence]int
}

func NewPDFLoader(root string, dpi int) (*PDFLoader, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("pdf root %s is not a directory", root)
	}
	if dpi <= 0 {
		dpi = 72
	}
	return &PDFLoader{root: root, dpi: dpi, pages: make(map[sequence.Sequence]int)}, nil
}

func (p *PDFLoader) path(seq sequence.Sequence) string {
	return filepath.Join(p.root, seq.String()+".pdf")
}

// PageCount returns the page count of the sequence document.
func (p *PDFLoader) PageCount(seq sequence.Sequence) (int, error) {
	p.mu.Lock()
	n, ok := p.pages[seq]
	p.mu.Unlock()
	if ok {
		return n, nil
	}

	doc, err := fitz.New(p.path(seq))
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	n = doc.NumPage()

	p.mu.Lock()
	p.pages[seq] = n
	p.mu.Unlock()
	return n, nil
}

func (p *PDFLoader) Load(ctx context.Context, locator string) (image.Image, error) {
	key, err := sequence.ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := p.PageCount(key.Sequence)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.path(key.Sequence), err)
	}
	if key.Index >= n {
		return nil, fmt.Errorf("%w: %s (document has %d pages)", ErrNotFound, locator, n)
	}

	// fitz documents are not safe for concurrent use, each load opens its own
	doc, err := fitz.New(p.path(key.Sequence))
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	img, err := doc.ImageDPI(key.Index, float64(p.dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", key.Index, err)
	}
	return img, nil
}
