package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ivlev/scrubber/internal/sequence"
)

// DirLoader reads frames from a directory laid out like the asset tree:
// root/Sequence1/ezgif-frame-001.jpg and so on.
type DirLoader struct {
	root string
}

func NewDirLoader(root string) (*DirLoader, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("asset root %s is not a directory", root)
	}
	return &DirLoader{root: root}, nil
}

// Path returns the file backing a locator.
func (d *DirLoader) Path(locator string) (string, error) {
	if _, err := sequence.ParseLocator(locator); err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(locator)), nil
}

func (d *DirLoader) Load(ctx context.Context, locator string) (image.Image, error) {
	path, err := d.Path(locator)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", locator, err)
	}
	return img, nil
}
