package system

import (
	"image"
	"sync"
)

// ImagePool recycles *image.RGBA buffers by size. Canvas backing stores and
// scaling scratch buffers are reallocated on every resize otherwise.
type ImagePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = NewImagePool()

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

// GetImage returns a buffer of rect's size from the shared pool. Its contents are undefined.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage hands a buffer back to the shared pool.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	size := rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[size]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(image.Rectangle{Max: size})
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	img.Rect = rect
	return img
}

func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Empty() {
		return
	}
	size := img.Rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
