package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/scrubber/internal/sequence"
	"github.com/ivlev/scrubber/internal/source"
)

type mapFrames map[string]image.Image

func (m mapFrames) Ensure(ctx context.Context, locator string) (image.Image, error) {
	img, ok := m[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, locator)
	}
	if img == nil {
		return nil, errors.New("decode failed")
	}
	return img, nil
}

type fixedState sequence.PlaybackState

func (s fixedState) State() sequence.PlaybackState { return sequence.PlaybackState(s) }

func newTestApi(t *testing.T) *Api {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	frames := mapFrames{
		"/Sequence1/ezgif-frame-001.jpg": img,
		"/Sequence2/ezgif-frame-002.jpg": nil,
	}

	static := t.TempDir()
	os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0644)

	st := fixedState{Sequence: sequence.Second, FrameIndex: 239, Opacity: 1}
	return NewApi(frames, st, static)
}

func TestFrameRoutes(t *testing.T) {
	a := newTestApi(t)

	tests := []struct {
		path string
		want int
	}{
		{"/Sequence1/ezgif-frame-001.jpg", http.StatusOK},
		{"/Sequence1/ezgif-frame-005.jpg", http.StatusNotFound},
		{"/Sequence3/ezgif-frame-001.jpg", http.StatusNotFound},
		{"/Sequence1/ezgif-frame-999.jpg", http.StatusNotFound},
		{"/Sequence2/ezgif-frame-002.jpg", http.StatusBadGateway},
		{"/app.js", http.StatusOK},
		{"/missing.js", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestFrameIsJPEG(t *testing.T) {
	a := newTestApi(t)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Sequence1/ezgif-frame-001.jpg", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("unexpected content type %s", ct)
	}
	img, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
	r, _, _, _ := img.At(1, 1).RGBA()
	if r < 0xb000 {
		t.Errorf("unexpected pixel %v", img.At(1, 1))
	}
}

func TestStateRoute(t *testing.T) {
	a := newTestApi(t)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	var body struct {
		Sequence   int    `json:"sequence"`
		FrameIndex int    `json:"frameIndex"`
		Locator    string `json:"locator"`
		Visible    bool   `json:"visible"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Sequence != 2 || body.FrameIndex != 239 || body.Locator != "/Sequence2/ezgif-frame-240.jpg" || !body.Visible {
		t.Errorf("unexpected state %+v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	a := newTestApi(t)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/Sequence1/ezgif-frame-001.jpg", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
