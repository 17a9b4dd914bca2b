// Package api serves frames at their locator paths plus the current playback state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ivlev/scrubber/internal/sequence"
	"github.com/ivlev/scrubber/internal/source"
)

// Frames resolves a locator to a decoded frame, loading it if needed.
type Frames interface {
	Ensure(ctx context.Context, locator string) (image.Image, error)
}

type StateSource interface {
	State() sequence.PlaybackState
}

type Api struct {
	frames Frames
	state  StateSource
	static string
	mux    *http.ServeMux
}

// NewApi builds the handler. state and static are optional; static is a
// directory served at / for everything that is not a frame.
func NewApi(frames Frames, state StateSource, static string) *Api {
	a := &Api{frames: frames, state: state, static: static, mux: http.NewServeMux()}
	a.mux.HandleFunc("/state", a.handleState)
	a.mux.HandleFunc("/", a.handleRoot)
	return a
}

func (a *Api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *Api) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/Sequence") {
		a.handleFrame(w, r)
		return
	}
	if a.static == "" {
		http.NotFound(w, r)
		return
	}
	http.FileServer(http.Dir(a.static)).ServeHTTP(w, r)
}

func (a *Api) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key, err := sequence.ParseLocator(r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	img, err := a.frames.Ensure(r.Context(), key.Locator())
	switch {
	case errors.Is(err, source.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		log.Printf("[!] frame %s: %v", key.Locator(), err)
		http.Error(w, "frame unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if r.Method == http.MethodHead {
		return
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 90}); err != nil {
		log.Printf("[!] encode %s: %v", key.Locator(), err)
	}
}

func (a *Api) handleState(w http.ResponseWriter, r *http.Request) {
	if a.state == nil {
		http.NotFound(w, r)
		return
	}
	st := a.state.State()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		sequence.PlaybackState
		Locator string `json:"locator"`
		Visible bool   `json:"visible"`
	}{st, st.Key().Locator(), st.Visible()})
}

// Serve listens on addr until ctx is done.
func (a *Api) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("[*] Listening on %s...", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
