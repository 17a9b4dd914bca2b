// Package engine drives a scrubber through a scroll script, either offline
// into a video file or live against the wall clock.
package engine

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/scrubber/internal/config"
	"github.com/ivlev/scrubber/internal/easing"
	"github.com/ivlev/scrubber/internal/effects"
	"github.com/ivlev/scrubber/internal/script"
	"github.com/ivlev/scrubber/internal/scrubber"
	"github.com/ivlev/scrubber/internal/sequence"
	"github.com/ivlev/scrubber/internal/source"
	"github.com/ivlev/scrubber/internal/surface"
	"github.com/ivlev/scrubber/internal/system"
	"github.com/ivlev/scrubber/internal/video"
)

// RecorderFactory opens the output stream for a walkthrough.
type RecorderFactory func(ctx context.Context, path string, p video.Params) (video.Recorder, error)

func FFmpegRecorder(ctx context.Context, path string, p video.Params) (video.Recorder, error) {
	return video.NewFFmpegRecorder(ctx, path, p)
}

type WalkthroughProject struct {
	Config      *config.Config
	Loader      source.Loader
	Observer    scrubber.StateObserver
	NewRecorder RecorderFactory
	Logger      *log.Logger
	// BuildVersion is stamped into benchmark.log.
	BuildVersion string
}

func NewWalkthroughProject(cfg *config.Config, loader source.Loader) *WalkthroughProject {
	return &WalkthroughProject{
		Config:      cfg,
		Loader:      loader,
		NewRecorder: FFmpegRecorder,
		Logger:      log.Default(),
	}
}

// Report summarises one run.
type Report struct {
	Frames   int
	Duration float64 // script seconds
	Elapsed  time.Duration
	Misses   int
	Final    sequence.PlaybackState
	Cache    struct{ Loads, Failures int64 }
	Process  system.Stats
}

// EffectiveFPS is frames produced per wall-clock second.
func (r Report) EffectiveFPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

func (p *WalkthroughProject) viewport() surface.Viewport {
	v := p.Config.Viewport
	return surface.Viewport{Width: v.Width, Height: v.Height, DevicePixelRatio: v.DevicePixelRatio}
}

// options turns the render config into scrubber options.
func (p *WalkthroughProject) options(extra ...scrubber.Option) ([]scrubber.Option, error) {
	bg, err := colorful.Hex(p.Config.Render.Background)
	if err != nil {
		return nil, fmt.Errorf("render.background: %w", err)
	}
	falloff, err := easing.Lookup(p.Config.Render.VignetteFalloff)
	if err != nil {
		return nil, fmt.Errorf("render.vignette_falloff: %w", err)
	}
	overlay, err := effects.New(p.Config.Render.Effects, falloff)
	if err != nil {
		return nil, fmt.Errorf("render.effects: %w", err)
	}

	opts := []scrubber.Option{
		scrubber.WithLogger(p.Logger),
		scrubber.WithFPS(p.Config.Render.FPS),
		scrubber.WithBackground(bg),
		scrubber.WithEffect(overlay),
		scrubber.WithMaxConcurrentLoads(p.Config.Loader.MaxConcurrent),
	}
	if p.Observer != nil {
		opts = append(opts, scrubber.WithObserver(p.Observer))
	}
	return append(opts, extra...), nil
}

// offline is a mounted scrubber stepped by hand: the live loop is stopped and
// frames reach the sink only during capture.
type offline struct {
	s       *scrubber.Scrubber
	canvas  *surface.RGBACanvas
	clock   *sequence.ManualClock
	capture atomic.Bool
}

func (p *WalkthroughProject) mountOffline(ctx context.Context, sink func(*image.RGBA, sequence.PlaybackState)) (*offline, error) {
	o := &offline{
		canvas: surface.NewRGBACanvas(),
		clock:  sequence.NewManualClock(time.Unix(0, 0)),
	}
	opts, err := p.options(
		scrubber.WithClock(o.clock),
		scrubber.WithFrameSink(func(frame *image.RGBA, st sequence.PlaybackState) {
			if o.capture.Load() {
				sink(frame, st)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	o.s = scrubber.New(p.Loader, o.canvas, opts...)
	o.s.Mount(ctx, p.viewport())
	o.s.Loop().Stop()

	if err := o.s.Cache().Warm(ctx, sequence.First, sequence.PreloadStart, sequence.PreloadEnd); err != nil {
		p.Logger.Printf("[!] Warm-up incomplete: %v", err)
	}
	return o, nil
}

// step moves to progress, waits for the frame under the playhead and paints it.
func (o *offline) step(ctx context.Context, progress float64, vh float64, dt time.Duration) bool {
	o.clock.Advance(dt)
	g := sequence.GeometryForProgress(progress, vh)
	o.s.HandleScroll(&g)

	st := o.s.State()
	_, err := o.s.Cache().Ensure(ctx, st.Key().Locator())

	o.capture.Store(true)
	o.s.Paint()
	o.capture.Store(false)
	return err == nil
}

// Record renders the script frame by frame at the configured FPS into path.
func (p *WalkthroughProject) Record(ctx context.Context, sc *script.Script, path string) (Report, error) {
	var rep Report
	start := time.Now()

	fps := p.Config.Render.FPS
	vp := p.viewport()
	w, h := vp.Backing()

	encoder := p.Config.Output.VideoEncoder
	if encoder == "" {
		encoder = system.GetBestH264Encoder()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return rep, err
	}
	rec, err := p.NewRecorder(ctx, path, video.Params{
		Width:   w,
		Height:  h,
		FPS:     fps,
		Encoder: encoder,
		Quality: p.Config.Output.Quality,
	})
	if err != nil {
		return rep, err
	}

	var writeErr error
	o, err := p.mountOffline(ctx, func(frame *image.RGBA, st sequence.PlaybackState) {
		if writeErr == nil {
			writeErr = rec.WriteFrame(frame)
		}
	})
	if err != nil {
		rec.Close()
		return rep, err
	}
	defer o.s.Unmount()

	rep.Duration = sc.Duration()
	total := int(math.Ceil(rep.Duration*float64(fps))) + 1
	dt := time.Second / time.Duration(fps)

	p.Logger.Println("--- [SCRUBBER: WALKTHROUGH] ---")
	p.Logger.Printf("[*] Script: %s | Duration: %.2fs | Frames: %d", sc.Name, rep.Duration, total)
	p.Logger.Printf("[*] Viewport: %dx%d @ %.2gx | Output: %dx%d @ %d FPS | Encoder: %s", vp.Width, vp.Height, vp.DPR(), w, h, fps, encoder)
	p.Logger.Println("-----------------------------")

	var applied script.Resize
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			rec.Close()
			return rep, err
		}
		t := float64(i) / float64(fps)

		if r, ok := sc.ResizeAt(t); ok && r != applied {
			applied = r
			vp = r.Viewport(vp)
			o.s.HandleResize(vp)
		}

		if !o.step(ctx, sc.ProgressAt(t), float64(vp.Height), dt) {
			rep.Misses++
		}
		if writeErr != nil {
			rec.Close()
			return rep, writeErr
		}
		rep.Frames++

		if (i+1)%fps == 0 {
			p.Logger.Printf("[>] Ready: %d/%d", i+1, total)
		}
	}

	if err := rec.Close(); err != nil {
		return rep, err
	}

	p.finish(&rep, o.s, start)
	p.Logger.Printf("[+++] Success! Video saved: %s", path)
	return rep, nil
}

// Play runs the script in real time against a live render loop.
func (p *WalkthroughProject) Play(ctx context.Context, sc *script.Script) (Report, error) {
	var rep Report
	start := time.Now()

	var frames atomic.Int64
	opts, err := p.options(scrubber.WithFrameSink(func(*image.RGBA, sequence.PlaybackState) {
		frames.Add(1)
	}))
	if err != nil {
		return rep, err
	}

	vp := p.viewport()
	s := scrubber.New(p.Loader, surface.NewRGBACanvas(), opts...)
	s.Mount(ctx, vp)
	defer s.Unmount()

	player := script.NewPlayer(sc, vp, 2*p.Config.Render.FPS)
	detach := s.Subscribe(player)
	defer detach()

	p.Logger.Printf("[*] Playing %s (%.2fs)...", sc.Name, sc.Duration())
	if err := player.Run(ctx); err != nil {
		return rep, err
	}
	// one more tick so the final state is on screen
	select {
	case <-time.After(s.Loop().Interval()):
	case <-ctx.Done():
		return rep, ctx.Err()
	}

	rep.Duration = sc.Duration()
	rep.Frames = int(frames.Load())
	rep.Misses = int(s.Loop().Misses())
	p.finish(&rep, s, start)
	return rep, nil
}

// Snapshot paints the state at progress and writes it as a PNG.
func (p *WalkthroughProject) Snapshot(ctx context.Context, progress float64, path string) (sequence.PlaybackState, error) {
	var shot *image.RGBA
	var shotState sequence.PlaybackState
	o, err := p.mountOffline(ctx, func(frame *image.RGBA, st sequence.PlaybackState) {
		shot = image.NewRGBA(frame.Bounds())
		copy(shot.Pix, frame.Pix)
		shotState = st
	})
	if err != nil {
		return shotState, err
	}
	defer o.s.Unmount()

	if !o.step(ctx, progress, float64(p.Config.Viewport.Height), sequence.ScrollThrottle+time.Millisecond) {
		p.Logger.Printf("[!] Frame %s not available, snapshot shows the background only", o.s.State().Key().Locator())
	}
	if shot == nil {
		return shotState, fmt.Errorf("nothing painted")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return shotState, err
	}
	if err := video.WriteSnapshot(shot, path); err != nil {
		return shotState, err
	}
	p.Logger.Printf("[+++] Snapshot saved: %s (%s frame %d)", path, shotState.Sequence, shotState.FrameIndex+1)
	return shotState, nil
}

func (p *WalkthroughProject) finish(rep *Report, s *scrubber.Scrubber, start time.Time) {
	rep.Elapsed = time.Since(start)
	rep.Final = s.State()
	cs := s.Cache().Stats()
	rep.Cache.Loads, rep.Cache.Failures = cs.Loads, cs.Failures
	if st, err := system.ProcessStats(); err == nil {
		rep.Process = st
	}

	if !p.Config.Output.ShowStats {
		return
	}
	p.Logger.Print(p.formatReport(*rep))
	if err := p.appendBenchmark(*rep); err != nil {
		p.Logger.Printf("[!] Failed to write benchmark.log: %v", err)
	}
}

func (p *WalkthroughProject) formatReport(r Report) string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Frames: %d (missed %d)\n"+
			"Frame loads: %d (failed %d)\n"+
			"Effective FPS: %.2f\n"+
			"%s\n"+
			"----------------------------\n",
		p.BuildVersion, r.Elapsed.Seconds(), r.Frames, r.Misses, r.Cache.Loads, r.Cache.Failures, r.EffectiveFPS(), r.Process,
	)
}

func (p *WalkthroughProject) appendBenchmark(r Report) error {
	if err := os.MkdirAll(p.Config.Output.Dir, 0755); err != nil {
		return err
	}
	entry := fmt.Sprintf("[%s] Build: %s | Frames: %d | Missed: %d | Total: %.2fs | FPS: %.2f | RSS: %.1f MiB\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.BuildVersion,
		r.Frames,
		r.Misses,
		r.Elapsed.Seconds(),
		r.EffectiveFPS(),
		float64(r.Process.RSS)/(1<<20),
	)

	f, err := os.OpenFile(filepath.Join(p.Config.Output.Dir, "benchmark.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}
