package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivlev/scrubber/internal/api"
	"github.com/ivlev/scrubber/internal/config"
	"github.com/ivlev/scrubber/internal/engine"
	"github.com/ivlev/scrubber/internal/script"
	"github.com/ivlev/scrubber/internal/scrubber"
	"github.com/ivlev/scrubber/internal/source"
	"github.com/ivlev/scrubber/internal/surface"
	"github.com/ivlev/scrubber/internal/system"
	"github.com/ivlev/scrubber/internal/telemetry"
)

var buildVersion = "dev"

const usage = `usage: scrubber <command> [flags]

commands:
  render     record a scroll script to a video file
  play       play a scroll script against the live render loop
  snapshot   paint one scroll position to a PNG
  serve      serve frames and playback state over HTTP
  init       write the default config and a scroll-through script
`

// common flags shared by every command
type common struct {
	configPath string
	assets     string
	width      int
	height     int
	dpr        float64
	fps        int
	stats      bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to the YAML config (defaults are used when empty)")
	fs.StringVar(&c.assets, "assets", "", "Frame directory, base URL or PDF directory (overrides assets.root/base_url)")
	fs.IntVar(&c.width, "width", 0, "Viewport width in CSS pixels")
	fs.IntVar(&c.height, "height", 0, "Viewport height in CSS pixels")
	fs.Float64Var(&c.dpr, "dpr", 0, "Device pixel ratio")
	fs.IntVar(&c.fps, "fps", 0, "Render loop FPS")
	fs.BoolVar(&c.stats, "stats", false, "Print a performance report and append to benchmark.log")
}

func (c *common) load() *config.Config {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	if c.assets != "" {
		if cfg.Assets.Kind == "http" {
			cfg.Assets.BaseURL = c.assets
		} else {
			cfg.Assets.Root = c.assets
		}
	}
	if c.width > 0 {
		cfg.Viewport.Width = c.width
	}
	if c.height > 0 {
		cfg.Viewport.Height = c.height
	}
	if c.dpr > 0 {
		cfg.Viewport.DevicePixelRatio = c.dpr
	}
	if c.fps > 0 {
		cfg.Render.FPS = c.fps
	}
	if c.stats {
		cfg.Output.ShowStats = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	return cfg
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	system.InitResourceLimits()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "render":
		runRender(ctx, args)
	case "play":
		runPlay(ctx, args)
	case "snapshot":
		runSnapshot(ctx, args)
	case "serve":
		runServe(ctx, args)
	case "init":
		runInit(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func newProject(cfg *config.Config) (*engine.WalkthroughProject, func()) {
	loader, err := source.New(cfg.Assets)
	if err != nil {
		log.Fatalf("[-] Frame source error: %v", err)
	}
	project := engine.NewWalkthroughProject(cfg, loader)
	project.BuildVersion = buildVersion

	obs, closeObs := connectTelemetry(cfg)
	if obs != nil {
		project.Observer = obs
	}
	return project, closeObs
}

// connectTelemetry returns a state publisher when an MQTT broker is configured.
func connectTelemetry(cfg *config.Config) (*telemetry.Publisher, func()) {
	if cfg.MQTT.URL == "" {
		return nil, func() {}
	}
	client, err := telemetry.Connect(cfg.MQTT)
	if err != nil {
		log.Printf("[!] Telemetry disabled: %v", err)
		return nil, func() {}
	}
	mqtt.ERROR = log.New(os.Stderr, "[mqtt] ", 0)

	pub := telemetry.NewPublisher(client, cfg.MQTT.Topic, log.Default())
	return pub, func() {
		pub.Close()
		st := pub.Stats()
		log.Printf("[*] Telemetry: %d published, %d dropped, %d errors", st.Published, st.Dropped, st.Errors)
		client.Disconnect(250)
	}
}

// loadScript reads path, else the newest script in scripts/, else a plain
// scroll-through of duration seconds.
func loadScript(path string, duration float64) *script.Script {
	if path == "" {
		if latest, err := script.FindLatest("scripts"); err == nil {
			path = latest
			log.Printf("[*] Selected script: %s", path)
		}
	}
	if path == "" {
		return script.ScrollThrough(duration)
	}
	sc, err := script.Read(path)
	if err != nil {
		log.Fatalf("[-] Script error: %v", err)
	}
	return sc
}

func runRender(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	var c common
	c.register(fs)
	scriptPath := fs.String("script", "", "Scroll script (default: newest in scripts/, else a scroll-through)")
	duration := fs.Float64("duration", 10, "Scroll-through duration in seconds when no script is given")
	output := fs.String("output", "", "Video path (default: generated in output/)")
	encoder := fs.String("encoder", "", "FFmpeg H.264 encoder (default: detect)")
	quality := fs.Int("quality", 0, "Quality (0: auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100kbit/s)")
	fs.Parse(args)

	cfg := c.load()
	if *encoder != "" {
		cfg.Output.VideoEncoder = *encoder
	}
	if *quality > 0 {
		cfg.Output.Quality = *quality
	}
	sc := loadScript(*scriptPath, *duration)

	path := *output
	if path == "" {
		name := sc.Name
		if name == "" {
			name = "walkthrough"
		}
		path = filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s_%s.mp4", name, time.Now().Format("2006-01-02_15-04-05")))
	}

	project, closeObs := newProject(cfg)
	defer closeObs()

	rep, err := project.Record(ctx, sc, path)
	if err != nil {
		log.Fatalf("[-] Render error: %v", err)
	}
	log.Printf("[*] %d frames, final state %s frame %d", rep.Frames, rep.Final.Sequence, rep.Final.FrameIndex+1)
}

func runPlay(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	var c common
	c.register(fs)
	scriptPath := fs.String("script", "", "Scroll script (default: newest in scripts/, else a scroll-through)")
	duration := fs.Float64("duration", 10, "Scroll-through duration in seconds when no script is given")
	fs.Parse(args)

	cfg := c.load()
	sc := loadScript(*scriptPath, *duration)

	project, closeObs := newProject(cfg)
	defer closeObs()

	rep, err := project.Play(ctx, sc)
	if err != nil {
		log.Fatalf("[-] Play error: %v", err)
	}
	log.Printf("[*] %d frames painted (%d without a frame), final state %s frame %d",
		rep.Frames, rep.Misses, rep.Final.Sequence, rep.Final.FrameIndex+1)
}

func runSnapshot(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	var c common
	c.register(fs)
	progress := fs.Float64("progress", 0, "Scroll progress through the track, 0..1")
	output := fs.String("output", "", "PNG path (default: generated in output/)")
	fs.Parse(args)

	cfg := c.load()
	path := *output
	if path == "" {
		path = filepath.Join(cfg.Output.Dir, fmt.Sprintf("snapshot_%.3f.png", *progress))
	}

	project, closeObs := newProject(cfg)
	defer closeObs()

	if _, err := project.Snapshot(ctx, *progress, path); err != nil {
		log.Fatalf("[-] Snapshot error: %v", err)
	}
}

func runServe(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", "", "Listen address (overrides serve.addr)")
	static := fs.String("static", "", "Directory served at / alongside the frames")
	scriptPath := fs.String("script", "", "Scroll script to play while serving; /state follows it")
	fs.Parse(args)

	cfg := c.load()
	if *addr != "" {
		cfg.Serve.Addr = *addr
	}
	loader, err := source.New(cfg.Assets)
	if err != nil {
		log.Fatalf("[-] Frame source error: %v", err)
	}

	var opts []scrubber.Option
	obs, closeObs := connectTelemetry(cfg)
	defer closeObs()
	if obs != nil {
		opts = append(opts, scrubber.WithObserver(obs))
	}
	opts = append(opts, scrubber.WithMaxConcurrentLoads(cfg.Loader.MaxConcurrent))

	// headless: no canvas, the scrubber only tracks state and caches frames
	s := scrubber.New(loader, nil, opts...)
	vp := surface.Viewport{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height, DevicePixelRatio: cfg.Viewport.DevicePixelRatio}
	s.Mount(ctx, vp)
	defer s.Unmount()

	if *scriptPath != "" {
		sc, err := script.Read(*scriptPath)
		if err != nil {
			log.Fatalf("[-] Script error: %v", err)
		}
		player := script.NewPlayer(sc, vp, 2*cfg.Render.FPS)
		defer s.Subscribe(player)()
		go func() {
			if err := player.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[!] Script stopped: %v", err)
			}
		}()
	}

	if err := api.NewApi(s.Cache(), s, *static).Serve(ctx, cfg.Serve.Addr); err != nil {
		log.Fatalf("[-] Server error: %v", err)
	}
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "scrubber.yaml", "Where to write the default config")
	scriptPath := fs.String("script", filepath.Join("scripts", "scroll-through.yaml"), "Where to write the example script")
	duration := fs.Float64("duration", 10, "Duration of the example script in seconds")
	fs.Parse(args)

	if err := config.Default().Write(*configPath); err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	os.MkdirAll(filepath.Dir(*scriptPath), 0755)
	if err := script.Write(script.ScrollThrough(*duration), *scriptPath); err != nil {
		log.Fatalf("[-] Script error: %v", err)
	}
	log.Printf("[+++] Wrote %s and %s", *configPath, *scriptPath)
}
