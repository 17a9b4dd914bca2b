// Package video encodes painted frames with FFmpeg and writes still snapshots.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"

	xdraw "golang.org/x/image/draw"
)

// Recorder consumes painted frames in presentation order.
type Recorder interface {
	WriteFrame(frame *image.RGBA) error
	Close() error
}

// Params describe the output stream.
type Params struct {
	Width   int
	Height  int
	FPS     int
	Encoder string // libx264 when empty
	Quality int
}

// FFmpegRecorder streams raw RGBA frames into an ffmpeg process over stdin.
// Frames of another size, as after a viewport resize, are scaled to the
// stream size.
type FFmpegRecorder struct {
	params Params
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    bytes.Buffer
	buf    *image.RGBA
	frames int
}

func NewFFmpegRecorder(ctx context.Context, path string, p Params) (*FFmpegRecorder, error) {
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 {
		return nil, fmt.Errorf("invalid stream %dx%d@%d", p.Width, p.Height, p.FPS)
	}
	// yuv420p needs even dimensions
	p.Width += p.Width % 2
	p.Height += p.Height % 2

	r := &FFmpegRecorder{params: p}
	r.cmd = exec.CommandContext(ctx, "ffmpeg", BuildArgs(p, path)...)
	r.cmd.Stdout = &r.out
	r.cmd.Stderr = &r.out

	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	r.stdin = stdin

	if err := r.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return r, nil
}

// BuildArgs returns the ffmpeg arguments for a rawvideo stdin stream.
func BuildArgs(p Params, path string) []string {
	encoder := p.Encoder
	if encoder == "" {
		encoder = "libx264"
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", encoder,
	}
	args = append(args, QualityArgs(encoder, p.Quality)...)
	return append(args, path)
}

// QualityArgs maps a quality value onto the rate control flag of each encoder.
func QualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		if quality <= 0 {
			quality = 75
		}
		// kbit/s, 75 -> 7.5 Mbit/s
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		if quality <= 0 {
			quality = 23
		}
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		if quality <= 0 {
			quality = 20
		}
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

func (r *FFmpegRecorder) WriteFrame(frame *image.RGBA) error {
	if err := writeRawRGBA(r.stdin, r.fit(frame)); err != nil {
		return fmt.Errorf("write raw error at frame %d: %w", r.frames, err)
	}
	r.frames++
	return nil
}

// Frames is the number of frames written so far.
func (r *FFmpegRecorder) Frames() int {
	return r.frames
}

// Close finishes the stream and waits for ffmpeg to exit.
func (r *FFmpegRecorder) Close() error {
	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w\nLog: %s", err, r.out.String())
	}
	return nil
}

func (r *FFmpegRecorder) fit(frame *image.RGBA) *image.RGBA {
	b := frame.Bounds()
	if b.Dx() == r.params.Width && b.Dy() == r.params.Height {
		return frame
	}
	if r.buf == nil {
		r.buf = image.NewRGBA(image.Rect(0, 0, r.params.Width, r.params.Height))
	}
	xdraw.ApproxBiLinear.Scale(r.buf, r.buf.Bounds(), frame, b, xdraw.Src, nil)
	return r.buf
}

func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	if img.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		_, err := w.Write(img.Pix)
		return err
	}
	packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(packed, packed.Bounds(), img, b.Min, xdraw.Src)
	_, err := w.Write(packed.Pix)
	return err
}

// WriteSnapshot saves img as a PNG file.
func WriteSnapshot(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return f.Close()
}
