package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// InitResourceLimits raises the open file limit; frame loaders keep many
// files and sockets open at once.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Failed to read open file limit: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Failed to raise open file limit: %v", err)
	} else {
		log.Printf("[*] Open file limit raised to %d", rLimit.Cur)
	}
}

// FindLatestFile returns the most recently modified file in dir with one of
// the given extensions. A file path searches its directory.
func FindLatestFile(path string, extensions ...string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	dir := path
	if !fi.IsDir() {
		dir = filepath.Dir(path)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), extensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files found in %s", strings.Join(extensions, "/"), dir)
	}
	return latestFile, nil
}

func hasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// GetBestH264Encoder picks a hardware H.264 encoder when ffmpeg offers one.
func GetBestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	// VideoToolbox on macOS, then NVENC
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}

// Stats is a snapshot of this process and the host.
type Stats struct {
	RSS         uint64
	CPUPercent  float64
	Threads     int32
	HostMemUsed float64 // percent
}

// ProcessStats samples resource usage of the current process.
func ProcessStats() (Stats, error) {
	var st Stats

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return st, fmt.Errorf("open process: %w", err)
	}
	if mi, err := p.MemoryInfo(); err == nil {
		st.RSS = mi.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if n, err := p.NumThreads(); err == nil {
		st.Threads = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.HostMemUsed = vm.UsedPercent
	}
	return st, nil
}

func (s Stats) String() string {
	return fmt.Sprintf("RSS: %.1f MiB | CPU: %.1f%% | Threads: %d | Host memory: %.1f%%",
		float64(s.RSS)/(1<<20), s.CPUPercent, s.Threads, s.HostMemUsed)
}
