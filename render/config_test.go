package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andewx/diesel/gpu"
)

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	for _, o := range []Option{
		WithFramesInFlight(3),
		WithPresentMode(gpu.PresentFIFO),
		WithImageCount(4),
		WithWaitTimeout(time.Second),
		WithExtent(10, 20),
	} {
		o(&cfg)
	}
	if cfg.FramesInFlight != 3 || cfg.PresentMode != gpu.PresentFIFO || cfg.ImageCount != 4 ||
		cfg.WaitTimeout != time.Second || cfg.Extent != (gpu.Extent{Width: 10, Height: 20}) {
		t.Fatalf("config %+v", cfg)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diesel.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"framesInFlight": 3,
		"presentMode": "fifo-relaxed",
		"waitTimeout": "250ms",
		"clearColor": [0.5, 0.5, 0.5, 1],
		"width": 800
	}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.FramesInFlight != 3 || cfg.PresentMode != gpu.PresentFIFORelaxed || cfg.WaitTimeout != 250*time.Millisecond {
		t.Fatalf("config %+v", cfg)
	}
	if cfg.Extent.Width != 800 || cfg.Extent.Height != def.Extent.Height || cfg.ImageCount != def.ImageCount {
		t.Fatalf("missing fields not defaulted: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	for _, body := range []string{
		`{"framesInFlight": 0}`,
		`{"presentMode": "vsync"}`,
		`{"waitTimeout": "soon"}`,
		`{`,
	} {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Errorf("LoadConfig(%s) succeeded", body)
		}
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadConfig of a missing file succeeded")
	}
}

func TestNewFileLogger(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir)
	if err != nil {
		t.Fatal(err)
	}
	l.Warn.Print("careful")
	b, err := os.ReadFile(filepath.Join(dir, "warn_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatal("warning not written")
	}
}
