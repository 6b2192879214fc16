package render

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/andewx/diesel/gpu"
)

// Config holds the Backend settings.
type Config struct {
	// FramesInFlight bounds how many frames may be queued on the
	// device. It is further limited by the swapchain image count.
	FramesInFlight int
	// PresentMode is used if the surface supports it, FIFO otherwise.
	PresentMode gpu.PresentMode
	// ImageCount is the desired number of swapchain images.
	ImageCount uint32
	// WaitTimeout bounds every wait on the device.
	WaitTimeout time.Duration
	ClearColor  [4]float32
	ColorFormat gpu.Format
	DepthFormat gpu.Format
	// Extent is the render size when there is no window.
	Extent gpu.Extent
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		PresentMode:    gpu.PresentMailbox,
		ImageCount:     3,
		WaitTimeout:    5 * time.Second,
		ClearColor:     [4]float32{0, 0, 0, 1},
		ColorFormat:    gpu.FormatRGBA8Unorm,
		DepthFormat:    gpu.FormatD32Float,
		Extent:         gpu.Extent{Width: 1280, Height: 720},
	}
}

// Option modifies a Config.
type Option func(*Config)

// WithFramesInFlight sets Config.FramesInFlight.
func WithFramesInFlight(n int) Option { return func(c *Config) { c.FramesInFlight = n } }

// WithPresentMode sets Config.PresentMode.
func WithPresentMode(m gpu.PresentMode) Option { return func(c *Config) { c.PresentMode = m } }

// WithImageCount sets Config.ImageCount.
func WithImageCount(n uint32) Option { return func(c *Config) { c.ImageCount = n } }

// WithWaitTimeout sets Config.WaitTimeout.
func WithWaitTimeout(d time.Duration) Option { return func(c *Config) { c.WaitTimeout = d } }

// WithClearColor sets Config.ClearColor.
func WithClearColor(r, g, b, a float32) Option {
	return func(c *Config) { c.ClearColor = [4]float32{r, g, b, a} }
}

// WithExtent sets Config.Extent.
func WithExtent(width, height uint32) Option {
	return func(c *Config) { c.Extent = gpu.Extent{Width: width, Height: height} }
}

// WithConfig replaces the whole Config.
func WithConfig(cfg Config) Option { return func(c *Config) { *c = cfg } }

type fileConfig struct {
	FramesInFlight *int        `json:"framesInFlight"`
	PresentMode    *string     `json:"presentMode"`
	ImageCount     *uint32     `json:"imageCount"`
	WaitTimeout    *string     `json:"waitTimeout"`
	ClearColor     *[4]float32 `json:"clearColor"`
	Width          *uint32     `json:"width"`
	Height         *uint32     `json:"height"`
}

var presentModes = map[string]gpu.PresentMode{
	"fifo":         gpu.PresentFIFO,
	"mailbox":      gpu.PresentMailbox,
	"immediate":    gpu.PresentImmediate,
	"fifo-relaxed": gpu.PresentFIFORelaxed,
}

// LoadConfig reads a JSON config file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var f fileConfig
	if err := json.Unmarshal(b, &f); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if f.FramesInFlight != nil {
		if *f.FramesInFlight < 1 {
			return cfg, fmt.Errorf("%s: framesInFlight must be at least 1", path)
		}
		cfg.FramesInFlight = *f.FramesInFlight
	}
	if f.PresentMode != nil {
		m, ok := presentModes[*f.PresentMode]
		if !ok {
			return cfg, fmt.Errorf("%s: unknown present mode %q", path, *f.PresentMode)
		}
		cfg.PresentMode = m
	}
	if f.ImageCount != nil {
		cfg.ImageCount = *f.ImageCount
	}
	if f.WaitTimeout != nil {
		d, err := time.ParseDuration(*f.WaitTimeout)
		if err != nil {
			return cfg, fmt.Errorf("%s: waitTimeout: %w", path, err)
		}
		cfg.WaitTimeout = d
	}
	if f.ClearColor != nil {
		cfg.ClearColor = *f.ClearColor
	}
	if f.Width != nil {
		cfg.Extent.Width = *f.Width
	}
	if f.Height != nil {
		cfg.Extent.Height = *f.Height
	}
	return cfg, nil
}
