package present

import "github.com/andewx/diesel/gpu"

// ChoosePresentMode returns want if the surface supports it and FIFO,
// which every surface supports, otherwise.
func ChoosePresentMode(avail []gpu.PresentMode, want gpu.PresentMode) gpu.PresentMode {
	for _, m := range avail {
		if m == want {
			return want
		}
	}
	return gpu.PresentFIFO
}

// ChooseFormat prefers an 8-bit sRGB format in the sRGB color space
// and falls back to the first format offered.
func ChooseFormat(avail []gpu.SurfaceFormat) gpu.SurfaceFormat {
	def := gpu.SurfaceFormat{Format: gpu.FormatBGRA8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear}
	if len(avail) == 0 || (len(avail) == 1 && avail[0].Format == gpu.FormatUndefined) {
		return def
	}
	for _, f := range avail {
		if f.Format.IsSRGB() && f.ColorSpace == gpu.ColorSpaceSRGBNonlinear {
			return f
		}
	}
	return avail[0]
}

// ChooseExtent returns the surface's current extent, or the window's
// pixel size clamped to the surface limits when the surface lets the
// swapchain decide.
func ChooseExtent(caps gpu.SurfaceCaps, width, height int) gpu.Extent {
	if caps.Current.Width != gpu.ExtentFollowsWindow {
		return caps.Current
	}
	if width <= 0 || height <= 0 {
		return gpu.Extent{}
	}
	return gpu.Extent{
		Width:  clamp(uint32(width), caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: clamp(uint32(height), caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

// ChooseImageCount returns want, or one more than the minimum when want
// is zero, clamped to the surface limits.
func ChooseImageCount(caps gpu.SurfaceCaps, want uint32) uint32 {
	n := want
	if n == 0 {
		n = caps.MinImages + 1
	}
	if n < caps.MinImages {
		n = caps.MinImages
	}
	if caps.MaxImages > 0 && n > caps.MaxImages {
		n = caps.MaxImages
	}
	return n
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
