// Package window opens a glfw window that a vulkan.Device can present to.
//
// glfw must be used from the main thread: call runtime.LockOSThread in
// an init function of the main package before Open.
package window

import (
	"fmt"
	"unsafe"

	"github.com/andewx/diesel/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Window is a resizable window without a client API.
type Window struct {
	win       *glfw.Window
	resized   bool
	minimized bool
}

// Open initializes glfw and creates a window.
func Open(title string, width, height int) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, fmt.Errorf("window: no vulkan loader: %w", gpu.ErrNoDevice)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window: %w", err)
	}
	w := &Window{win: win}
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		w.resized = true
	})
	win.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		w.minimized = iconified
		w.resized = true
	})
	win.SetKeyCallback(func(win *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
		}
	})
	return w, nil
}

// ProcAddr returns the loader entry point glfw found, for vulkan.Init.
func ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// FramebufferSize returns the size in pixels, zero while minimized.
func (w *Window) FramebufferSize() (width, height int) {
	if w.minimized {
		return 0, 0
	}
	return w.win.GetFramebufferSize()
}

// Resized reports whether the framebuffer size changed since the
// previous call.
func (w *Window) Resized() bool {
	r := w.resized
	w.resized = false
	return r
}

// ShouldClose reports whether the user asked to close the window.
func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

// Poll processes pending window events.
func (w *Window) Poll() { glfw.PollEvents() }

// RequiredExtensions implements vulkan.Window.
func (w *Window) RequiredExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

// CreateSurface implements vulkan.Window.
func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("window: %w", err)
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// Close destroys the window and terminates glfw.
func (w *Window) Close() {
	w.win.Destroy()
	glfw.Terminate()
}
