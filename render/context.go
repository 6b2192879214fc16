package render

import (
	"os"

	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/present"
)

// Context is what a Backend is created from: the device, the window
// it presents to (nil for offscreen rendering) and where it reports.
type Context struct {
	Device gpu.Device
	Window present.Window
	Log    *Logger

	// Exit terminates the process after a fatal error.
	// It defaults to os.Exit.
	Exit func(code int)
}

// Fatal runs finalizers, logs err and exits with status 1.
// It does nothing if err is nil.
func (c *Context) Fatal(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	c.Log.Error.Output(2, "FATAL: "+err.Error())
	exit := c.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)
}
