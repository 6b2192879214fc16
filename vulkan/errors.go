package vulkan

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// sentinel returns the gpu error class of a result, or nil if the result
// has no matching class.
func sentinel(ret vk.Result) error {
	switch ret {
	case vk.ErrorOutOfDate:
		return gpu.ErrOutOfDate
	case vk.Suboptimal:
		return gpu.ErrSuboptimal
	case vk.Timeout, vk.NotReady:
		return gpu.ErrTimeout
	case vk.ErrorDeviceLost:
		return gpu.ErrDeviceLost
	case vk.ErrorOutOfDeviceMemory:
		return gpu.ErrNoDeviceMemory
	case vk.ErrorOutOfHostMemory:
		return gpu.ErrNoHostMemory
	case vk.ErrorIncompatibleDriver, vk.ErrorInitializationFailed:
		return gpu.ErrNoDevice
	}
	return nil
}

// NewError converts a result into an error carrying the caller's
// location. Results with a gpu error class wrap the matching sentinel
// so they can be tested with errors.Is.
func NewError(ret vk.Result) error {
	if !isError(ret) {
		return nil
	}
	where := "unknown caller"
	if pc, _, _, ok := runtime.Caller(1); ok {
		where = newStackFrame(pc).String()
	}
	if s := sentinel(ret); s != nil {
		return fmt.Errorf("vulkan error: %s (%d) on %s: %w", vk.Error(ret).Error(), ret, where, s)
	}
	return fmt.Errorf("vulkan error: %s (%d) on %s", vk.Error(ret).Error(), ret, where)
}

type stackFrame struct {
	fn   string
	file string
	line int
}

func newStackFrame(pc uintptr) stackFrame {
	f := stackFrame{fn: "?"}
	if fn := runtime.FuncForPC(pc); fn != nil {
		f.fn = fn.Name()
		f.file, f.line = fn.FileLine(pc)
	}
	return f
}

func (f stackFrame) String() string {
	name := f.fn
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if f.file == "" {
		return name
	}
	return fmt.Sprintf("%s (%s:%d)", name, f.file[strings.LastIndex(f.file, "/")+1:], f.line)
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("%+v", v)
	}
}

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}
