// Package vulkan implements gpu.Device on top of the Vulkan API.
//
// The loader must be set up with Init before Open is called. A device
// opened with a Window presents to it; without one it is headless and
// Surface reports gpu.ErrCannotPresent.
package vulkan

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"
	"unsafe"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// Window is a platform window the device can present to.
type Window interface {
	// RequiredExtensions lists the instance extensions the
	// window system needs.
	RequiredExtensions() []string
	// CreateSurface creates a surface for the window.
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// Options configure Open.
type Options struct {
	AppName string
	// Debug enables the validation layer and a debug report callback
	// when they are available.
	Debug bool
	// Layers, InstanceExtensions and DeviceExtensions are enabled
	// in addition to what the device needs.
	Layers             []string
	InstanceExtensions []string
	DeviceExtensions   []string
	Window             Window
	Log                *log.Logger
	// Timeout bounds the waits a submission makes on another queue.
	Timeout time.Duration
}

const (
	validationLayer         = "VK_LAYER_KHRONOS_validation"
	debugReportExtension    = "VK_EXT_debug_report"
	swapchainExtension      = "VK_KHR_swapchain"
	portabilityEnumeration  = "VK_KHR_portability_enumeration"
	enumeratePortabilityBit = 0x00000001
)

// Init loads the Vulkan loader. procAddr is the loader's
// vkGetInstanceProcAddr; nil loads the system default.
func Init(procAddr unsafe.Pointer) error {
	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return fmt.Errorf("vulkan: %w: %v", gpu.ErrNoDevice, err)
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}
	if err := vk.Init(); err != nil {
		return fmt.Errorf("vulkan: %w: %v", gpu.ErrNoDevice, err)
	}
	return nil
}

var (
	_ gpu.Device    = (*Device)(nil)
	_ gpu.Queue     = (*Queue)(nil)
	_ gpu.Allocator = (*Allocator)(nil)
	_ gpu.CmdBuffer = (*CmdBuffer)(nil)
	_ gpu.Surface   = (*Surface)(nil)
)

// Device is a Vulkan logical device with a main and a transfer queue.
type Device struct {
	opts Options
	log  *log.Logger

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface
	gpu           vk.PhysicalDevice
	device        vk.Device
	props         vk.PhysicalDeviceProperties
	memProps      vk.PhysicalDeviceMemoryProperties

	surf         *Surface
	queues       [gpu.QueueCount]*Queue
	fences       *fencePool
	alloc        *Allocator
	reg          registry
	passes       map[passKey]vk.RenderPass
	framebuffers map[framebufferKey]vk.Framebuffer
	sampler      vk.Sampler
}

// Open creates the instance, picks a physical device and opens a
// logical device on it. The returned device must be closed with Close.
func Open(opts Options) (dev *Device, err error) {
	if opts.Log == nil {
		opts.Log = log.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	d := &Device{
		opts:          opts,
		log:           opts.Log,
		debugCallback: vk.NullDebugReportCallback,
		surface:       vk.NullSurface,
		passes:        make(map[passKey]vk.RenderPass),
		framebuffers:  make(map[framebufferKey]vk.Framebuffer),
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()
	if err := d.createInstance(); err != nil {
		return nil, err
	}
	if opts.Window != nil {
		if d.surface, err = opts.Window.CreateSurface(d.instance); err != nil {
			return nil, fmt.Errorf("vulkan: creating surface: %w", err)
		}
		if d.surface == vk.NullSurface {
			return nil, errors.New("vulkan: surface required but not provided")
		}
		d.surf = &Surface{d: d, surface: d.surface}
	}
	fam, err := d.pickGPU()
	if err != nil {
		return nil, err
	}
	if err := d.createDevice(fam); err != nil {
		return nil, err
	}
	d.fences = newFencePool(d.device)
	d.alloc = &Allocator{d: d}
	if err := d.createSampler(); err != nil {
		return nil, fmt.Errorf("vulkan: sampler: %w", err)
	}
	d.log.Printf("vulkan: using %s", vk.ToString(d.props.DeviceName[:]))
	return d, nil
}

func (d *Device) createInstance() error {
	actual, err := InstanceExtensions()
	if err != nil {
		return err
	}
	exts := nameSet{
		required: append(append([]string{}, d.opts.InstanceExtensions...), windowExtensions(d.opts.Window)...),
		actual:   actual,
	}
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		exts.wanted = append(exts.wanted, portabilityEnumeration)
		if contains(actual, portabilityEnumeration) {
			flags = vk.InstanceCreateFlags(enumeratePortabilityBit)
		}
	}
	if d.opts.Debug {
		exts.wanted = append(exts.wanted, debugReportExtension)
	}
	if missing := exts.missing(); len(missing) > 0 {
		return fmt.Errorf("vulkan: missing instance extensions %v: %w", missing, gpu.ErrNoDevice)
	}
	instanceExtensions := exts.enabled()
	d.log.Printf("vulkan: enabling %d instance extensions", len(instanceExtensions))

	available, err := ValidationLayers()
	if err != nil {
		return err
	}
	layers := nameSet{wanted: d.opts.Layers, actual: available}
	if d.opts.Debug {
		layers.wanted = append(layers.wanted, validationLayer)
	}
	enabledLayers := layers.enabled()
	if len(enabledLayers) < len(layers.wanted) {
		d.log.Println("vulkan warning: missing", len(layers.wanted)-len(enabledLayers), "validation layers during init")
	}

	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(d.opts.AppName),
			PEngineName:        "diesel\x00",
		},
		EnabledExtensionCount:   uint32(len(instanceExtensions)),
		PpEnabledExtensionNames: instanceExtensions,
		EnabledLayerCount:       uint32(len(enabledLayers)),
		PpEnabledLayerNames:     enabledLayers,
		Flags:                   flags,
	}, nil, &d.instance)
	if isError(ret) {
		return fmt.Errorf("vulkan: creating instance: %w", NewError(ret))
	}
	if err := vk.InitInstance(d.instance); err != nil {
		return fmt.Errorf("vulkan: %w", err)
	}

	if d.opts.Debug && contains(actual, debugReportExtension) {
		ret := vk.CreateDebugReportCallback(d.instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}, nil, &d.debugCallback)
		if isError(ret) {
			return fmt.Errorf("vulkan: debug report callback: %w", NewError(ret))
		}
		d.log.Println("vulkan: DebugReportCallback enabled")
	}
	return nil
}

func windowExtensions(w Window) []string {
	if w == nil {
		return nil
	}
	return w.RequiredExtensions()
}

// queueFamilies is the family and queue index of each device queue.
type queueFamilies struct {
	family [gpu.QueueCount]uint32
	index  [gpu.QueueCount]uint32
}

// pickGPU selects the highest scoring physical device that has a
// graphics family, can present when a surface is set, and has every
// required device extension.
func (d *Device) pickGPU() (queueFamilies, error) {
	var count uint32
	if ret := vk.EnumeratePhysicalDevices(d.instance, &count, nil); isError(ret) {
		return queueFamilies{}, NewError(ret)
	}
	if count == 0 {
		return queueFamilies{}, fmt.Errorf("vulkan: no GPU devices found: %w", gpu.ErrNoDevice)
	}
	gpus := make([]vk.PhysicalDevice, count)
	if ret := vk.EnumeratePhysicalDevices(d.instance, &count, gpus); isError(ret) {
		return queueFamilies{}, NewError(ret)
	}

	needPresent := d.surface != vk.NullSurface
	best := -1
	var picked queueFamilies
	for _, dev := range gpus {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		name := vk.ToString(props.DeviceName[:])

		actual, err := DeviceExtensions(dev)
		if err != nil {
			d.log.Printf("vulkan: skipping %s: %v", name, err)
			continue
		}
		exts := nameSet{required: d.deviceExtensions(), actual: actual}
		if missing := exts.missing(); len(missing) > 0 {
			d.log.Printf("vulkan: skipping %s: missing %v", name, missing)
			continue
		}
		fams := queryFamilies(dev, d.surface)
		main, ok := fams.main(needPresent)
		if !ok {
			d.log.Printf("vulkan: skipping %s: no suitable queue family", name)
			continue
		}
		if s := deviceScore(props.DeviceType); s > best {
			best = s
			d.gpu = dev
			d.props = props
			picked = queueFamilies{}
			picked.family[gpu.QueueMain] = main
			transfer := fams.transfer(main)
			picked.family[gpu.QueueTransfer] = transfer
			if transfer == main && fams.count(main) >= 2 {
				picked.index[gpu.QueueTransfer] = 1
			}
		}
	}
	if best < 0 {
		return queueFamilies{}, fmt.Errorf("vulkan: none of %d GPUs is suitable: %w", count, gpu.ErrNoDevice)
	}
	vk.GetPhysicalDeviceMemoryProperties(d.gpu, &d.memProps)
	d.memProps.Deref()
	return picked, nil
}

func deviceScore(t vk.PhysicalDeviceType) int {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func (d *Device) deviceExtensions() []string {
	exts := append([]string{}, d.opts.DeviceExtensions...)
	if d.surface != vk.NullSurface {
		exts = append(exts, swapchainExtension)
	}
	return exts
}

func (d *Device) createDevice(fam queueFamilies) error {
	main, transfer := fam.family[gpu.QueueMain], fam.family[gpu.QueueTransfer]
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: main,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	switch {
	case transfer != main:
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: transfer,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	case fam.index[gpu.QueueTransfer] == 1:
		queueInfos[0].QueueCount = 2
		queueInfos[0].PQueuePriorities = []float32{1.0, 0.5}
	default:
		d.log.Println("vulkan: transfer queue shares the main queue")
	}

	actual, err := DeviceExtensions(d.gpu)
	if err != nil {
		return err
	}
	exts := nameSet{required: d.deviceExtensions(), actual: actual}
	deviceExtensions := exts.enabled()
	d.log.Printf("vulkan: enabling %d device extensions", len(deviceExtensions))

	ret := vk.CreateDevice(d.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
	}, nil, &d.device)
	if isError(ret) {
		return fmt.Errorf("vulkan: creating device: %w", NewError(ret))
	}
	for id := gpu.QueueID(0); id < gpu.QueueCount; id++ {
		q, err := newQueue(d, id, fam.family[id], fam.index[id])
		if err != nil {
			return err
		}
		d.queues[id] = q
	}
	return nil
}

// Queue implements gpu.Device.
func (d *Device) Queue(id gpu.QueueID) gpu.Queue { return d.queues[id] }

// Allocator implements gpu.Device.
func (d *Device) Allocator() gpu.Allocator { return d.alloc }

// Surface implements gpu.Device.
func (d *Device) Surface() (gpu.Surface, error) {
	if d.surf == nil {
		return nil, gpu.ErrCannotPresent
	}
	return d.surf, nil
}

// NewCmdBuffer implements gpu.Device.
func (d *Device) NewCmdBuffer(id gpu.QueueID) (gpu.CmdBuffer, error) {
	q := d.queues[id]
	cmd, err := q.pool.allocate()
	if err != nil {
		return nil, err
	}
	c := &CmdBuffer{d: d, q: q, cmd: cmd}
	c.h = d.reg.add(c)
	return c, nil
}

// NewSemaphore implements gpu.Device.
func (d *Device) NewSemaphore() (gpu.Handle, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if isError(ret) {
		return gpu.NullHandle, NewError(ret)
	}
	return d.reg.add(&semaphore{sem: sem}), nil
}

// NewFence implements gpu.Device.
func (d *Device) NewFence(signaled bool) (gpu.Handle, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if ret := vk.CreateFence(d.device, &info, nil, &f); isError(ret) {
		return gpu.NullHandle, NewError(ret)
	}
	return d.reg.add(&fence{fence: f}), nil
}

// WaitFence implements gpu.Device.
func (d *Device) WaitFence(h gpu.Handle, timeout time.Duration) error {
	f := lookup[*fence](&d.reg, h)
	ret := vk.WaitForFences(d.device, 1, []vk.Fence{f.fence}, vk.True, uint64(timeout.Nanoseconds()))
	return NewError(ret)
}

// ResetFence implements gpu.Device.
func (d *Device) ResetFence(h gpu.Handle) error {
	f := lookup[*fence](&d.reg, h)
	return NewError(vk.ResetFences(d.device, 1, []vk.Fence{f.fence}))
}

// Destroy implements gpu.Device.
func (d *Device) Destroy(kind gpu.ObjectKind, h gpu.Handle) {
	switch kind {
	case gpu.KindImageView:
		d.destroyView(h)
	case gpu.KindPipeline:
		d.destroyPipeline(h)
	case gpu.KindBinding:
		d.destroyBinding(h)
	case gpu.KindCmdBuffer:
		c := lookup[*CmdBuffer](&d.reg, h)
		d.reg.remove(h)
		c.q.pool.free(c.cmd)
	case gpu.KindSemaphore:
		s := lookup[*semaphore](&d.reg, h)
		d.reg.remove(h)
		vk.DestroySemaphore(d.device, s.sem, nil)
	case gpu.KindFence:
		f := lookup[*fence](&d.reg, h)
		d.reg.remove(h)
		vk.DestroyFence(d.device, f.fence, nil)
	case gpu.KindSwapchain:
		d.destroySwapchain(h)
	default:
		panic(fmt.Sprintf("vulkan: cannot destroy %s %d through the device", kind, h))
	}
}

// WaitIdle implements gpu.Device.
func (d *Device) WaitIdle() error {
	err := NewError(vk.DeviceWaitIdle(d.device))
	for _, q := range d.queues {
		if q != nil {
			q.Completed()
		}
	}
	return err
}

// Close waits for the device to go idle and destroys it with the
// instance. Objects still alive are reported and leaked.
func (d *Device) Close() {
	if d.device != nil {
		if err := d.WaitIdle(); err != nil {
			d.log.Printf("vulkan: closing: %v", err)
		}
		if n := d.reg.len(); n > 0 {
			d.log.Printf("vulkan warning: %d objects still alive at close", n)
		}
		if d.sampler != vk.Sampler(vk.NullHandle) {
			vk.DestroySampler(d.device, d.sampler, nil)
		}
		d.destroyPasses()
		if d.fences != nil {
			d.fences.destroy()
		}
		for i, q := range d.queues {
			if q != nil {
				q.destroy()
				d.queues[i] = nil
			}
		}
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
		d.surf = nil
	}
	if d.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Printf("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Printf("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		log.Printf("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		log.Printf("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
