package gpu

import "time"

// Format describes the layout of an image's texels.
type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8SRGB
	FormatBGRA8Unorm
	FormatBGRA8SRGB
	FormatD32Float
	FormatD24UnormS8
)

// IsSRGB reports whether the format applies sRGB encoding.
func (f Format) IsSRGB() bool { return f == FormatRGBA8SRGB || f == FormatBGRA8SRGB }

// IsDepth reports whether the format holds depth data.
func (f Format) IsDepth() bool { return f == FormatD32Float || f == FormatD24UnormS8 }

// Size returns the size in bytes of a single texel.
func (f Format) Size() int {
	switch f {
	case FormatUndefined:
		return 0
	}
	return 4
}

// ColorSpace is the color space of a presentable format.
type ColorSpace int

const (
	ColorSpaceSRGBNonlinear ColorSpace = iota
	ColorSpaceOther
)

// Layout is the memory layout of an image.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutTransferSrc
	LayoutTransferDst
	LayoutShaderRead
	LayoutColorTarget
	LayoutDepthTarget
	LayoutPresent
)

func (l Layout) String() string {
	switch l {
	case LayoutGeneral:
		return "general"
	case LayoutTransferSrc:
		return "transfer-src"
	case LayoutTransferDst:
		return "transfer-dst"
	case LayoutShaderRead:
		return "shader-read"
	case LayoutColorTarget:
		return "color-target"
	case LayoutDepthTarget:
		return "depth-target"
	case LayoutPresent:
		return "present"
	}
	return "undefined"
}

// Stage is a mask of pipeline stages.
type Stage int

const (
	StageTop Stage = 1 << iota
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageDepthTest
	StageColorOutput
	StageTransfer
	StageBottom
	StageNone Stage = 0
)

// Access is a mask of memory access types.
type Access int

const (
	AccessVertexRead Access = 1 << iota
	AccessIndexRead
	AccessShaderRead
	AccessColorWrite
	AccessDepthRead
	AccessDepthWrite
	AccessTransferRead
	AccessTransferWrite
	AccessMemoryRead
	AccessNone Access = 0
)

// Usage is a mask of the ways a buffer or image may be used.
type Usage int

const (
	UsageTransferSrc Usage = 1 << iota
	UsageTransferDst
	UsageVertex
	UsageIndex
	UsageSampled
	UsageColorTarget
	UsageDepthTarget
)

// Aspect selects the aspect of an image a view or barrier refers to.
type Aspect int

const (
	AspectColor Aspect = iota
	AspectDepth
)

// PresentMode is the presentation mode of a swapchain.
type PresentMode int

const (
	PresentFIFO PresentMode = iota
	PresentMailbox
	PresentImmediate
	PresentFIFORelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentFIFO:
		return "fifo"
	case PresentMailbox:
		return "mailbox"
	case PresentImmediate:
		return "immediate"
	case PresentFIFORelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

// Extent is a two-dimensional size in pixels.
type Extent struct {
	Width, Height uint32
}

// IsZero reports whether either dimension is zero.
func (e Extent) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// Mip returns the extent of mip level n, never smaller than 1x1.
func (e Extent) Mip(n uint32) Extent {
	w, h := e.Width>>n, e.Height>>n
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return Extent{w, h}
}

// Allocation is a region of device memory bound to a buffer or image.
// It is a plain value so it can be stored in deletion records.
type Allocation struct {
	Memory      Handle
	Offset      uint64
	Size        uint64
	HostVisible bool
}

// BufferDesc describes a buffer to allocate.
type BufferDesc struct {
	Size        uint64
	Usage       Usage
	HostVisible bool
	Label       string
}

// ImageDesc describes an image to allocate.
type ImageDesc struct {
	Format Format
	Extent Extent
	Levels uint32
	Usage  Usage
	Label  string
}

// ViewDesc describes an image view.
type ViewDesc struct {
	Format    Format
	Aspect    Aspect
	BaseLevel uint32
	Levels    uint32
}

// Allocator creates buffers and images together with their memory.
type Allocator interface {
	NewBuffer(desc *BufferDesc) (Handle, Allocation, error)
	NewImage(desc *ImageDesc) (Handle, Allocation, error)

	// Map returns the host-visible contents of a.
	Map(a Allocation) ([]byte, error)
	Unmap(a Allocation)

	DestroyBuffer(h Handle, a Allocation)
	DestroyImage(h Handle, a Allocation)
}

// PipelineDesc describes a graphics pipeline.
// The vertex layout is fixed: position, normal and texture coordinates.
// Empty entry point names default to "main".
type PipelineDesc struct {
	Vertex        []byte
	VertexEntry   string
	Fragment      []byte
	FragmentEntry string
	ColorFormat   Format
	DepthFormat   Format
	Textures      int
	PushSize      uint32
	Label         string
}

// ImageBarrier is a layout transition and/or queue ownership transfer
// of a range of mip levels.
type ImageBarrier struct {
	Image     Handle
	Aspect    Aspect
	BaseLevel uint32
	Levels    uint32
	OldLayout Layout
	NewLayout Layout
	SrcAccess Access
	DstAccess Access
	SrcFamily uint32
	DstFamily uint32
}

// BufferBarrier is a memory dependency and/or queue ownership transfer
// of a whole buffer.
type BufferBarrier struct {
	Buffer    Handle
	Size      uint64
	SrcAccess Access
	DstAccess Access
	SrcFamily uint32
	DstFamily uint32
}

// Barrier groups image and buffer barriers between two stage masks.
type Barrier struct {
	SrcStage Stage
	DstStage Stage
	Images   []ImageBarrier
	Buffers  []BufferBarrier
}

// Blit copies (and scales) one mip level of an image into another.
type Blit struct {
	Src       Handle
	SrcLayout Layout
	SrcLevel  uint32
	SrcExtent Extent
	Dst       Handle
	DstLayout Layout
	DstLevel  uint32
	DstExtent Extent
}

// RenderTarget describes the attachments of a render pass.
// Color and Depth are image views.
type RenderTarget struct {
	Color       Handle
	ColorFormat Format
	Depth       Handle
	DepthFormat Format
	Extent      Extent
	ClearColor  [4]float32
	ClearDepth  float32
}

// CmdBuffer records commands for later submission.
type CmdBuffer interface {
	Handle() Handle
	Queue() QueueID

	Begin() error
	End() error
	Reset() error

	Barrier(b *Barrier)
	CopyBuffer(src, dst Handle, size uint64)
	CopyBufferToImage(src, dst Handle, extent Extent)
	Blit(b *Blit)

	BeginPass(t *RenderTarget)
	EndPass()
	BindPipeline(pipeline Handle)
	BindBinding(pipeline, binding Handle)
	BindVertexBuffer(buf Handle)
	BindIndexBuffer(buf Handle)
	PushConstants(pipeline Handle, data []byte)
	DrawIndexed(count uint32)
}

// ExtentFollowsWindow in SurfaceCaps.Current.Width means that the
// swapchain extent is taken from the window.
const ExtentFollowsWindow = ^uint32(0)

// SurfaceCaps are the capabilities of a surface.
type SurfaceCaps struct {
	MinImages uint32
	MaxImages uint32 // 0 means no limit
	Current   Extent
	MinExtent Extent
	MaxExtent Extent
}

// SurfaceFormat is a presentable format.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SwapchainDesc describes a swapchain to create.
type SwapchainDesc struct {
	Format      SurfaceFormat
	Extent      Extent
	Images      uint32
	PresentMode PresentMode
	Old         Handle
}

// Surface is a presentation surface.
type Surface interface {
	Caps() (SurfaceCaps, error)
	Formats() ([]SurfaceFormat, error)
	PresentModes() ([]PresentMode, error)

	// NewSwapchain returns the swapchain handle and its images.
	// The images are owned by the swapchain.
	NewSwapchain(desc *SwapchainDesc) (Handle, []Handle, error)

	// Acquire returns the index of the next writable image.
	// The semaphore is signaled when the image is ready.
	// It fails with ErrOutOfDate when the swapchain must be
	// recreated; ErrSuboptimal is returned with a valid index.
	Acquire(swapchain, semaphore Handle, timeout time.Duration) (uint32, error)

	// Present queues an image for presentation once the
	// semaphore is signaled.
	Present(q QueueID, swapchain Handle, index uint32, wait Handle) error
}
