package vulkan

import (
	"errors"
	"strings"
	"testing"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

func TestFormatRoundTrip(t *testing.T) {
	for _, f := range []gpu.Format{
		gpu.FormatRGBA8Unorm, gpu.FormatRGBA8SRGB,
		gpu.FormatBGRA8Unorm, gpu.FormatBGRA8SRGB,
		gpu.FormatD32Float, gpu.FormatD24UnormS8,
	} {
		if got := gpuFormat(vkFormat(f)); got != f {
			t.Errorf("gpuFormat(vkFormat(%v)): got %v", f, got)
		}
	}
	if got := gpuFormat(vk.FormatR16g16b16a16Sfloat); got != gpu.FormatUndefined {
		t.Errorf("unknown format mapped to %v", got)
	}
}

func TestPresentModes(t *testing.T) {
	for _, m := range []gpu.PresentMode{gpu.PresentFIFO, gpu.PresentMailbox, gpu.PresentImmediate, gpu.PresentFIFORelaxed} {
		got, ok := gpuPresentMode(vkPresentMode(m))
		if !ok || got != m {
			t.Errorf("present mode %v: got %v, %v", m, got, ok)
		}
	}
	if _, ok := gpuPresentMode(vk.PresentMode(1000111000)); ok {
		t.Error("shared present mode should not map")
	}
}

func TestStages(t *testing.T) {
	if got := vkStages(gpu.StageNone, vk.PipelineStageTopOfPipeBit); got != vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit) {
		t.Errorf("empty stage: got %#x", got)
	}
	want := vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit | vk.PipelineStageTransferBit)
	if got := vkStages(gpu.StageDepthTest|gpu.StageTransfer, vk.PipelineStageTopOfPipeBit); got != want {
		t.Errorf("depth|transfer: got %#x, want %#x", got, want)
	}
}

func TestAspect(t *testing.T) {
	color := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	depth := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	both := vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	cases := []struct {
		aspect  gpu.Aspect
		format  gpu.Format
		barrier bool
		want    vk.ImageAspectFlags
	}{
		{gpu.AspectColor, gpu.FormatRGBA8Unorm, true, color},
		{gpu.AspectDepth, gpu.FormatD32Float, true, depth},
		{gpu.AspectDepth, gpu.FormatD24UnormS8, false, depth},
		{gpu.AspectDepth, gpu.FormatD24UnormS8, true, both},
	}
	for _, c := range cases {
		if got := vkAspect(c.aspect, c.format, c.barrier); got != c.want {
			t.Errorf("vkAspect(%v, %v, %v): got %#x, want %#x", c.aspect, c.format, c.barrier, got, c.want)
		}
	}
}

func TestUsage(t *testing.T) {
	got := vkBufferUsage(gpu.UsageVertex | gpu.UsageTransferDst)
	want := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	if got != want {
		t.Errorf("buffer usage: got %#x, want %#x", got, want)
	}
	gotImg := vkImageUsage(gpu.UsageSampled | gpu.UsageTransferSrc | gpu.UsageTransferDst)
	wantImg := vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)
	if gotImg != wantImg {
		t.Errorf("image usage: got %#x, want %#x", gotImg, wantImg)
	}
}

func TestNameSet(t *testing.T) {
	s := nameSet{
		required: []string{"A", "B"},
		wanted:   []string{"C", "A", "D"},
		actual:   []string{"A", "C", "E"},
	}
	if m := s.missing(); len(m) != 1 || m[0] != "B" {
		t.Fatalf("missing: got %v, want [B]", m)
	}
	got := strings.Join(s.enabled(), ",")
	if got != "A\x00,C\x00" {
		t.Fatalf("enabled: got %q", got)
	}
}

func TestSafeString(t *testing.T) {
	if got := safeString("VK_KHR_surface"); got != "VK_KHR_surface\x00" {
		t.Errorf("got %q", got)
	}
	if got := safeString("x\x00"); got != "x\x00" {
		t.Errorf("already terminated: got %q", got)
	}
	if got := safeString(""); got != "\x00" {
		t.Errorf("empty: got %q", got)
	}
}

func TestNewError(t *testing.T) {
	if err := NewError(vk.Success); err != nil {
		t.Fatalf("Success: got %v", err)
	}
	cases := []struct {
		ret  vk.Result
		want error
	}{
		{vk.ErrorOutOfDate, gpu.ErrOutOfDate},
		{vk.Suboptimal, gpu.ErrSuboptimal},
		{vk.Timeout, gpu.ErrTimeout},
		{vk.ErrorDeviceLost, gpu.ErrDeviceLost},
		{vk.ErrorOutOfDeviceMemory, gpu.ErrNoDeviceMemory},
		{vk.ErrorOutOfHostMemory, gpu.ErrNoHostMemory},
		{vk.ErrorIncompatibleDriver, gpu.ErrNoDevice},
	}
	for _, c := range cases {
		err := NewError(c.ret)
		if !errors.Is(err, c.want) {
			t.Errorf("NewError(%d): %v is not %v", c.ret, err, c.want)
		}
		if !strings.Contains(err.Error(), "TestNewError") {
			t.Errorf("NewError(%d): %q does not name the caller", c.ret, err)
		}
	}
	if err := NewError(vk.ErrorFeatureNotPresent); err == nil || errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("unclassified result: got %v", err)
	}
}

func TestFindRequiredMemoryType(t *testing.T) {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 3
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	props.MemoryTypes[2].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

	coherent := vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	if i, ok := FindRequiredMemoryType(props, 0b111, coherent); !ok || i != 2 {
		t.Errorf("host coherent: got %d, %v", i, ok)
	}
	if _, ok := FindRequiredMemoryType(props, 0b011, coherent); ok {
		t.Error("host coherent excluded by type bits: found a type")
	}
	if i, ok := findMemoryTypeFallback(props, 0b010, vk.MemoryPropertyDeviceLocalBit); !ok || i != 1 {
		t.Errorf("fallback: got %d, %v", i, ok)
	}
}

func TestRegistry(t *testing.T) {
	var r registry
	a := r.add(&semaphore{})
	b := r.add(&fence{})
	if a == gpu.NullHandle || a == b {
		t.Fatalf("handles %d, %d", a, b)
	}
	if _, ok := any(lookup[*fence](&r, b)).(*fence); !ok {
		t.Fatal("lookup of a fence failed")
	}
	r.remove(a)
	if r.len() != 1 {
		t.Fatalf("len: got %d, want 1", r.len())
	}
	defer func() {
		if recover() == nil {
			t.Fatal("lookup of a destroyed handle did not panic")
		}
	}()
	lookup[*semaphore](&r, a)
}

func TestRegistryWrongKind(t *testing.T) {
	var r registry
	h := r.add(&semaphore{})
	defer func() {
		if recover() == nil {
			t.Fatal("lookup with the wrong kind did not panic")
		}
	}()
	lookup[*fence](&r, h)
}

func TestSliceUint32(t *testing.T) {
	words := sliceUint32([]byte{1, 0, 0, 0, 2, 0, 0, 0})
	if len(words) != 2 {
		t.Fatalf("got %d words", len(words))
	}
}

func TestLoadShaderModuleRejectsPartialWords(t *testing.T) {
	if _, err := LoadShaderModule(nil, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for 3 bytes")
	}
	if _, err := LoadShaderModule(nil, nil); err == nil {
		t.Fatal("expected an error for no bytes")
	}
}
