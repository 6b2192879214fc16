package vulkan

import (
	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

func vkFormat(f gpu.Format) vk.Format {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatRGBA8SRGB:
		return vk.FormatR8g8b8a8Srgb
	case gpu.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatBGRA8SRGB:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatD32Float:
		return vk.FormatD32Sfloat
	case gpu.FormatD24UnormS8:
		return vk.FormatD24UnormS8Uint
	}
	return vk.FormatUndefined
}

func gpuFormat(f vk.Format) gpu.Format {
	switch f {
	case vk.FormatR8g8b8a8Unorm:
		return gpu.FormatRGBA8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return gpu.FormatRGBA8SRGB
	case vk.FormatB8g8r8a8Unorm:
		return gpu.FormatBGRA8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return gpu.FormatBGRA8SRGB
	case vk.FormatD32Sfloat:
		return gpu.FormatD32Float
	case vk.FormatD24UnormS8Uint:
		return gpu.FormatD24UnormS8
	}
	return gpu.FormatUndefined
}

func vkLayout(l gpu.Layout) vk.ImageLayout {
	switch l {
	case gpu.LayoutGeneral:
		return vk.ImageLayoutGeneral
	case gpu.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case gpu.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.LayoutShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.LayoutColorTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.LayoutDepthTarget:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.LayoutPresent:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func vkStages(s gpu.Stage, none vk.PipelineStageFlagBits) vk.PipelineStageFlags {
	if s == gpu.StageNone {
		return vk.PipelineStageFlags(none)
	}
	var bits vk.PipelineStageFlagBits
	if s&gpu.StageTop != 0 {
		bits |= vk.PipelineStageTopOfPipeBit
	}
	if s&gpu.StageVertexInput != 0 {
		bits |= vk.PipelineStageVertexInputBit
	}
	if s&gpu.StageVertexShader != 0 {
		bits |= vk.PipelineStageVertexShaderBit
	}
	if s&gpu.StageFragmentShader != 0 {
		bits |= vk.PipelineStageFragmentShaderBit
	}
	if s&gpu.StageDepthTest != 0 {
		bits |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	}
	if s&gpu.StageColorOutput != 0 {
		bits |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&gpu.StageTransfer != 0 {
		bits |= vk.PipelineStageTransferBit
	}
	if s&gpu.StageBottom != 0 {
		bits |= vk.PipelineStageBottomOfPipeBit
	}
	return vk.PipelineStageFlags(bits)
}

func vkAccess(a gpu.Access) vk.AccessFlags {
	var bits vk.AccessFlagBits
	if a&gpu.AccessVertexRead != 0 {
		bits |= vk.AccessVertexAttributeReadBit
	}
	if a&gpu.AccessIndexRead != 0 {
		bits |= vk.AccessIndexReadBit
	}
	if a&gpu.AccessShaderRead != 0 {
		bits |= vk.AccessShaderReadBit
	}
	if a&gpu.AccessColorWrite != 0 {
		bits |= vk.AccessColorAttachmentWriteBit
	}
	if a&gpu.AccessDepthRead != 0 {
		bits |= vk.AccessDepthStencilAttachmentReadBit
	}
	if a&gpu.AccessDepthWrite != 0 {
		bits |= vk.AccessDepthStencilAttachmentWriteBit
	}
	if a&gpu.AccessTransferRead != 0 {
		bits |= vk.AccessTransferReadBit
	}
	if a&gpu.AccessTransferWrite != 0 {
		bits |= vk.AccessTransferWriteBit
	}
	if a&gpu.AccessMemoryRead != 0 {
		bits |= vk.AccessMemoryReadBit
	}
	return vk.AccessFlags(bits)
}

func vkBufferUsage(u gpu.Usage) vk.BufferUsageFlags {
	var bits vk.BufferUsageFlagBits
	if u&gpu.UsageTransferSrc != 0 {
		bits |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.UsageTransferDst != 0 {
		bits |= vk.BufferUsageTransferDstBit
	}
	if u&gpu.UsageVertex != 0 {
		bits |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.UsageIndex != 0 {
		bits |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(bits)
}

func vkImageUsage(u gpu.Usage) vk.ImageUsageFlags {
	var bits vk.ImageUsageFlagBits
	if u&gpu.UsageTransferSrc != 0 {
		bits |= vk.ImageUsageTransferSrcBit
	}
	if u&gpu.UsageTransferDst != 0 {
		bits |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.UsageSampled != 0 {
		bits |= vk.ImageUsageSampledBit
	}
	if u&gpu.UsageColorTarget != 0 {
		bits |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.UsageDepthTarget != 0 {
		bits |= vk.ImageUsageDepthStencilAttachmentBit
	}
	return vk.ImageUsageFlags(bits)
}

// vkAspect returns the aspect mask of a view or barrier. Barriers on
// combined depth-stencil formats must name both aspects.
func vkAspect(a gpu.Aspect, f gpu.Format, barrier bool) vk.ImageAspectFlags {
	if a != gpu.AspectDepth {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	if barrier && f == gpu.FormatD24UnormS8 {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
}

func vkPresentMode(m gpu.PresentMode) vk.PresentMode {
	switch m {
	case gpu.PresentMailbox:
		return vk.PresentModeMailbox
	case gpu.PresentImmediate:
		return vk.PresentModeImmediate
	case gpu.PresentFIFORelaxed:
		return vk.PresentModeFifoRelaxed
	}
	return vk.PresentModeFifo
}

func gpuPresentMode(m vk.PresentMode) (gpu.PresentMode, bool) {
	switch m {
	case vk.PresentModeFifo:
		return gpu.PresentFIFO, true
	case vk.PresentModeMailbox:
		return gpu.PresentMailbox, true
	case vk.PresentModeImmediate:
		return gpu.PresentImmediate, true
	case vk.PresentModeFifoRelaxed:
		return gpu.PresentFIFORelaxed, true
	}
	return 0, false
}

func vkExtent(e gpu.Extent) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func mipOffset(e gpu.Extent) vk.Offset3D {
	return vk.Offset3D{X: int32(e.Width), Y: int32(e.Height), Z: 1}
}
