package vulkan

import (
	"errors"
	"fmt"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// VertexStride is the size of one vertex: position, normal and
// texture coordinates as 32-bit floats.
const VertexStride = 32

// setsPerPool is the number of bindings each descriptor pool holds.
const setsPerPool = 64

type pipeline struct {
	pipe       vk.Pipeline
	layout     vk.PipelineLayout
	setLayout  vk.DescriptorSetLayout
	pushStages vk.ShaderStageFlags
	textures   int
	pools      []vk.DescriptorPool

	// bindings counts live descriptor sets. The layout and pools of a
	// destroyed pipeline stay until the last of them is freed.
	bindings  int
	destroyed bool
}

type binding struct {
	set   vk.DescriptorSet
	pool  vk.DescriptorPool
	owner *pipeline
}

func entry(name string) string {
	if name == "" {
		name = "main"
	}
	return safeString(name)
}

// NewPipeline implements gpu.Device. Set 0 holds the sampler at binding
// 0 followed by desc.Textures sampled images; the push constant range
// is visible to both stages.
func (d *Device) NewPipeline(desc *gpu.PipelineDesc) (gpu.Handle, error) {
	vert, err := LoadShaderModule(d.device, desc.Vertex)
	if err != nil {
		return gpu.NullHandle, fmt.Errorf("vulkan: vertex shader: %w", err)
	}
	defer vk.DestroyShaderModule(d.device, vert, nil)
	frag, err := LoadShaderModule(d.device, desc.Fragment)
	if err != nil {
		return gpu.NullHandle, fmt.Errorf("vulkan: fragment shader: %w", err)
	}
	defer vk.DestroyShaderModule(d.device, frag, nil)

	pass, err := d.renderPass(desc.ColorFormat, desc.DepthFormat)
	if err != nil {
		return gpu.NullHandle, err
	}

	p := &pipeline{
		textures:   desc.Textures,
		pushStages: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}
	if err := d.createLayout(p, desc.PushSize); err != nil {
		return gpu.NullHandle, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vert,
		PName:  entry(desc.VertexEntry),
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: frag,
		PName:  entry(desc.FragmentEntry),
	}}
	attributes := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	// Viewport and scissor are set when a pass begins.
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1,
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
			BlendEnable: vk.False,
		}},
	}
	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              p.layout,
		RenderPass:          pass,
		BasePipelineIndex:   -1,
	}
	if desc.DepthFormat != gpu.FormatUndefined {
		info.PDepthStencilState = &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vk.True,
			DepthWriteEnable: vk.True,
			DepthCompareOp:   vk.CompareOpLessOrEqual,
			MaxDepthBounds:   1,
		}
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(d.device, vk.PipelineCache(vk.NullHandle), 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if isError(ret) {
		d.destroyLayout(p)
		return gpu.NullHandle, fmt.Errorf("vulkan: pipeline %q: %w", desc.Label, NewError(ret))
	}
	p.pipe = pipelines[0]
	return d.reg.add(p), nil
}

func (d *Device) createLayout(p *pipeline, pushSize uint32) error {
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}}
	for i := 0; i < p.textures; i++ {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i + 1),
			DescriptorType:  vk.DescriptorTypeSampledImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	ret := vk.CreateDescriptorSetLayout(d.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &p.setLayout)
	if isError(ret) {
		return NewError(ret)
	}

	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.setLayout},
	}
	if pushSize > 0 {
		info.PushConstantRangeCount = 1
		info.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: p.pushStages,
			Size:       pushSize,
		}}
	}
	if ret := vk.CreatePipelineLayout(d.device, &info, nil, &p.layout); isError(ret) {
		vk.DestroyDescriptorSetLayout(d.device, p.setLayout, nil)
		return NewError(ret)
	}
	return nil
}

func (d *Device) destroyLayout(p *pipeline) {
	for _, pool := range p.pools {
		vk.DestroyDescriptorPool(d.device, pool, nil)
	}
	vk.DestroyPipelineLayout(d.device, p.layout, nil)
	vk.DestroyDescriptorSetLayout(d.device, p.setLayout, nil)
}

func (d *Device) destroyPipeline(h gpu.Handle) {
	p := lookup[*pipeline](&d.reg, h)
	d.reg.remove(h)
	vk.DestroyPipeline(d.device, p.pipe, nil)
	p.destroyed = true
	if p.bindings == 0 {
		d.destroyLayout(p)
	}
}

func (d *Device) newDescriptorPool(p *pipeline) (vk.DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeSampler,
		DescriptorCount: setsPerPool,
	}}
	if p.textures > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeSampledImage,
			DescriptorCount: uint32(setsPerPool * p.textures),
		})
	}
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       setsPerPool,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if isError(ret) {
		return vk.NullDescriptorPool, NewError(ret)
	}
	p.pools = append(p.pools, pool)
	return pool, nil
}

// allocateSet takes a set from the newest pool, adding a pool when it
// is exhausted.
func (d *Device) allocateSet(p *pipeline) (vk.DescriptorSet, vk.DescriptorPool, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{p.setLayout},
	}
	var set vk.DescriptorSet
	if n := len(p.pools); n > 0 {
		info.DescriptorPool = p.pools[n-1]
		if ret := vk.AllocateDescriptorSets(d.device, &info, &set); !isError(ret) {
			return set, info.DescriptorPool, nil
		}
	}
	pool, err := d.newDescriptorPool(p)
	if err != nil {
		return set, nil, err
	}
	info.DescriptorPool = pool
	if ret := vk.AllocateDescriptorSets(d.device, &info, &set); isError(ret) {
		return set, nil, NewError(ret)
	}
	return set, pool, nil
}

// NewBinding implements gpu.Device.
func (d *Device) NewBinding(ph gpu.Handle, views []gpu.Handle) (gpu.Handle, error) {
	p := lookup[*pipeline](&d.reg, ph)
	if len(views) != p.textures {
		return gpu.NullHandle, errors.New("vulkan: binding view count does not match the pipeline")
	}
	set, pool, err := d.allocateSet(p)
	if err != nil {
		return gpu.NullHandle, fmt.Errorf("vulkan: descriptor set: %w", err)
	}
	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo:      []vk.DescriptorImageInfo{{Sampler: d.sampler}},
	}}
	for i, h := range views {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(i + 1),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   lookup[*imageView](&d.reg, h).view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		})
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
	p.bindings++
	return d.reg.add(&binding{set: set, pool: pool, owner: p}), nil
}

func (d *Device) destroyBinding(h gpu.Handle) {
	b := lookup[*binding](&d.reg, h)
	d.reg.remove(h)
	vk.FreeDescriptorSets(d.device, b.pool, 1, &b.set)
	p := b.owner
	p.bindings--
	if p.destroyed && p.bindings == 0 {
		d.destroyLayout(p)
	}
}
