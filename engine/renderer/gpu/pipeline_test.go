package gpu_test

import (
	"testing"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

func testShader(t *testing.T, device *gpu.Device, stage gpu.ShaderStage) *gpu.ShaderModule {
	t.Helper()
	module, err := device.CreateShaderModule(make([]byte, 32), stage)
	if err != nil {
		t.Fatalf("CreateShaderModule failed: %v", err)
	}
	return module
}

func TestCreateShaderModuleRejectsTruncatedCode(t *testing.T) {
	device, _ := newTestDevice(t, gpu.DefaultDeviceOptions())

	if _, err := device.CreateShaderModule(make([]byte, 33), gpu.ShaderStageVertex); err == nil {
		t.Fatal("CreateShaderModule accepted bytecode not a multiple of 4 bytes")
	}
}

func TestCreatePipeline(t *testing.T) {
	device, _ := newTestDevice(t, gpu.DefaultDeviceOptions())
	layout := uniformLayout(t, device)

	pipeline, err := device.CreatePipeline(&gpu.PipelineDescriptor{
		ShaderModules: []*gpu.ShaderModule{
			testShader(t, device, gpu.ShaderStageVertex),
			testShader(t, device, gpu.ShaderStageFragment),
		},
		PrimitiveTopology:      gpu.TopologyTriangleList,
		ViewportScissorExtent:  gpu.Extent2D{Width: 1920, Height: 1200},
		ColorBlendAttachments:  []gpu.ColorBlendAttachment{{BlendEnable: true}},
		ColorAttachmentFormats: []gpu.Format{gpu.FormatB8G8R8A8Unorm},
		DescriptorSetLayouts:   []*gpu.DescriptorSetLayout{layout},
	})
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	pipeline.Destroy()
}

func TestCreatePipelineRequiresShaders(t *testing.T) {
	device, _ := newTestDevice(t, gpu.DefaultDeviceOptions())

	if _, err := device.CreatePipeline(&gpu.PipelineDescriptor{
		ColorBlendAttachments:  []gpu.ColorBlendAttachment{{}},
		ColorAttachmentFormats: []gpu.Format{gpu.FormatB8G8R8A8Unorm},
	}); err == nil {
		t.Fatal("CreatePipeline accepted a descriptor without shader modules")
	}
}

func TestCreatePipelineBlendStateMustMatchAttachments(t *testing.T) {
	device, _ := newTestDevice(t, gpu.DefaultDeviceOptions())

	if _, err := device.CreatePipeline(&gpu.PipelineDescriptor{
		ShaderModules: []*gpu.ShaderModule{
			testShader(t, device, gpu.ShaderStageVertex),
		},
		ColorBlendAttachments:  []gpu.ColorBlendAttachment{{}, {}},
		ColorAttachmentFormats: []gpu.Format{gpu.FormatB8G8R8A8Unorm},
	}); err == nil {
		t.Fatal("CreatePipeline accepted mismatched blend attachment count")
	}
}

func TestCreatePipelineRejectsUndefinedColorFormat(t *testing.T) {
	device, _ := newTestDevice(t, gpu.DefaultDeviceOptions())

	if _, err := device.CreatePipeline(&gpu.PipelineDescriptor{
		ShaderModules: []*gpu.ShaderModule{
			testShader(t, device, gpu.ShaderStageVertex),
		},
		ColorBlendAttachments:  []gpu.ColorBlendAttachment{{}},
		ColorAttachmentFormats: []gpu.Format{gpu.FormatUndefined},
	}); err == nil {
		t.Fatal("CreatePipeline accepted an undefined color attachment format")
	}
}
