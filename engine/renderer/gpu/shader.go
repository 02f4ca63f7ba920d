package gpu

import "fmt"

// ShaderStage identifies a pipeline stage a module is compiled for.
type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	}
	return "unknown"
}

// StageFlag converts the stage to its flag form for descriptor bindings.
func (s ShaderStage) StageFlag() ShaderStageFlags {
	switch s {
	case ShaderStageVertex:
		return ShaderStageVertexBit
	case ShaderStageFragment:
		return ShaderStageFragmentBit
	}
	return 0
}

// ShaderModule wraps compiled shader bytecode loaded by an external asset
// loader.
type ShaderModule struct {
	raw    Handle
	stage  ShaderStage
	device *Device
}

// CreateShaderModule uploads compiled bytecode for the given stage.
func (d *Device) CreateShaderModule(code []byte, stage ShaderStage) (*ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("create %s shader module: bytecode length %d is not a multiple of 4", stage, len(code))
	}
	raw, err := d.backend.CreateShaderModule(code, stage)
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", stage, err)
	}
	return &ShaderModule{raw: raw, stage: stage, device: d}, nil
}

// Handle exposes the driver handle for pipeline construction.
func (m *ShaderModule) Handle() Handle {
	return m.raw
}

func (m *ShaderModule) Stage() ShaderStage {
	return m.stage
}

// Destroy releases the module. Safe once all pipelines using it are created;
// the driver keeps what it needs.
func (m *ShaderModule) Destroy() {
	if m.raw != nil {
		m.device.backend.DestroyShaderModule(m.raw)
		m.raw = nil
	}
}
