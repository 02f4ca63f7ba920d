package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

// Manager resolves asset paths under a single root directory and loads
// their contents. Hot reload is handled separately by the Watcher.
type Manager struct {
	root string
}

// NewManager resolves the asset root. An explicit root wins; otherwise the
// assets directory next to the working directory is used.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = filepath.Join(wd, "assets")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("asset root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root %s is not a directory", root)
	}
	return &Manager{root: root}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Resolve turns an asset-relative path into an absolute one.
func (m *Manager) Resolve(relative string) string {
	return filepath.Join(m.root, relative)
}

// LoadShaderBytecode reads the compiled SPIR-V blob for a named shader
// stage, e.g. ("scene", gpu.ShaderStageVertex) -> shaders/scene.vert.spv.
func (m *Manager) LoadShaderBytecode(name string, stage gpu.ShaderStage) ([]byte, error) {
	var suffix string
	switch stage {
	case gpu.ShaderStageVertex:
		suffix = "vert"
	case gpu.ShaderStageFragment:
		suffix = "frag"
	default:
		return nil, fmt.Errorf("unknown shader stage %d", stage)
	}

	path := m.Resolve(filepath.Join("shaders", fmt.Sprintf("%s.%s.spv", name, suffix)))
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load shader %s: %w", path, err)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shader %s is not valid SPIR-V: %d bytes", path, len(code))
	}
	return code, nil
}

// LoadText reads a text asset such as a chart file.
func (m *Manager) LoadText(relative string) (string, error) {
	data, err := os.ReadFile(m.Resolve(relative))
	if err != nil {
		return "", fmt.Errorf("load asset %s: %w", relative, err)
	}
	return string(data), nil
}
