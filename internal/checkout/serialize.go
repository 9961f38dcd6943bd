package checkout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/speedwagon-io/checkout/internal/comparison"
	"github.com/speedwagon-io/checkout/internal/result"
	"github.com/speedwagon-io/checkout/internal/tools"
)

// Child configurations live in YAML as single-key mappings, the key naming
// the variant: {group: ...}, {device: ...}, {point: ...}, {tool: ...}.

const (
	tagGroup  = "group"
	tagDevice = "device"
	tagPoint  = "point"
	tagTool   = "tool"
)

func configTag(cfg Configuration) (string, error) {
	switch cfg.(type) {
	case *Group:
		return tagGroup, nil
	case *DeviceCheck:
		return tagDevice, nil
	case *PointCheck:
		return tagPoint, nil
	case *ToolCheck:
		return tagTool, nil
	}
	return "", fmt.Errorf("unknown configuration type %T", cfg)
}

func decodeConfiguration(node *yaml.Node) (Configuration, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: configuration must be a single-key mapping", node.Line)
	}
	tag, body := node.Content[0].Value, node.Content[1]

	var cfg Configuration
	switch tag {
	case tagGroup:
		cfg = &Group{}
	case tagDevice:
		cfg = &DeviceCheck{}
	case tagPoint:
		cfg = &PointCheck{}
	case tagTool:
		cfg = &ToolCheck{}
	default:
		return nil, fmt.Errorf("line %d: unknown configuration %q", node.Line, tag)
	}
	if err := body.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s configuration: %w", tag, err)
	}
	return cfg, nil
}

func (g *Group) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Metadata `yaml:",inline"`

		Mode    result.Mode `yaml:"mode"`
		Configs []yaml.Node `yaml:"configs"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	g.Metadata = raw.Metadata
	g.Mode = raw.Mode
	if g.Mode == "" {
		g.Mode = result.ModeAll
	}
	g.Configs = g.Configs[:0]
	for i := range raw.Configs {
		cfg, err := decodeConfiguration(&raw.Configs[i])
		if err != nil {
			return err
		}
		g.Configs = append(g.Configs, cfg)
	}
	return nil
}

func (g Group) MarshalYAML() (any, error) {
	configs := make([]map[string]Configuration, 0, len(g.Configs))
	for _, cfg := range g.Configs {
		tag, err := configTag(cfg)
		if err != nil {
			return nil, err
		}
		configs = append(configs, map[string]Configuration{tag: cfg})
	}
	return struct {
		Metadata `yaml:",inline"`

		Mode    result.Mode                `yaml:"mode"`
		Configs []map[string]Configuration `yaml:"configs,omitempty"`
	}{Metadata: g.Metadata, Mode: g.Mode, Configs: configs}, nil
}

func (tc *ToolCheck) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Metadata `yaml:",inline"`

		Tool   yaml.Node                  `yaml:"tool"`
		ByKey  map[string]comparison.List `yaml:"by_key"`
		Shared comparison.List            `yaml:"shared"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Tool.Kind == 0 {
		return fmt.Errorf("line %d: tool check requires a tool", node.Line)
	}
	tool, err := tools.Decode(&raw.Tool)
	if err != nil {
		return err
	}

	tc.Metadata = raw.Metadata
	tc.Tool = tool
	tc.ByKey = raw.ByKey
	tc.Shared = raw.Shared
	return nil
}

func (tc ToolCheck) MarshalYAML() (any, error) {
	tool, err := tools.Encode(tc.Tool)
	if err != nil {
		return nil, err
	}
	return struct {
		Metadata `yaml:",inline"`

		Tool   any                        `yaml:"tool"`
		ByKey  map[string]comparison.List `yaml:"by_key,omitempty"`
		Shared comparison.List            `yaml:"shared,omitempty"`
	}{Metadata: tc.Metadata, Tool: tool, ByKey: tc.ByKey, Shared: tc.Shared}, nil
}

// Parse decodes a checkout file from its serialized form.
func Parse(data []byte) (*File, error) {
	file := &File{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("parse checkout file: %w", err)
	}
	if file.Root.Mode == "" {
		file.Root.Mode = result.ModeAll
	}
	return file, nil
}

// Load reads and parses a checkout file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkout file: %w", err)
	}
	return Parse(data)
}

// Marshal serializes a checkout file back to YAML.
func Marshal(file *File) ([]byte, error) {
	data, err := yaml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout file: %w", err)
	}
	return data, nil
}
