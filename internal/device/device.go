// Package device resolves configured device names to live devices and their
// attribute-to-point bindings.
package device

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNotFound marks a device name absent from the database.
var ErrNotFound = errors.New("device not found")

// Device is one resolved device: a name and its attribute-to-point mapping.
type Device struct {
	Name   string
	Points map[string]string
}

// Point resolves an attribute to its raw point name. A missing attribute is
// a binding-time error for the enclosing check.
func (d *Device) Point(attr string) (string, error) {
	point, ok := d.Points[attr]
	if !ok {
		return "", fmt.Errorf("attribute %s.%s does not exist", d.Name, attr)
	}
	return point, nil
}

// Attributes returns the device's attribute names, sorted.
func (d *Device) Attributes() []string {
	attrs := make([]string, 0, len(d.Points))
	for attr := range d.Points {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	return attrs
}

// Database looks up live devices by name during preparation.
type Database interface {
	Resolve(name string) (*Device, error)
}

// Registry is a static, file-backed device database.
type Registry struct {
	devices map[string]*Device
}

// NewRegistry builds a registry from already-constructed devices.
func NewRegistry(devices ...*Device) *Registry {
	byName := make(map[string]*Device, len(devices))
	for _, d := range devices {
		byName[d.Name] = d
	}
	return &Registry{devices: byName}
}

type registryFile struct {
	Devices map[string]map[string]string `yaml:"devices"`
}

// LoadRegistry reads a device registry file mapping device names to their
// attribute-to-point bindings.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse device registry: %w", err)
	}

	devices := make([]*Device, 0, len(file.Devices))
	for name, points := range file.Devices {
		devices = append(devices, &Device{Name: name, Points: points})
	}
	return NewRegistry(devices...), nil
}

func (r *Registry) Resolve(name string) (*Device, error) {
	dev, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return dev, nil
}
