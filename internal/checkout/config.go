// Package checkout implements the configuration tree of checks against live
// control points: the serializable tree itself, its preparation against live
// resources, and the execution engine that rolls per-leaf results up into
// group and file verdicts.
package checkout

import (
	"iter"

	"github.com/speedwagon-io/checkout/internal/comparison"
	"github.com/speedwagon-io/checkout/internal/result"
	"github.com/speedwagon-io/checkout/internal/tools"
)

// Metadata is the optional name/description/tag block shared by every
// configuration node.
type Metadata struct {
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// Meta exposes the shared metadata. Promoted onto every variant.
func (m *Metadata) Meta() *Metadata {
	return m
}

// Configuration is one node of the checkout tree. The variant set is closed:
// Group, DeviceCheck, PointCheck and ToolCheck.
type Configuration interface {
	Meta() *Metadata

	configuration()
}

// Group owns an ordered list of child configurations and the mode used to
// fold their results.
type Group struct {
	Metadata `yaml:",inline"`

	Mode    result.Mode
	Configs []Configuration
}

func (*Group) configuration() {}

// WalkConfigs yields the group's descendants depth-first and pre-order:
// every child group is yielded before its own children. The sequence is
// restartable; each range starts a fresh traversal.
func (g *Group) WalkConfigs() iter.Seq[Configuration] {
	return func(yield func(Configuration) bool) {
		g.walk(yield)
	}
}

func (g *Group) walk(yield func(Configuration) bool) bool {
	for _, cfg := range g.Configs {
		if !yield(cfg) {
			return false
		}
		if sub, ok := cfg.(*Group); ok {
			if !sub.walk(yield) {
				return false
			}
		}
	}
	return true
}

// DeviceCheck verifies one or more devices: every named device is resolved
// and each attribute's comparisons (plus the shared ones) run against the
// attribute's live point.
type DeviceCheck struct {
	Metadata `yaml:",inline"`

	Devices []string                   `yaml:"devices"`
	ByAttr  map[string]comparison.List `yaml:"by_attr"`
	Shared  comparison.List            `yaml:"shared,omitempty"`
}

func (*DeviceCheck) configuration() {}

// PointCheck verifies raw data points addressed by name, without a device
// database lookup.
type PointCheck struct {
	Metadata `yaml:",inline"`

	ByPoint map[string]comparison.List `yaml:"by_point"`
	Shared  comparison.List            `yaml:"shared,omitempty"`
}

func (*PointCheck) configuration() {}

// ToolCheck verifies status via a tool run, keying comparisons into the
// tool's result bundle.
type ToolCheck struct {
	Metadata `yaml:",inline"`

	Tool   tools.Tool
	ByKey  map[string]comparison.List
	Shared comparison.List
}

func (*ToolCheck) configuration() {}

// File is a whole checkout definition: a version marker and the root group.
type File struct {
	Version int   `yaml:"version"`
	Root    Group `yaml:"root"`
}

// WalkConfigs yields every configuration in the file, root group included,
// depth-first and pre-order.
func (f *File) WalkConfigs() iter.Seq[Configuration] {
	return func(yield func(Configuration) bool) {
		if !yield(&f.Root) {
			return
		}
		f.Root.walk(yield)
	}
}

// GetByDevice yields the device checks naming the given device.
func (f *File) GetByDevice(name string) iter.Seq[*DeviceCheck] {
	return func(yield func(*DeviceCheck) bool) {
		for cfg := range f.WalkConfigs() {
			check, ok := cfg.(*DeviceCheck)
			if !ok {
				continue
			}
			for _, dev := range check.Devices {
				if dev == name {
					if !yield(check) {
						return
					}
					break
				}
			}
		}
	}
}

// GetByPoint yields the point checks keyed by the given point name.
func (f *File) GetByPoint(point string) iter.Seq[*PointCheck] {
	return func(yield func(*PointCheck) bool) {
		for cfg := range f.WalkConfigs() {
			check, ok := cfg.(*PointCheck)
			if !ok {
				continue
			}
			if _, ok := check.ByPoint[point]; ok {
				if !yield(check) {
					return
				}
			}
		}
	}
}

// GetByTag yields the configurations whose tag set intersects the given
// tags. No tags yields nothing.
func (f *File) GetByTag(tags ...string) iter.Seq[Configuration] {
	return func(yield func(Configuration) bool) {
		if len(tags) == 0 {
			return
		}
		wanted := make(map[string]struct{}, len(tags))
		for _, tag := range tags {
			wanted[tag] = struct{}{}
		}
		for cfg := range f.WalkConfigs() {
			for _, tag := range cfg.Meta().Tags {
				if _, ok := wanted[tag]; ok {
					if !yield(cfg) {
						return
					}
					break
				}
			}
		}
	}
}
