package checkout

import (
	"fmt"
	"iter"
	"log/slog"
	"sort"

	"github.com/speedwagon-io/checkout/internal/cache"
	"github.com/speedwagon-io/checkout/internal/comparison"
	"github.com/speedwagon-io/checkout/internal/device"
	"github.com/speedwagon-io/checkout/internal/lib/logger/sl"
	"github.com/speedwagon-io/checkout/internal/result"
)

const reasonPrepareFailed = "at least one configuration failed to initialize"

// PreparedItem is what a comparison walk yields: a bound comparison or the
// record of a configuration that failed to bind.
type PreparedItem interface {
	preparedItem()
}

// FailedConfiguration records a configuration (or one binding inside it)
// that could not be prepared. The rest of the tree is unaffected.
type FailedConfiguration struct {
	Parent *PreparedGroup
	Config Configuration
	Result result.Result
	Err    error
}

func (*FailedConfiguration) preparedItem() {}

// PreparedNode is a prepared configuration below the file root. The variant
// set mirrors Configuration: PreparedGroup, PreparedDeviceCheck,
// PreparedPointCheck and PreparedToolCheck.
type PreparedNode interface {
	Config() Configuration
	Parent() *PreparedGroup
	// Result is the node's folded result from the most recent run. Before
	// any run it is success.
	Result() result.Result
	WalkComparisons() iter.Seq[PreparedItem]
	Path() []string

	fold() result.Result
}

// PreparedGroup holds prepared children plus the records of children that
// failed to prepare entirely.
type PreparedGroup struct {
	config *Group
	parent *PreparedGroup

	Configs  []PreparedNode
	Failures []*FailedConfiguration

	lastResult result.Result
}

func (g *PreparedGroup) Config() Configuration { return g.config }
func (g *PreparedGroup) Parent() *PreparedGroup { return g.parent }
func (g *PreparedGroup) Result() result.Result { return g.lastResult }

func (g *PreparedGroup) Path() []string {
	return nodePath(g)
}

// WalkComparisons yields the group's failures first, then every item of its
// children, depth-first.
func (g *PreparedGroup) WalkComparisons() iter.Seq[PreparedItem] {
	return func(yield func(PreparedItem) bool) {
		g.walkItems(yield)
	}
}

func (g *PreparedGroup) walkItems(yield func(PreparedItem) bool) bool {
	for _, failed := range g.Failures {
		if !yield(failed) {
			return false
		}
	}
	for _, child := range g.Configs {
		if sub, ok := child.(*PreparedGroup); ok {
			if !sub.walkItems(yield) {
				return false
			}
			continue
		}
		for item := range child.WalkComparisons() {
			if !yield(item) {
				return false
			}
		}
	}
	return true
}

func (g *PreparedGroup) fold() result.Result {
	items := make([]result.Item, 0, len(g.Configs))
	for _, child := range g.Configs {
		items = append(items, result.FromResult(child.fold()))
	}

	res := result.Result{Severity: result.Success}
	switch {
	case len(g.Failures) > 0:
		res = result.Result{Severity: result.Error, Reason: reasonPrepareFailed}
	default:
		mode := g.config.Mode
		if mode == "" {
			mode = result.ModeAll
		}
		res = result.Result{Severity: result.Combine(mode, items)}
	}
	g.lastResult = res
	return res
}

// preparedChecks is the shared core of the prepared terminal configurations:
// bound comparisons, per-binding failures, and the all-mode fold over them.
type preparedChecks struct {
	parent *PreparedGroup

	Comparisons []*PreparedComparison
	Failures    []*FailedConfiguration

	lastResult result.Result
}

func (p *preparedChecks) Parent() *PreparedGroup { return p.parent }
func (p *preparedChecks) Result() result.Result { return p.lastResult }

func (p *preparedChecks) WalkComparisons() iter.Seq[PreparedItem] {
	return func(yield func(PreparedItem) bool) {
		for _, failed := range p.Failures {
			if !yield(failed) {
				return
			}
		}
		for _, pc := range p.Comparisons {
			if !yield(pc) {
				return
			}
		}
	}
}

func (p *preparedChecks) fold() result.Result {
	res := result.Result{Severity: result.Success}
	if len(p.Failures) > 0 {
		res = result.Result{Severity: result.Error, Reason: reasonPrepareFailed}
	} else {
		items := make([]result.Item, 0, len(p.Comparisons))
		for _, pc := range p.Comparisons {
			items = append(items, pc.resultItem())
		}
		res = result.Result{Severity: result.Combine(result.ModeAll, items)}
	}
	p.lastResult = res
	return res
}

// PreparedDeviceCheck binds a device check's comparisons to the live points
// behind each device attribute.
type PreparedDeviceCheck struct {
	preparedChecks

	config  *DeviceCheck
	Devices []*device.Device
}

func (d *PreparedDeviceCheck) Config() Configuration { return d.config }
func (d *PreparedDeviceCheck) Path() []string { return nodePath(d) }

// PreparedPointCheck binds a point check's comparisons to its named points.
type PreparedPointCheck struct {
	preparedChecks

	config *PointCheck
}

func (p *PreparedPointCheck) Config() Configuration { return p.config }
func (p *PreparedPointCheck) Path() []string { return nodePath(p) }

// PreparedToolCheck binds a tool check's comparisons to keys of the tool's
// result bundle. Keys are validated here, before any run.
type PreparedToolCheck struct {
	preparedChecks

	config *ToolCheck
}

func (t *PreparedToolCheck) Config() Configuration { return t.config }
func (t *PreparedToolCheck) Path() []string { return nodePath(t) }

// PreparedFile is a checkout file bound to live resources and ready to run.
type PreparedFile struct {
	File  *File
	Cache *cache.DataCache
	Root  *PreparedGroup
}

// Prepare binds every configuration of the file to its live resources.
// Nodes that fail to bind are recorded and isolated; preparation itself
// never fails.
func Prepare(log *slog.Logger, file *File, db device.Database, dataCache *cache.DataCache) *PreparedFile {
	pf := &PreparedFile{File: file, Cache: dataCache}
	pf.Root = prepareGroup(log, &file.Root, nil, db, dataCache)
	return pf
}

// Result is the root group's folded result from the most recent run.
func (f *PreparedFile) Result() result.Result {
	return f.Root.Result()
}

// WalkComparisons yields every prepared comparison and preparation failure
// in the file, depth-first.
func (f *PreparedFile) WalkComparisons() iter.Seq[PreparedItem] {
	return f.Root.WalkComparisons()
}

// WalkGroups yields every prepared group, root first, pre-order.
func (f *PreparedFile) WalkGroups() iter.Seq[*PreparedGroup] {
	return func(yield func(*PreparedGroup) bool) {
		walkGroups(f.Root, yield)
	}
}

func walkGroups(g *PreparedGroup, yield func(*PreparedGroup) bool) bool {
	if !yield(g) {
		return false
	}
	for _, child := range g.Configs {
		if sub, ok := child.(*PreparedGroup); ok {
			if !walkGroups(sub, yield) {
				return false
			}
		}
	}
	return true
}

func prepareGroup(log *slog.Logger, grp *Group, parent *PreparedGroup, db device.Database, dataCache *cache.DataCache) *PreparedGroup {
	pg := &PreparedGroup{config: grp, parent: parent}
	for _, cfg := range grp.Configs {
		switch cfg := cfg.(type) {
		case *Group:
			pg.Configs = append(pg.Configs, prepareGroup(log, cfg, pg, db, dataCache))
		case *DeviceCheck:
			node, failed := prepareDeviceCheck(log, cfg, pg, db, dataCache)
			if failed != nil {
				log.Warn("configuration failed to prepare",
					slog.String("configuration", cfg.Name),
					sl.Err(failed.Err))
				pg.Failures = append(pg.Failures, failed)
				continue
			}
			pg.Configs = append(pg.Configs, node)
		case *PointCheck:
			pg.Configs = append(pg.Configs, preparePointCheck(cfg, pg, dataCache))
		case *ToolCheck:
			pg.Configs = append(pg.Configs, prepareToolCheck(log, cfg, pg, dataCache))
		}
	}
	return pg
}

func prepareDeviceCheck(
	log *slog.Logger,
	cfg *DeviceCheck,
	parent *PreparedGroup,
	db device.Database,
	dataCache *cache.DataCache,
) (*PreparedDeviceCheck, *FailedConfiguration) {
	devices := make([]*device.Device, 0, len(cfg.Devices))
	for _, name := range cfg.Devices {
		dev, err := db.Resolve(name)
		if err != nil {
			err = fmt.Errorf("load device %q: %w", name, err)
			return nil, &FailedConfiguration{
				Parent: parent,
				Config: cfg,
				Result: result.Result{Severity: result.Error, Reason: err.Error()},
				Err:    err,
			}
		}
		devices = append(devices, dev)
	}

	node := &PreparedDeviceCheck{
		preparedChecks: preparedChecks{parent: parent},
		config:         cfg,
		Devices:        devices,
	}
	for _, dev := range devices {
		for _, attr := range sortedKeys(cfg.ByAttr) {
			point, err := dev.Point(attr)
			if err != nil {
				log.Warn("comparison failed to bind",
					slog.String("device", dev.Name),
					slog.String("attribute", attr),
					sl.Err(err))
				node.Failures = append(node.Failures, &FailedConfiguration{
					Parent: parent,
					Config: cfg,
					Result: result.Result{Severity: result.Error, Reason: err.Error()},
					Err:    err,
				})
				continue
			}
			identifier := dev.Name + "." + attr
			for _, cmp := range joinComparisons(cfg.ByAttr[attr], cfg.Shared) {
				node.Comparisons = append(node.Comparisons, &PreparedComparison{
					cache:      dataCache,
					parent:     node,
					Identifier: identifier,
					Comparison: cmp,
					Signal:     dataCache.Signals().Get(point),
				})
			}
		}
	}
	return node, nil
}

func preparePointCheck(cfg *PointCheck, parent *PreparedGroup, dataCache *cache.DataCache) *PreparedPointCheck {
	node := &PreparedPointCheck{
		preparedChecks: preparedChecks{parent: parent},
		config:         cfg,
	}
	for _, point := range sortedKeys(cfg.ByPoint) {
		for _, cmp := range joinComparisons(cfg.ByPoint[point], cfg.Shared) {
			node.Comparisons = append(node.Comparisons, &PreparedComparison{
				cache:      dataCache,
				parent:     node,
				Identifier: point,
				Comparison: cmp,
				Signal:     dataCache.Signals().Get(point),
			})
		}
	}
	return node
}

func prepareToolCheck(log *slog.Logger, cfg *ToolCheck, parent *PreparedGroup, dataCache *cache.DataCache) *PreparedToolCheck {
	node := &PreparedToolCheck{
		preparedChecks: preparedChecks{parent: parent},
		config:         cfg,
	}
	for _, key := range sortedKeys(cfg.ByKey) {
		if err := cfg.Tool.CheckResultKey(key); err != nil {
			log.Warn("tool result key failed to validate",
				slog.String("tool", cfg.Tool.Name()),
				slog.String("key", key),
				sl.Err(err))
			node.Failures = append(node.Failures, &FailedConfiguration{
				Parent: parent,
				Config: cfg,
				Result: result.Result{Severity: result.Error, Reason: err.Error()},
				Err:    err,
			})
			continue
		}
		for _, cmp := range joinComparisons(cfg.ByKey[key], cfg.Shared) {
			node.Comparisons = append(node.Comparisons, &PreparedComparison{
				cache:      dataCache,
				parent:     node,
				Identifier: key,
				Comparison: cmp,
				Tool:       cfg.Tool,
			})
		}
	}
	return node
}

func joinComparisons(own, shared comparison.List) []comparison.Comparison {
	joined := make([]comparison.Comparison, 0, len(own)+len(shared))
	joined = append(joined, own...)
	joined = append(joined, shared...)
	return joined
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func nodePath(node PreparedNode) []string {
	var path []string
	if parent := node.Parent(); parent != nil {
		path = parent.Path()
	}
	name := node.Config().Meta().Name
	if name == "" {
		name, _ = configTag(node.Config())
	}
	return append(path, name)
}
