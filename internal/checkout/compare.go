package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/speedwagon-io/checkout/internal/cache"
	"github.com/speedwagon-io/checkout/internal/comparison"
	"github.com/speedwagon-io/checkout/internal/result"
	"github.com/speedwagon-io/checkout/internal/signal"
	"github.com/speedwagon-io/checkout/internal/tools"
)

// PreparedComparison is one executable unit of work: a single comparison
// bound to a single data source. Exactly one of Signal and Tool is set.
type PreparedComparison struct {
	cache  *cache.DataCache
	parent PreparedNode

	// Identifier names the bound source: device.attribute for device
	// checks, the point name for point checks, the result key for tool
	// checks.
	Identifier string
	Comparison comparison.Comparison
	Signal     signal.Signal
	Tool       tools.Tool

	// Data is the value acquired by the most recent Compare.
	Data any
	// Result of the most recent Compare, nil before the first.
	Result *result.Result
}

func (*PreparedComparison) preparedItem() {}

// Parent is the prepared configuration this comparison belongs to.
func (pc *PreparedComparison) Parent() PreparedNode { return pc.parent }

// Path is the names of the enclosing configurations, root first, ending
// with the comparison's identifier.
func (pc *PreparedComparison) Path() []string {
	var path []string
	if pc.parent != nil {
		path = pc.parent.Path()
	}
	return append(path, pc.Identifier)
}

// Compare acquires the source's data through the cache and evaluates the
// comparison against it. Faults never escape: disconnects map to the
// comparison's if_disconnected severity and anything else to internal
// error. The result is recorded on the comparison and returned.
func (pc *PreparedComparison) Compare(ctx context.Context) result.Result {
	res := pc.compare(ctx)
	pc.Result = &res
	return res
}

func (pc *PreparedComparison) compare(ctx context.Context) result.Result {
	opts := pc.Comparison.Common()

	data, err := pc.getData(ctx)
	if err != nil {
		if signal.IsDisconnected(err) {
			return result.Result{
				Severity: opts.IfDisconnected,
				Reason:   fmt.Sprintf("unable to retrieve data for comparison %q: %v", pc.Identifier, err),
			}
		}
		return result.Result{
			Severity: result.InternalError,
			Reason:   fmt.Sprintf("getting data for comparison %q raised: %v", pc.Identifier, err),
		}
	}
	pc.Data = data

	if pc.Tool != nil {
		value, err := tools.LookupResultKey(data, pc.Identifier)
		if err != nil {
			if errors.Is(err, tools.ErrKeyNotFound) {
				return result.Result{
					Severity: opts.SeverityOnFailure,
					Reason:   fmt.Sprintf("tool %s result has no %q: %v", pc.Tool.Name(), pc.Identifier, err),
				}
			}
			return result.Result{
				Severity: result.InternalError,
				Reason:   fmt.Sprintf("looking up %q in tool %s result raised: %v", pc.Identifier, pc.Tool.Name(), err),
			}
		}
		data = value
	}

	return comparison.Evaluate(pc.Comparison, data, pc.Identifier)
}

func (pc *PreparedComparison) getData(ctx context.Context) (any, error) {
	opts := pc.Comparison.Common()
	switch {
	case pc.Tool != nil:
		return pc.cache.GetToolData(ctx, pc.Tool)
	case pc.Signal != nil:
		return pc.cache.GetSignalData(ctx, pc.Signal, opts.Period(), opts.ReduceMethod, opts.String)
	}
	return nil, errors.New("comparison bound to no data source")
}

// resultItem adapts the comparison's last result for folding; a comparison
// that never ran counts as absent.
func (pc *PreparedComparison) resultItem() result.Item {
	if pc.Result == nil {
		return result.Absent()
	}
	return result.FromResult(*pc.Result)
}
