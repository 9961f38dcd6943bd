package tools

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/speedwagon-io/checkout/internal/result"
)

// unresponsiveTime is the reported round-trip time for hosts that never
// answered, in seconds.
const unresponsiveTime = 100.0

var pingTimeRe = regexp.MustCompile(`time[=<]([0-9.]+)\s?ms`)

// PingResult is the result bundle of the ping tool.
type PingResult struct {
	Result result.Result `json:"result"`

	Alive    []string `json:"alive"`
	NumAlive int      `json:"num_alive"`

	Unresponsive    []string `json:"unresponsive"`
	NumUnresponsive int      `json:"num_unresponsive"`

	// Times maps host to mean round-trip time in seconds.
	Times   map[string]float64 `json:"times"`
	MinTime float64            `json:"min_time"`
	MaxTime float64            `json:"max_time"`
}

// Ping verifies network reachability of one or more hosts using the system
// ping binary, summarizing per-host round-trip times.
type Ping struct {
	// Hosts to ping.
	Hosts []string `yaml:"hosts"`
	// Count of echo requests per host.
	Count int `yaml:"count"`
}

// NewPing builds a ping tool with the default per-host attempt count.
func NewPing(hosts []string) *Ping {
	return &Ping{Hosts: hosts, Count: 3}
}

func (p *Ping) Name() string { return "ping" }

func (p *Ping) CacheKey() string {
	return fmt.Sprintf("ping:%s:%d", strings.Join(p.Hosts, ","), p.Count)
}

func (p *Ping) CheckResultKey(key string) error {
	return checkResultKey(p, PingResult{}, key)
}

// Run pings every host concurrently and folds the per-host outcomes into a
// single bundle. A host that fails to answer marks the bundle's result as an
// error but never fails the run itself.
func (p *Ping) Run(ctx context.Context) (any, error) {
	summary := &PingResult{
		Times: make(map[string]float64),
	}
	if len(p.Hosts) == 0 {
		return summary, nil
	}

	if _, err := exec.LookPath("ping"); err != nil {
		return nil, fmt.Errorf("the ping binary is unavailable on PATH: %w", err)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, host := range p.Hosts {
		g.Go(func() error {
			seconds, err := p.pingHost(ctx, host)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Unresponsive = append(summary.Unresponsive, host)
				summary.Times[host] = unresponsiveTime
			} else {
				summary.Alive = append(summary.Alive, host)
				summary.Times[host] = seconds
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.NumAlive = len(summary.Alive)
	summary.NumUnresponsive = len(summary.Unresponsive)
	if summary.NumUnresponsive > 0 {
		summary.Result = result.Result{
			Severity: result.Error,
			Reason:   fmt.Sprintf("%d host(s) unresponsive", summary.NumUnresponsive),
		}
	}

	first := true
	for _, t := range summary.Times {
		if first || t < summary.MinTime {
			summary.MinTime = t
		}
		if first || t > summary.MaxTime {
			summary.MaxTime = t
		}
		first = false
	}

	return summary, nil
}

// pingHost shells out to ping and returns the mean round-trip time in
// seconds parsed from its output.
func (p *Ping) pingHost(ctx context.Context, host string) (float64, error) {
	count := p.Count
	if count < 1 {
		count = 1
	}

	countFlag := "-c"
	if runtime.GOOS == "windows" {
		countFlag = "/n"
	}

	out, err := exec.CommandContext(ctx, "ping", countFlag, strconv.Itoa(count), host).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ping %s failed: %w", host, err)
	}

	times := parsePingTimes(string(out))
	if len(times) == 0 {
		return 0, fmt.Errorf("ping %s: no responses", host)
	}

	var total float64
	for _, t := range times {
		total += t
	}
	return total / float64(len(times)), nil
}

// parsePingTimes extracts round-trip times from ping output, in seconds.
func parsePingTimes(output string) []float64 {
	var times []float64
	for _, match := range pingTimeRe.FindAllStringSubmatch(output, -1) {
		ms, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		times = append(times, ms/1000.0)
	}
	return times
}
