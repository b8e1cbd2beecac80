// Package stats aggregates the per-component counters spec.md §6 names
// ("exposed under component-qualified names (e.g. L2.hits.ReadReq)") into
// one registry, and persists snapshots to SQLite the way the teacher's
// tracing package persists trace events (grounded on
// tracing/sqlite.go).
package stats

import (
	"sort"
	"sync"

	"github.com/archsim/memhier/cache"
	"github.com/archsim/memhier/mem"
)

// Sample is one component-qualified counter row, the unit Registry.Snapshot
// produces and SQLiteWriter persists.
type Sample struct {
	Component string
	Metric    string
	Command   string
	MasterID  mem.MasterID
	Value     uint64
}

// Registry collects the Stats of every Cache in the system so they can be
// snapshotted and persisted together, under names qualified by the
// owning component (spec.md §6).
type Registry struct {
	mu     sync.Mutex
	caches []*cache.Stats
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds s to the set of counters this Registry reports on.
func (r *Registry) Register(s *cache.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches = append(r.caches, s)
}

// Snapshot flattens every registered Stats into component-qualified
// Samples, in a stable (component, metric, command, master) order so repeated
// snapshots diff cleanly.
func (r *Registry) Snapshot() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Sample
	for _, s := range r.caches {
		for cmd, v := range s.Hits {
			out = append(out, Sample{Component: s.Name, Metric: "hits", Command: cmd.String(), Value: v})
		}
		for cmd, v := range s.Misses {
			out = append(out, Sample{Component: s.Name, Metric: "misses", Command: cmd.String(), Value: v})
		}
		for master, v := range s.HitsByMaster {
			out = append(out, Sample{Component: s.Name, Metric: "hits_by_master", MasterID: master, Value: v})
		}
		for master, v := range s.MissesByMaster {
			out = append(out, Sample{Component: s.Name, Metric: "misses_by_master", MasterID: master, Value: v})
		}
		out = append(out, Sample{Component: s.Name, Metric: "fast_writes", Value: s.FastWrites})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Component != out[j].Component {
			return out[i].Component < out[j].Component
		}
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		if out[i].Command != out[j].Command {
			return out[i].Command < out[j].Command
		}
		return out[i].MasterID < out[j].MasterID
	})

	return out
}
