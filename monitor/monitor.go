// Package monitor exposes a read-only HTTP endpoint for live statistics and
// host telemetry while a simulation runs, grounded on the teacher's
// monitoring/monitor.go: a gorilla/mux router, net/http/pprof plus
// google/pprof/profile for CPU profiling snapshots, and gopsutil for host
// process stats. Unlike the teacher it reports statistics through
// stats.Registry.Snapshot rather than reflection-based struct dumping
// (github.com/syifan/goseth) — see DESIGN.md for why that dependency is not
// wired here.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	// Enables the net/http/pprof debug handlers on the default mux.
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"github.com/archsim/memhier/sim"
	"github.com/archsim/memhier/stats"
)

// Monitor serves live simulation state over HTTP: the engine's current
// tick, every registered cache's statistics, and host resource usage.
type Monitor struct {
	engine     sim.Engine
	registry   *stats.Registry
	portNumber int
}

// NewMonitor creates a Monitor over engine and registry, initially
// unbound to any port.
func NewMonitor(engine sim.Engine, registry *stats.Registry) *Monitor {
	return &Monitor{engine: engine, registry: registry}
}

// WithPortNumber requests a specific listening port; 0 (the default) asks
// the OS to pick one.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"port number %d is not allowed for the monitor, picking one at random\n", portNumber)
		portNumber = 0
	}
	m.portNumber = portNumber
	return m
}

// StartServer starts serving in the background and returns the URL it is
// reachable at.
func (m *Monitor) StartServer() string {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "monitoring simulation at %s\n", url)

	go func() {
		dieOnErr(http.Serve(listener, nil))
	}()

	return url
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, `{"now":%.10f}`, m.engine.CurrentTime())
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.registry.Snapshot()

	body, err := json.Marshal(snapshot)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(body)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	body, err := json.Marshal(resourceRsp{CPUPercent: cpuPercent, MemorySize: memInfo.RSS})
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(body)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	dieOnErr(pprof.StartCPUProfile(buf))
	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	body, err := json.Marshal(prof)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(body)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
