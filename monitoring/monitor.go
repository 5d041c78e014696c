// Package monitoring serves an HTTP interface that inspects and controls the
// synchronization contexts running in the process.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/spacegame/netsync/netid"
	"github.com/spacegame/netsync/netsync"
	"github.com/spacegame/netsync/sim"
	"github.com/syifan/goseth"
)

// Monitor turns a running session into an HTTP server that allows external
// inspection and control of its contexts.
type Monitor struct {
	contexts    []*netsync.Context
	portNumber  int
	openBrowser bool
	server      *http.Server
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber > 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in the default browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterContext registers a context to be monitored.
func (m *Monitor) RegisterContext(c *netsync.Context) {
	for _, existing := range m.contexts {
		if existing.Name() == c.Name() {
			log.Panicf("context %s already registered", c.Name())
		}
	}

	m.contexts = append(m.contexts, c)
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueRunning)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/tick/{name}", m.tick)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/hangdetector/buffers", m.hangDetectorBuffers)
	r.HandleFunc("/api/netids/{name}", m.listNetIDs)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		m.listRoutes(w, r)
	})

	return r
}

// StartServer starts the monitor as a web server and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("monitor listen on %s: %w", actualPort, err)
	}

	url := fmt.Sprintf("http://localhost:%d/",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring spacesync with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("monitor stopped: %v", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}

	return listener.Addr().String(), nil
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) listRoutes(w http.ResponseWriter, r *mux.Router) {
	routes := []string{}

	err := r.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err == nil && strings.HasPrefix(tpl, "/api/") {
			routes = append(routes, tpl)
		}

		return nil
	})
	dieOnErr(err)

	writeJSON(w, routes)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	for _, c := range m.contexts {
		c.Driver().Pause()
	}

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueRunning(w http.ResponseWriter, _ *http.Request) {
	for _, c := range m.contexts {
		c.Driver().Continue()
	}

	_, err := w.Write(nil)
	dieOnErr(err)
}

type nowRsp struct {
	Name   string `json:"name"`
	Tick   uint64 `json:"tick"`
	Paused bool   `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]nowRsp, 0, len(m.contexts))
	for _, c := range m.contexts {
		rsp = append(rsp, nowRsp{
			Name:   c.Name(),
			Tick:   c.CurrentTick(),
			Paused: c.Driver().Paused(),
		})
	}

	writeJSON(w, rsp)
}

// tick runs a single tick of a context. It is meant for stepping a paused
// session.
func (m *Monitor) tick(w http.ResponseWriter, r *http.Request) {
	c := m.findContextOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	progress := c.Tick()

	writeJSON(w, map[string]any{
		"tick":     c.CurrentTick(),
		"progress": progress,
	})
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.contexts))
	for _, c := range m.contexts {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	c := m.findContextOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	c.Driver().Lock()
	defer c.Driver().Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(c)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	c := m.findContextOr404(w, req.CompName)
	if c == nil {
		return
	}

	c.Driver().Lock()
	defer c.Driver().Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(c)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) hangDetectorBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := buffersParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	var buffers []sim.Buffer

	for _, c := range m.contexts {
		c.Driver().Lock()
		buffers = append(buffers, c.Buffers()...)
		c.Driver().Unlock()
	}

	selected := sortAndSelectBuffers(buffers, sortMethod, limit, offset)

	rsp := make([]bufferRsp, 0, len(selected))
	for _, b := range selected {
		rsp = append(rsp, bufferRsp{
			Buffer: b.Name(),
			Level:  b.Size(),
			Cap:    b.Capacity(),
		})
	}

	writeJSON(w, rsp)
}

func buffersParseParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return "", 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return "", 0, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	str := r.URL.Query().Get(name)
	if str == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, str, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("%s cannot be negative", name)
	}

	return n, nil
}

// bufferPercent returns how full a buffer is. Unbounded buffers count as
// empty.
func bufferPercent(b sim.Buffer) float64 {
	if b.Capacity() <= 0 {
		return 0
	}

	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers orders the buffers with the fullest first and returns
// the requested page. A limit of 0 returns everything after the offset.
func sortAndSelectBuffers(
	buffers []sim.Buffer,
	sortMethod string,
	limit, offset int,
) []sim.Buffer {
	sorted := make([]sim.Buffer, len(buffers))
	copy(sorted, buffers)

	sort.SliceStable(sorted, func(i, j int) bool {
		sizeI, sizeJ := sorted[i].Size(), sorted[j].Size()
		percentI, percentJ := bufferPercent(sorted[i]), bufferPercent(sorted[j])

		if sortMethod == "level" {
			if sizeI != sizeJ {
				return sizeI > sizeJ
			}

			return percentI > percentJ
		}

		if percentI != percentJ {
			return percentI > percentJ
		}

		return sizeI > sizeJ
	})

	if offset >= len(sorted) {
		return nil
	}

	sorted = sorted[offset:]

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	return sorted
}

type netIDRsp struct {
	Handle uint64 `json:"handle"`
	ID     string `json:"id"`
}

func (m *Monitor) listNetIDs(w http.ResponseWriter, r *http.Request) {
	c := m.findContextOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	c.Driver().Lock()

	rsp := make([]netIDRsp, 0, c.IDs().Len())
	c.IDs().Each(func(h netid.Handle, id netid.ID) {
		rsp = append(rsp, netIDRsp{Handle: uint64(h), ID: id.String()})
	})

	c.Driver().Unlock()

	sort.Slice(rsp, func(i, j int) bool {
		return rsp[i].Handle < rsp[j].Handle
	})

	writeJSON(w, rsp)
}

func (m *Monitor) findContextOr404(
	w http.ResponseWriter,
	name string,
) *netsync.Context {
	for _, c := range m.contexts {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
