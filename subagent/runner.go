package subagent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status is a Handle's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Handle is the Runner's observable state for one spawned sub-agent.
type Handle struct {
	mu            sync.Mutex
	id            string
	status        Status
	result        string
	hasResult     bool
	cmd           *exec.Cmd
	stopRequested bool
}

// ID returns the handle's identifier.
func (h *Handle) ID() string { return h.id }

// Snapshot is a point-in-time, lock-free copy of a Handle's state, the
// shape `list()` returns.
type Snapshot struct {
	ID        string
	Status    Status
	Result    string
	HasResult bool
}

func (h *Handle) snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{ID: h.id, Status: h.status, Result: h.result, HasResult: h.hasResult}
}

// terminal reports whether the handle has already left "running".
func (h *Handle) terminal() bool {
	return h.status == StatusCompleted || h.status == StatusFailed
}

// complete transitions to completed, unless already terminal.
func (h *Handle) complete(data string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminal() {
		return
	}
	h.status = StatusCompleted
	h.result = data
	h.hasResult = true
}

// fail transitions to failed, unless already terminal.
func (h *Handle) fail(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminal() {
		return
	}
	h.status = StatusFailed
	h.result = message
	h.hasResult = true
}

// Runner owns the live set of sub-agent handles and launches an isolated
// worker process per spawn. The worker is a re-exec of the current binary
// invoked with WorkerArgs, matching the hidden `__subagent_worker`
// subcommand pattern the CLI entrypoint wires up.
type Runner struct {
	log *logrus.Entry

	root     RootConfig
	personas PersonaTable
	skills   SkillTable

	exePath    string
	workerArgs []string

	mu      sync.Mutex
	handles map[string]*Handle
	order   []string
}

// Config configures a new Runner.
type Config struct {
	Root       RootConfig
	Personas   PersonaTable
	Skills     SkillTable
	ExePath    string   // defaults to os.Executable()
	WorkerArgs []string // defaults to {"__subagent_worker"}
	Logger     *logrus.Logger
}

// New constructs a Runner with no live handles.
func New(cfg Config) *Runner {
	exePath := cfg.ExePath
	if exePath == "" {
		if p, err := os.Executable(); err == nil {
			exePath = p
		}
	}
	workerArgs := cfg.WorkerArgs
	if workerArgs == nil {
		workerArgs = []string{"__subagent_worker"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		log:        logger.WithField("component", "subagent"),
		root:       cfg.Root,
		personas:   cfg.Personas,
		skills:     cfg.Skills,
		exePath:    exePath,
		workerArgs: workerArgs,
		handles:    make(map[string]*Handle),
	}
}

func (r *Runner) store(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.id] = h
	r.order = append(r.order, h.id)
}

// Spawn resolves the agent config, and on success launches an isolated
// worker process. Resolution failures produce a terminal-failed handle
// without ever starting a worker.
func (r *Runner) Spawn(cfg AgentConfig) *Handle {
	id := uuid.New().String()

	payload, err := resolve(r.root, r.personas, r.skills, id, cfg)
	if err != nil {
		h := &Handle{id: id, status: StatusFailed, result: err.Error(), hasResult: true}
		r.store(h)
		return h
	}

	h := &Handle{id: id, status: StatusRunning}
	r.store(h)
	go r.runWorker(h, payload)
	return h
}

// List returns a snapshot of every handle, running and terminal, in spawn
// order.
func (r *Runner) List() []Snapshot {
	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	handles := make([]*Handle, 0, len(ids))
	for _, id := range ids {
		if h, ok := r.handles[id]; ok {
			handles = append(handles, h)
		}
	}
	r.mu.Unlock()

	out := make([]Snapshot, len(handles))
	for i, h := range handles {
		out[i] = h.snapshot()
	}
	return out
}

// Stop terminates the worker forcibly and transitions the handle to
// failed. Non-existent ids are no-ops. If the worker process has not
// started yet (a race with runWorker's own startup), the kill is deferred:
// runWorker checks stopRequested right after the process starts.
func (r *Runner) Stop(id string) {
	r.mu.Lock()
	h, ok := r.handles[id]
	r.mu.Unlock()
	if !ok {
		return
	}

	h.mu.Lock()
	h.stopRequested = true
	cmd := h.cmd
	h.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	h.fail("stopped")
}

// runWorker launches the isolated worker process, feeds it the payload on
// stdin, and consumes its stdout message stream until exit.
func (r *Runner) runWorker(h *Handle, payload Payload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.fail(fmt.Sprintf("failed to encode worker payload: %v", err))
		return
	}

	cmd := exec.Command(r.exePath, r.workerArgs...)
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.fail(fmt.Sprintf("failed to start worker: %v", err))
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.fail(fmt.Sprintf("failed to start worker: %v", err))
		return
	}

	h.mu.Lock()
	h.cmd = cmd
	stopAlreadyRequested := h.stopRequested
	h.mu.Unlock()
	if stopAlreadyRequested {
		h.fail("stopped")
		return
	}

	if err := cmd.Start(); err != nil {
		h.fail(fmt.Sprintf("failed to start worker: %v", err))
		return
	}

	h.mu.Lock()
	stopAlreadyRequested = h.stopRequested
	h.mu.Unlock()
	if stopAlreadyRequested {
		_ = cmd.Process.Kill()
	}

	if _, err := stdin.Write(append(raw, '\n')); err != nil {
		r.log.WithField("id", h.id).WithError(err).Warn("failed to write worker payload")
	}
	_ = stdin.Close()

	r.consume(h, stdout)

	err = cmd.Wait()
	if h.terminalStatus() == StatusRunning {
		if err != nil {
			h.fail(fmt.Sprintf("worker exited with error: %v", err))
		}
		// A zero-code exit without a prior terminal message is a protocol
		// violation by the worker; the handle is left as-is and a future
		// list() still reports it running.
	}
}

// terminalStatus reports the handle's current status under lock, used
// internally to check "is status still running" without racing a
// concurrent message arrival.
func (h *Handle) terminalStatus() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// consume reads NDJSON WorkerMessages from the worker's stdout until EOF,
// mutating the handle on each recognized shape.
func (r *Runner) consume(h *Handle, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg WorkerMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue // unrecognized shapes are ignored (forward compatibility)
		}
		switch msg.Type {
		case messageTypeResult:
			h.complete(msg.Data)
		case messageTypeError:
			h.fail(msg.Error)
		case messageTypeLog:
			r.log.WithField("id", h.id).WithField("level", msg.Level).Info(msg.Message)
		}
	}
}
