package subagent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/wn-agent/wn/agent"
	"github.com/wn-agent/wn/mcpclient"
	"github.com/wn-agent/wn/provider"
	"github.com/wn-agent/wn/tool"
	"github.com/wn-agent/wn/tool/builtin"
)

// RunWorker is the sub-agent worker entrypoint: it decodes a Payload from
// stdin, constructs a provider, registers the standard built-in tools,
// drives exactly one Agent Loop step, and writes exactly one terminal
// WorkerMessage to stdout before returning an exit code. The caller (the
// CLI's hidden `__subagent_worker` subcommand) wires os.Stdin/os.Stdout
// through unmodified.
func RunWorker(stdin io.Reader, stdout io.Writer) int {
	enc := json.NewEncoder(stdout)
	emit := func(msg WorkerMessage) { _ = enc.Encode(msg) }

	var payload Payload
	if err := json.NewDecoder(bufio.NewReader(stdin)).Decode(&payload); err != nil {
		emit(errorMessage(fmt.Sprintf("failed to decode worker payload: %v", err)))
		return 1
	}

	provResult := provider.New(payload.ProviderName, payload.ProviderConfig, payload.Model)
	if provResult.IsErr() {
		emit(errorMessage(provResult.Error().Error()))
		return 1
	}
	prov := provResult.Value()

	registry := tool.New()
	for _, def := range builtin.Register() {
		if err := registry.Register(def); err != nil {
			emit(logMessage("warn", err.Error()))
		}
	}

	ctx := context.Background()
	var mgr *mcpclient.Manager
	if len(payload.ToolServerConfigs) > 0 {
		mgr = mcpclient.NewManager()
		tools, warnings, err := mgr.ConnectAll(ctx, payload.ToolServerConfigs)
		for _, w := range warnings {
			emit(logMessage("warn", w))
		}
		if err != nil {
			emit(logMessage("warn", err.Error()))
		}
		for _, t := range tools {
			if err := registry.RegisterExternal(t); err != nil {
				emit(logMessage("warn", err.Error()))
			}
		}
		defer mgr.CloseAll()
	}

	loop := agent.New(agent.Config{
		Provider: prov,
		Model:    payload.Model,
		Registry: registry,
		System:   payload.SystemMessage,
		// Handler is intentionally the zero value: the worker's Agent Loop
		// runs headless and reports its outcome only through WorkerMessage.
	})

	result := loop.Step(ctx, payload.Task)
	if result.IsErr() {
		emit(errorMessage(result.Error().Error()))
		return 1
	}

	emit(resultMessage(result.Value()))
	return 0
}
