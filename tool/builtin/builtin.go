// Package builtin implements the core built-in tools (filesystem, shell,
// search) against the chatmodel.ToolDefinition contract. Parameter schemas
// are generated from Go structs via invopop/jsonschema, and decoded
// arguments are validated with go-playground/validator before execution —
// validation failures become ToolResult{OK:false}, never a panic or thrown
// error.
package builtin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/wn-agent/wn/chatmodel"
)

var validate = validator.New()

const (
	defaultShellTimeout = 30 * time.Second
	maxShellTimeout     = 10 * time.Minute
)

// Register returns the standard set of built-in ToolDefinitions: read_file,
// write_file, edit_file, shell, and grep. Callers wire these into a
// tool.Registry via Registry.Register.
func Register() []chatmodel.ToolDefinition {
	return []chatmodel.ToolDefinition{
		readFileTool(),
		writeFileTool(),
		editFileTool(),
		shellTool(),
		grepTool(),
	}
}

func schemaFor(v any) map[string]any {
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	schema := reflector.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// decode re-marshals the decoded argument map into dst and validates it,
// returning a ToolResult describing the failure on either step.
func decode(arguments map[string]any, dst any) *chatmodel.ToolResult {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return &chatmodel.ToolResult{OK: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &chatmodel.ToolResult{OK: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if err := validate.Struct(dst); err != nil {
		return &chatmodel.ToolResult{OK: false, Error: err.Error()}
	}
	return nil
}

type readFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Absolute path to the file to read." validate:"required"`
	Offset   int    `json:"offset,omitempty" jsonschema:"description=1-based line number to start reading from."`
	Limit    int    `json:"limit,omitempty" jsonschema:"description=Maximum number of lines to read. Default: 2000."`
}

func readFileTool() chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the filesystem. Returns line-numbered content.",
		Parameters:  schemaFor(readFileArgs{}),
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			var args readFileArgs
			if r := decode(arguments, &args); r != nil {
				return *r
			}
			limit := args.Limit
			if limit <= 0 {
				limit = 2000
			}
			content, err := readNumberedLines(args.FilePath, args.Offset, limit)
			if err != nil {
				return chatmodel.ToolResult{OK: false, Error: err.Error()}
			}
			return chatmodel.ToolResult{OK: true, Output: content}
		},
	}
}

func readNumberedLines(path string, offset, limit int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	defer f.Close()

	start := offset
	if start < 1 {
		start = 1
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	written := 0
	for scanner.Scan() {
		lineNum++
		if lineNum < start {
			continue
		}
		if written >= limit {
			break
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", lineNum, scanner.Text())
		written++
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type writeFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Absolute path to write to." validate:"required"`
	Content  string `json:"content" jsonschema:"description=The full file content to write."`
}

func writeFileTool() chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file. Creates parent directories if needed.",
		Parameters:  schemaFor(writeFileArgs{}),
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			var args writeFileArgs
			if r := decode(arguments, &args); r != nil {
				return *r
			}
			if err := os.MkdirAll(filepath.Dir(args.FilePath), 0o755); err != nil {
				return chatmodel.ToolResult{OK: false, Error: err.Error()}
			}
			if err := os.WriteFile(args.FilePath, []byte(args.Content), 0o644); err != nil {
				return chatmodel.ToolResult{OK: false, Error: err.Error()}
			}
			return chatmodel.ToolResult{OK: true, Output: fmt.Sprintf("Successfully wrote %d bytes to %s", len(args.Content), args.FilePath)}
		},
	}
}

type editFileArgs struct {
	FilePath   string `json:"file_path" jsonschema:"description=Path to the file to edit." validate:"required"`
	OldString  string `json:"old_string" jsonschema:"description=Exact text to find in the file." validate:"required"`
	NewString  string `json:"new_string" jsonschema:"description=Replacement text."`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema:"description=Replace all occurrences. Default: false."`
}

func editFileTool() chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "edit_file",
		Description: "Replace an exact string occurrence in a file. old_string must be unique unless replace_all is true.",
		Parameters:  schemaFor(editFileArgs{}),
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			var args editFileArgs
			if r := decode(arguments, &args); r != nil {
				return *r
			}
			raw, err := os.ReadFile(args.FilePath)
			if err != nil {
				return chatmodel.ToolResult{OK: false, Error: fmt.Sprintf("file not found: %s", args.FilePath)}
			}
			content := string(raw)
			count := strings.Count(content, args.OldString)
			if count == 0 {
				return chatmodel.ToolResult{OK: false, Error: "old_string not found in file"}
			}
			if count > 1 && !args.ReplaceAll {
				return chatmodel.ToolResult{OK: false, Error: fmt.Sprintf("old_string is not unique (%d occurrences); set replace_all or provide more context", count)}
			}
			var updated string
			if args.ReplaceAll {
				updated = strings.ReplaceAll(content, args.OldString, args.NewString)
			} else {
				updated = strings.Replace(content, args.OldString, args.NewString, 1)
			}
			if err := os.WriteFile(args.FilePath, []byte(updated), 0o644); err != nil {
				return chatmodel.ToolResult{OK: false, Error: err.Error()}
			}
			return chatmodel.ToolResult{OK: true, Output: fmt.Sprintf("Edited %s", args.FilePath)}
		},
	}
}

type shellArgs struct {
	Command    string `json:"command" jsonschema:"description=The command to run." validate:"required"`
	TimeoutMs  int    `json:"timeout_ms,omitempty" jsonschema:"description=Override the default command timeout in milliseconds." validate:"omitempty,gte=1"`
	WorkingDir string `json:"working_dir,omitempty" jsonschema:"description=Directory to run the command in. Default: current directory."`
}

func shellTool() chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "shell",
		Description: "Execute a shell command. Returns stdout, stderr, and exit code.",
		Parameters:  schemaFor(shellArgs{}),
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			var args shellArgs
			if r := decode(arguments, &args); r != nil {
				return *r
			}
			timeout := defaultShellTimeout
			if args.TimeoutMs > 0 {
				timeout = time.Duration(args.TimeoutMs) * time.Millisecond
			}
			if timeout > maxShellTimeout {
				timeout = maxShellTimeout
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			cmd := exec.CommandContext(ctx, "sh", "-c", args.Command)
			if args.WorkingDir != "" {
				cmd.Dir = args.WorkingDir
			}
			out, err := cmd.CombinedOutput()

			var sb strings.Builder
			sb.Write(out)
			if ctx.Err() == context.DeadlineExceeded {
				fmt.Fprintf(&sb, "\n\n[ERROR: Command timed out after %s. Partial output is shown above.]", timeout)
				return chatmodel.ToolResult{OK: false, Output: sb.String(), Error: "command timed out"}
			}
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					fmt.Fprintf(&sb, "\n\n[Exit code: %d]", exitErr.ExitCode())
				}
			}
			return chatmodel.ToolResult{OK: true, Output: sb.String()}
		},
	}
}

type grepArgs struct {
	Pattern         string `json:"pattern" jsonschema:"description=Regex pattern to search for." validate:"required"`
	Path            string `json:"path,omitempty" jsonschema:"description=Directory or file to search. Default: working directory."`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema:"description=Case insensitive search. Default: false."`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results. Default: 100."`
}

func grepTool() chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "grep",
		Description: "Search file contents for a regex pattern. Returns matching lines with file paths and line numbers.",
		Parameters:  schemaFor(grepArgs{}),
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			var args grepArgs
			if r := decode(arguments, &args); r != nil {
				return *r
			}
			maxResults := args.MaxResults
			if maxResults <= 0 {
				maxResults = 100
			}
			root := args.Path
			if root == "" {
				root = "."
			}

			grepArgsList := []string{"-rn"}
			if args.CaseInsensitive {
				grepArgsList = append(grepArgsList, "-i")
			}
			grepArgsList = append(grepArgsList, "-E", args.Pattern, root)

			cmd := exec.Command("grep", grepArgsList...)
			out, err := cmd.Output()
			if err != nil && len(out) == 0 {
				if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
					return chatmodel.ToolResult{OK: true, Output: "No matches found."}
				}
				return chatmodel.ToolResult{OK: false, Error: err.Error()}
			}

			lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
			sort.Strings(lines)
			if len(lines) > maxResults {
				lines = lines[:maxResults]
			}
			return chatmodel.ToolResult{OK: true, Output: strings.Join(lines, "\n")}
		},
	}
}
