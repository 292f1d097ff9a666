package subagent

// messageType discriminates the three shapes a worker may send over its
// stdout.
const (
	messageTypeResult = "result"
	messageTypeError  = "error"
	messageTypeLog    = "log"
)

// WorkerMessage is one line of the worker's stdout, NDJSON-framed the same
// way as the jsonrpc package's transport. Only the fields relevant to Type
// are populated.
type WorkerMessage struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
}

// resultMessage builds the worker's success message.
func resultMessage(data string) WorkerMessage {
	return WorkerMessage{Type: messageTypeResult, Data: data}
}

// errorMessage builds the worker's failure message.
func errorMessage(err string) WorkerMessage {
	return WorkerMessage{Type: messageTypeError, Error: err}
}

// logMessage builds an observational record (currently reserved; the
// Runner logs every such record at info level, with the record's level as
// a field, and does not mutate handle state from them).
func logMessage(level, message string) WorkerMessage {
	return WorkerMessage{Type: messageTypeLog, Level: level, Message: message}
}
