// Package results holds the append-only record of a single check run and
// writes it to disk when the run ends.
package results

import "time"

// Network event kinds.
const (
	NetworkRequest       = "request"
	NetworkResponse      = "response"
	NetworkRequestFailed = "requestfailed"
)

// TestRun is everything captured during one invocation of a check.
type TestRun struct {
	RunID         string         `json:"runId"`
	Timestamp     time.Time      `json:"timestamp"`
	TestName      string         `json:"testName"`
	EntryURL      string         `json:"entryUrl"`
	Steps         []StepRecord   `json:"steps"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	ErrorCode     string         `json:"errorCode,omitempty"`
	Screenshots   []string       `json:"screenshots"`
	FinalURL      string         `json:"finalUrl,omitempty"`
	ConsoleLogs   []ConsoleEntry `json:"consoleLogs"`
	NetworkEvents []NetworkEntry `json:"networkEvents"`
	// DroppedEvents counts observer events refused once the sink was full.
	DroppedEvents int `json:"droppedEvents,omitempty"`
}

// StepRecord is one logged transition. Step ids are free-form ("1", "3.1", "ERROR").
type StepRecord struct {
	Step      string    `json:"step"`
	Message   string    `json:"message"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url,omitempty"`
}

// ConsoleLocation is where in page source a console message came from.
type ConsoleLocation struct {
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// ConsoleEntry is a browser console message.
type ConsoleEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Location  ConsoleLocation `json:"location"`
	URL       string          `json:"url"`
}

// NetworkEntry is a request, response, or failed request observed by the page.
type NetworkEntry struct {
	Type         string    `json:"type"`
	Method       string    `json:"method,omitempty"`
	Status       int       `json:"status,omitempty"`
	URL          string    `json:"url"`
	ResourceType string    `json:"resourceType,omitempty"`
	Failure      string    `json:"failure,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Counts reports the current lengths of the append-only sequences.
type Counts struct {
	Steps         int
	Screenshots   int
	ConsoleLogs   int
	NetworkEvents int
}

// ConsoleErrors returns how many console entries have type "error".
func (r TestRun) ConsoleErrors() int {
	n := 0
	for _, entry := range r.ConsoleLogs {
		if entry.Type == "error" {
			n++
		}
	}
	return n
}

// NetworkRequests returns how many network entries are requests.
func (r TestRun) NetworkRequests() int {
	n := 0
	for _, entry := range r.NetworkEvents {
		if entry.Type == NetworkRequest {
			n++
		}
	}
	return n
}
