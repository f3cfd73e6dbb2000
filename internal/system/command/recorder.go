package command

import (
	"context"
	"sync"
)

// Response is a canned result for a Recorder.
type Response struct {
	Output string
	Err    error
}

// Recorder is a Runner that records commands and replies with canned responses.
// Responses are looked up by the rendered command line; unknown commands succeed
// with empty output.
type Recorder struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []*Cmd
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{responses: make(map[string]Response)}
}

// On registers the response for a rendered command line.
func (r *Recorder) On(commandLine, output string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.responses[commandLine] = Response{Output: output, Err: err}

	return r
}

// Run records cmd and returns the registered response.
func (r *Recorder) Run(_ context.Context, cmd *Cmd) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, cmd)
	response := r.responses[cmd.String()]

	return []byte(response.Output), response.Err
}

// Calls returns the rendered command lines in call order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		lines = append(lines, c.String())
	}

	return lines
}

// Last returns the most recent command or nil.
func (r *Recorder) Last() *Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) == 0 {
		return nil
	}

	return r.calls[len(r.calls)-1]
}
