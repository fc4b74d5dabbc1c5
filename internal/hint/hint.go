// Package hint carries recoverable guidance back to the calling agent.
//
// A Hint is an error, so it travels through ordinary error returns, but it
// describes something the caller (usually a language model) can act on
// rather than a failure of the program.
package hint

import "errors"

// Hint is a message meant to be relayed to the agent.
type Hint struct {
	Message  string
	Critical bool
}

func New(msg string) *Hint {
	return &Hint{Message: msg}
}

// Critical returns a hint that should end the current turn.
func Critical(msg string) *Hint {
	return &Hint{Message: msg, Critical: true}
}

func (h *Hint) Error() string {
	return h.Message
}

// As reports whether err is or wraps a Hint and returns it.
func As(err error) (*Hint, bool) {
	var h *Hint
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}

// Recoverable reports whether err is a non-critical hint.
func Recoverable(err error) bool {
	h, ok := As(err)
	return ok && !h.Critical
}
