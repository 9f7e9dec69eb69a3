// Package view renders CLI output for cmd/bundle, mirroring the
// teacher's cmd/kro/internal/view layering: a Stream wraps the
// destination writer, a Viewer picks human or JSON rendering, and a
// Logger reports progress independently of whatever a command renders
// as its final result.
package view

// ViewType selects which rendering a command uses.
type ViewType rune

const (
	ViewNone  ViewType = 0
	ViewHuman ViewType = 'H'
	ViewJSON  ViewType = 'J'
)

func (vt ViewType) String() string {
	switch vt {
	case ViewHuman:
		return "human"
	case ViewJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseOutputFormat maps the --output flag's value to a ViewType,
// defaulting to human-readable output when unset.
func ParseOutputFormat(s string) (ViewType, error) {
	switch s {
	case "", "human", "text":
		return ViewHuman, nil
	case "json":
		return ViewJSON, nil
	default:
		return ViewNone, unsupportedFormatError(s)
	}
}

type unsupportedFormatErr struct{ s string }

func unsupportedFormatError(s string) error { return &unsupportedFormatErr{s} }

func (e *unsupportedFormatErr) Error() string {
	return "unsupported output format " + "\"" + e.s + "\"" + ": want \"human\" or \"json\""
}

var _ Viewer = (*HumanView)(nil)
var _ Viewer = (*JSONView)(nil)

// Viewer is the shared surface every rendering mode implements.
type Viewer interface {
	Logger() Logger
}

// NewViewer builds the Viewer for vt, wired to write through s and log
// at level.
func NewViewer(vt ViewType, s *Stream, level LogLevel) Viewer {
	switch vt {
	case ViewHuman:
		return NewHumanView(s, level)
	case ViewJSON:
		return NewJSONView(s, level)
	default:
		panic("unknown view type")
	}
}

// HumanView renders colorized, line-oriented output.
type HumanView struct {
	*Stream
	logger Logger
}

// NewHumanView builds a HumanView writing through s at level.
func NewHumanView(s *Stream, level LogLevel) *HumanView {
	var logger Logger
	if level == LogLevelSilent {
		logger = NewNopLogger()
	} else {
		logger = NewHumanLogger(s.Writer, level)
	}
	return &HumanView{Stream: s, logger: logger}
}

func (h *HumanView) Logger() Logger { return h.logger }

// JSONView renders newline-delimited JSON records.
type JSONView struct {
	*Stream
	logger Logger
}

// NewJSONView builds a JSONView writing through s at level.
func NewJSONView(s *Stream, level LogLevel) *JSONView {
	var logger Logger
	if level == LogLevelSilent {
		logger = NewNopLogger()
	} else {
		logger = NewJSONLogger(s.Writer, level)
	}
	return &JSONView{Stream: s, logger: logger}
}

func (j *JSONView) Logger() Logger { return j.logger }
