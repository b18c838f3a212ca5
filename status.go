package sitedeco

import (
	"fmt"
	"html"
	"time"
)

// State is the build state remembered by a [StatusPoller] across polls.
//
// A poller starts in [StateIdle] and moves to [StateBuilding] the first time
// it observes a run that has not completed. It never moves back: the only way
// to reset is to create a new poller, the equivalent of reloading the page.
type State string

const (
	// StateIdle means no in-progress build has been observed by this poller.
	StateIdle State = "idle"

	// StateBuilding means an in-progress build has been observed at least once.
	StateBuilding State = "building"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Display texts written to the status element.
const (
	TextLatest   = "latest version"
	TextReload   = "reload to get latest version"
	TextBuilding = "new version building …"
)

// RunStatus is the status of the most recent workflow run, derived fresh on
// every poll.
type RunStatus struct {
	// Status is the raw run status reported by the CI provider
	// ("completed", "in_progress", "queued", ...).
	Status string

	// IsBuilding is true for any status other than "completed".
	IsBuilding bool

	// LiveLogURL is the web page of the run's first job. Only set while building,
	// and only when the provider reports one.
	LiveLogURL string
}

// Display is the content and tooltip of the build status element.
//
// Display is what the browser widget writes into the element with
// id="build-status": [Display.HTML] becomes its inner HTML and Title its
// title attribute.
type Display struct {
	// Text is the human-readable status message.
	Text string

	// Link is an optional hyperlink target for Text.
	Link string

	// Title is the tooltip, "Last checked: <time>".
	Title string

	// CheckedAt is the wall-clock time of the poll that produced this display.
	CheckedAt time.Time

	// State is the poller state after the poll.
	State State

	// Final is true when no further poll will follow this display.
	Final bool
}

// HTML renders the display content as an HTML fragment. Text is escaped; when
// Link is set the text is wrapped in an anchor pointing at it.
func (d Display) HTML() string {
	if d.Link == "" {
		return html.EscapeString(d.Text)
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(d.Link), html.EscapeString(d.Text))
}

// Tick is the outcome of one successful poll.
type Tick struct {
	// Display is the content to write into the status element.
	Display Display

	// Run is the status of the latest run as seen by this poll.
	Run RunStatus

	// Next is the delay until the following poll. Zero when Final is set.
	Next time.Duration

	// Final is true when polling stops after this tick (the reload prompt).
	Final bool

	// Latency is the total time spent on HTTP requests during the poll.
	Latency time.Duration
}
