package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"sevenstream/internal/logging"
	"sevenstream/internal/session"
)

// jsonEvent is the line format written with --json.
type jsonEvent struct {
	Session  string            `json:"session"`
	Kind     session.EventKind `json:"kind"`
	Key      string            `json:"key,omitempty"`
	Value    string            `json:"value,omitempty"`
	Stage    session.Stage     `json:"stage,omitempty"`
	Progress *session.Progress `json:"progress,omitempty"`
	Entry    *session.Entry    `json:"entry,omitempty"`
	Error    *jsonError        `json:"error,omitempty"`
}

type jsonError struct {
	Source   session.ErrorSource `json:"source"`
	Level    string              `json:"level,omitempty"`
	Message  string              `json:"message"`
	ExitCode int                 `json:"exit_code"`
	Hint     string              `json:"hint,omitempty"`
}

func newJSONEvent(sessionID string, evt session.Event) jsonEvent {
	out := jsonEvent{
		Session:  sessionID,
		Kind:     evt.Kind,
		Key:      evt.Key,
		Value:    evt.Value,
		Stage:    evt.Stage,
		Progress: evt.Progress,
		Entry:    evt.Entry,
	}
	if evt.Err != nil {
		out.Error = &jsonError{
			Source:   evt.Err.Source,
			Level:    evt.Err.Level,
			Message:  evt.Err.Message,
			ExitCode: evt.Err.ExitCode,
			Hint:     evt.Err.Hint,
		}
	}
	return out
}

// runSummary is printed under the tables in human mode.
type runSummary struct {
	ID          string
	Duration    time.Duration
	StdoutBytes int
	StderrBytes int
}

// eventRenderer is the session sink used by the CLI.
type eventRenderer struct {
	out       io.Writer
	progress  io.Writer
	sessionID string
	asJSON    bool
	enc       *json.Encoder

	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	entries []session.Entry
	err     error
}

func newEventRenderer(out, progress io.Writer, sessionID string, asJSON bool, bucketSize float64) *eventRenderer {
	r := &eventRenderer{
		out:       out,
		progress:  progress,
		sessionID: sessionID,
		asJSON:    asJSON,
	}
	if asJSON {
		r.enc = json.NewEncoder(out)
		return r
	}
	if isTerminal(progress) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("7-Zip"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionThrottle(65*time.Millisecond),
		)
	} else {
		r.sampler = logging.NewProgressSampler(bucketSize)
	}
	return r
}

func (r *eventRenderer) Emit(evt session.Event) {
	if r.asJSON {
		r.setErr(r.enc.Encode(newJSONEvent(r.sessionID, evt)))
		return
	}
	switch evt.Kind {
	case session.EventProgress:
		r.showProgress(evt.Progress)
	case session.EventData:
		if evt.Entry != nil {
			r.entries = append(r.entries, *evt.Entry)
		}
	case session.EventEnd, session.EventError:
		if r.bar != nil {
			r.setErr(r.bar.Finish())
		}
	}
}

func (r *eventRenderer) showProgress(p *session.Progress) {
	if p == nil {
		return
	}
	if r.bar != nil {
		if p.FileName != "" {
			r.bar.Describe(truncate(p.FileName, 40))
		}
		r.setErr(r.bar.Set(p.Percent))
		return
	}
	if !r.sampler.ShouldLog(float64(p.Percent)) {
		return
	}
	if p.FileName != "" {
		_, err := fmt.Fprintf(r.progress, "%3d%% %s\n", p.Percent, p.FileName)
		r.setErr(err)
		return
	}
	_, err := fmt.Fprintf(r.progress, "%3d%%\n", p.Percent)
	r.setErr(err)
}

func (r *eventRenderer) setErr(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}

// Finish prints the info and entry tables for the finished record. In JSON
// mode the event stream is already complete and nothing more is written.
func (r *eventRenderer) Finish(rec session.Record, summary runSummary) error {
	if r.err != nil {
		return fmt.Errorf("render output: %w", r.err)
	}
	if r.asJSON {
		return nil
	}
	var sections []string
	if rec.Info.Len() > 0 {
		rows := make([][]string, 0, rec.Info.Len())
		for key, value := range rec.Info.All() {
			rows = append(rows, []string{key, value})
		}
		sections = append(sections, renderTable(tableSpec{title: "Info", headers: []string{"Key", "Value"}, rows: rows}))
	}
	if len(r.entries) > 0 {
		sections = append(sections, renderTable(entryTable(rec.DataType, r.entries)))
	}
	if rec.Err != nil {
		line := fmt.Sprintf("Error (%s): %s", rec.Err.Source, rec.Err.Message)
		if rec.Err.Hint != "" {
			line += " [" + rec.Err.Hint + "]"
		}
		sections = append(sections, line)
	}
	sections = append(sections, formatSummary(rec, summary, len(r.entries)))
	_, err := fmt.Fprintln(r.out, strings.Join(sections, "\n"))
	return err
}

func formatSummary(rec session.Record, summary runSummary, entries int) string {
	outcome := "ok"
	if rec.Err != nil {
		outcome = "failed"
	}
	parts := []string{fmt.Sprintf("Session %s %s", summary.ID, outcome)}
	if summary.Duration > 0 {
		parts = append(parts, "in "+summary.Duration.Round(time.Millisecond).String())
	}
	detail := []string{fmt.Sprintf("%d entries", entries), "stage " + string(rec.Stage)}
	if rec.DataType != session.DataUnknown {
		detail = append(detail, "type "+string(rec.DataType))
	}
	if summary.StdoutBytes > 0 || summary.StderrBytes > 0 {
		detail = append(detail, fmt.Sprintf("stdout %s, stderr %s",
			humanize.Bytes(uint64(summary.StdoutBytes)), humanize.Bytes(uint64(summary.StderrBytes))))
	}
	return strings.Join(parts, " ") + " (" + strings.Join(detail, ", ") + ")"
}

func entryTable(dataType session.DataType, entries []session.Entry) tableSpec {
	spec := tableSpec{title: "Entries"}
	switch dataType {
	case session.DataHash:
		spec.headers = []string{"Hash", "Size", "File"}
		spec.aligns = []columnAlignment{alignLeft, alignRight, alignLeft}
		for _, e := range entries {
			spec.rows = append(spec.rows, []string{e.Hash, formatSize(e.Size), e.File})
		}
	case session.DataList:
		spec.headers = []string{"Modified", "Attr", "Size", "Packed", "File"}
		spec.aligns = []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}
		for _, e := range entries {
			spec.rows = append(spec.rows, []string{e.Modified, e.Attributes, formatSize(e.Size), formatSize(e.PackedSize), e.File})
		}
	case session.DataTechList:
		spec.headers = []string{"File", "Size", "Packed", "Modified", "CRC"}
		spec.aligns = []columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft}
		for _, e := range entries {
			spec.rows = append(spec.rows, []string{e.File, formatSize(e.Size), formatSize(e.PackedSize), e.Modified, e.Hash})
		}
	default:
		spec.headers = []string{"Status", "File"}
		for _, e := range entries {
			status := e.Status
			if status == "" {
				status = e.Symbol
			}
			spec.rows = append(spec.rows, []string{status, e.File})
		}
	}
	return spec
}

func formatSize(size *int64) string {
	if size == nil {
		return ""
	}
	if *size < 0 {
		return fmt.Sprintf("%d", *size)
	}
	return humanize.IBytes(uint64(*size))
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return "…" + string(runes[len(runes)-limit+1:])
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
