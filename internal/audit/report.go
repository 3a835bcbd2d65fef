package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Report is the normalized output of a vulnerability scan.
type Report struct {
	// Total is the number of vulnerabilities that count against startup.
	Total int
	// BySeverity holds summary-format counts, keyed by severity.
	BySeverity map[string]int
	// IDs holds the distinct advisory ids reported by a finding stream.
	IDs []string
	// Summary is set for summary documents.
	Summary bool
	// Findings counts finding messages in a stream, called or not.
	Findings int
}

// Conclusive reports whether the scan got far enough to judge the code: a
// summary document, or a stream holding at least one finding.
func (r Report) Conclusive() bool {
	return r.Summary || r.Findings > 0
}

// ErrEmptyReport is returned when the scanner printed nothing parseable.
var ErrEmptyReport = errors.New("audit: empty report")

// ErrUnrecognizedReport is returned for JSON that is neither a summary
// document nor a govulncheck stream.
var ErrUnrecognizedReport = errors.New("audit: unrecognized report")

var severityOrder = []string{"critical", "high", "moderate", "medium", "low", "info"}

type summaryDoc struct {
	Metadata struct {
		Vulnerabilities map[string]int `json:"vulnerabilities"`
	} `json:"metadata"`
}

type streamMessage struct {
	Config   json.RawMessage `json:"config"`
	Progress json.RawMessage `json:"progress"`
	SBOM     json.RawMessage `json:"SBOM"`
	OSV      json.RawMessage `json:"osv"`
	Finding  *struct {
		OSV   string `json:"osv"`
		Trace []struct {
			Module   string `json:"module"`
			Package  string `json:"package"`
			Function string `json:"function"`
		} `json:"trace"`
	} `json:"finding"`
}

func (m streamMessage) known() bool {
	return m.Config != nil || m.Progress != nil || m.SBOM != nil || m.OSV != nil || m.Finding != nil
}

// Parse reads a scanner report in either supported format.
func Parse(r io.Reader) (Report, error) {
	dec := json.NewDecoder(r)

	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		if errors.Is(err, io.EOF) {
			return Report{}, ErrEmptyReport
		}
		return Report{}, fmt.Errorf("decode report: %w", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(first, &keys); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	if _, ok := keys["metadata"]; ok {
		return parseSummary(first)
	}
	return parseStream(first, dec)
}

func parseSummary(raw json.RawMessage) (Report, error) {
	var doc summaryDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Report{}, fmt.Errorf("decode summary: %w", err)
	}

	if doc.Metadata.Vulnerabilities == nil {
		return Report{}, fmt.Errorf("%w: metadata carries no vulnerabilities object", ErrUnrecognizedReport)
	}

	rep := Report{Summary: true, BySeverity: map[string]int{}}
	for sev, n := range doc.Metadata.Vulnerabilities {
		// "total" repeats the per-severity sum.
		if sev == "total" {
			continue
		}
		rep.BySeverity[sev] = n
		rep.Total += n
	}
	if len(rep.BySeverity) == 0 {
		rep.Total = doc.Metadata.Vulnerabilities["total"]
	}
	return rep, nil
}

// parseStream counts distinct advisories whose trace reaches a function,
// i.e. vulnerable code the program actually calls.
func parseStream(first json.RawMessage, dec *json.Decoder) (Report, error) {
	seen := map[string]bool{}
	findings := 0
	handle := func(raw json.RawMessage) error {
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("decode finding: %w", err)
		}
		if !msg.known() {
			return fmt.Errorf("%w: %s", ErrUnrecognizedReport, excerpt(raw))
		}
		f := msg.Finding
		if f != nil {
			findings++
		}
		if f == nil || f.OSV == "" || len(f.Trace) == 0 || f.Trace[0].Function == "" {
			return nil
		}
		seen[f.OSV] = true
		return nil
	}

	if err := handle(first); err != nil {
		return Report{}, err
	}
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Report{}, fmt.Errorf("decode report: %w", err)
		}
		if err := handle(raw); err != nil {
			return Report{}, err
		}
	}

	rep := Report{Total: len(seen), Findings: findings}
	for id := range seen {
		rep.IDs = append(rep.IDs, id)
	}
	sort.Strings(rep.IDs)
	return rep, nil
}

// Details renders the report for operators, most severe first.
func (r Report) Details() string {
	if len(r.IDs) > 0 {
		return strings.Join(r.IDs, ", ")
	}

	var parts []string
	done := map[string]bool{}
	for _, sev := range severityOrder {
		if n := r.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", sev, n))
		}
		done[sev] = true
	}
	var rest []string
	for sev, n := range r.BySeverity {
		if !done[sev] && n > 0 {
			rest = append(rest, fmt.Sprintf("%s=%d", sev, n))
		}
	}
	sort.Strings(rest)
	return strings.Join(append(parts, rest...), ", ")
}

func excerpt(raw json.RawMessage) string {
	const limit = 120
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}
