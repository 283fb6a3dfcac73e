package sync

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Conflict marker convention, git style. The client's working copy is the
// "local" side.
const (
	conflictBegin = "<<<<<<< local\n"
	conflictSep   = "=======\n"
	conflictEnd   = ">>>>>>> server\n"
)

// MergeStatus is the outcome of merging one file.
type MergeStatus string

const (
	MergeStatusMerged     MergeStatus = "merged"
	MergeStatusConflicted MergeStatus = "conflicted"
)

// MergeResult reports the outcome of resolving one conflict path. Content is
// populated only for conflicted results and carries the marker-annotated
// text for manual resolution.
type MergeResult struct {
	Path    string      `json:"path"`
	Status  MergeStatus `json:"status"`
	Content string      `json:"content,omitempty"`
}

// Merge performs a line-level three-way merge of server and client against
// base. It returns the merged text and whether any conflict region was
// emitted. A nil base means the common ancestor is unknown; without it hunks
// cannot be aligned, so the whole file is one hunk and anything short of
// verbatim agreement conflicts.
func Merge(base *string, server, client string) (string, bool) {
	if server == client {
		return server, false
	}

	if base == nil {
		return conflictWholeFile(server, client), true
	}

	baseLines := splitLines(*base)
	serverSpans := editSpans(lineDiff(*base, server))
	clientSpans := editSpans(lineDiff(*base, client))

	var out []string
	conflicted := false
	cursor := 0

	for _, h := range buildHunks(serverSpans, clientSpans) {
		out = append(out, baseLines[cursor:h.from]...)
		cursor = h.to

		serverRegion := applySpans(baseLines, h.from, h.to, h.server)
		clientRegion := applySpans(baseLines, h.from, h.to, h.client)

		switch {
		case len(h.server) == 0:
			out = append(out, clientRegion...)
		case len(h.client) == 0:
			out = append(out, serverRegion...)
		case linesEqual(serverRegion, clientRegion):
			// both sides made the same change
			out = append(out, serverRegion...)
		default:
			out = append(out, conflictBegin)
			out = append(out, ensureTrailingNewline(clientRegion)...)
			out = append(out, conflictSep)
			out = append(out, ensureTrailingNewline(serverRegion)...)
			out = append(out, conflictEnd)
			conflicted = true
		}
	}
	out = append(out, baseLines[cursor:]...)

	return strings.Join(out, ""), conflicted
}

func conflictWholeFile(server, client string) string {
	var b strings.Builder
	b.WriteString(conflictBegin)
	b.WriteString(client)
	if client != "" && !strings.HasSuffix(client, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(conflictSep)
	b.WriteString(server)
	if server != "" && !strings.HasSuffix(server, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(conflictEnd)
	return b.String()
}

// span replaces base lines [from, to) with its replacement lines. A
// zero-length span (from == to) is a pure insertion at that point.
type span struct {
	from, to int
	lines    []string
}

// hunk is a run of edits from either side bounded by lines unchanged in
// both diffs.
type hunk struct {
	from, to int
	server   []span
	client   []span
}

// splitLines splits text into lines that keep their trailing newline. The
// final line may lack one.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineDiff computes a line-granularity LCS diff of base against other.
func lineDiff(base, other string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(base, other)
	diffs := dmp.DiffMain(chars1, chars2, false)
	return dmp.DiffCharsToLines(diffs, lineArray)
}

// editSpans folds a line diff into replacement spans over the base.
// Adjacent deletes and inserts with no equal run between them coalesce into
// a single span.
func editSpans(diffs []diffmatchpatch.Diff) []span {
	var spans []span
	var cur *span
	base := 0

	flush := func() {
		if cur != nil {
			spans = append(spans, *cur)
			cur = nil
		}
	}

	for _, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			base += len(lines)
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &span{from: base, to: base}
			}
			cur.to += len(lines)
			base += len(lines)
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &span{from: base, to: base}
			}
			cur.lines = append(cur.lines, lines...)
		}
	}
	flush()

	return spans
}

// overlaps reports whether two spans belong to the same hunk. Proper range
// intersection joins them; pure insertions only join a range they fall
// strictly inside of, or another insertion at the same point. An insertion
// at a range boundary stays separate, which is what lets an append merge
// cleanly against an edit of the preceding line.
func overlaps(aFrom, aTo, bFrom, bTo int) bool {
	aIns := aFrom == aTo
	bIns := bFrom == bTo
	switch {
	case aIns && bIns:
		return aFrom == bFrom
	case aIns:
		return bFrom < aFrom && aFrom < bTo
	case bIns:
		return aFrom < bFrom && bFrom < aTo
	default:
		return aFrom < bTo && bFrom < aTo
	}
}

func buildHunks(serverSpans, clientSpans []span) []hunk {
	var hunks []hunk
	i, j := 0, 0

	spanLess := func(a, b span) bool {
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	}

	for i < len(serverSpans) || j < len(clientSpans) {
		var h hunk
		if j >= len(clientSpans) || (i < len(serverSpans) && spanLess(serverSpans[i], clientSpans[j])) {
			s := serverSpans[i]
			i++
			h = hunk{from: s.from, to: s.to, server: []span{s}}
		} else {
			c := clientSpans[j]
			j++
			h = hunk{from: c.from, to: c.to, client: []span{c}}
		}

		// absorb every span from either side that shares the hunk's region
		for {
			absorbed := false
			if i < len(serverSpans) && overlaps(h.from, h.to, serverSpans[i].from, serverSpans[i].to) {
				h.server = append(h.server, serverSpans[i])
				h.to = max(h.to, serverSpans[i].to)
				i++
				absorbed = true
			}
			if j < len(clientSpans) && overlaps(h.from, h.to, clientSpans[j].from, clientSpans[j].to) {
				h.client = append(h.client, clientSpans[j])
				h.to = max(h.to, clientSpans[j].to)
				j++
				absorbed = true
			}
			if !absorbed {
				break
			}
		}

		hunks = append(hunks, h)
	}

	return hunks
}

// applySpans materializes one side's version of base[from:to].
func applySpans(base []string, from, to int, spans []span) []string {
	var out []string
	cursor := from
	for _, s := range spans {
		out = append(out, base[cursor:s.from]...)
		out = append(out, s.lines...)
		cursor = s.to
	}
	out = append(out, base[cursor:to]...)
	return out
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ensureTrailingNewline(lines []string) []string {
	if len(lines) == 0 {
		return lines
	}
	last := lines[len(lines)-1]
	if strings.HasSuffix(last, "\n") {
		return lines
	}
	out := make([]string, len(lines))
	copy(out, lines)
	out[len(out)-1] = last + "\n"
	return out
}
