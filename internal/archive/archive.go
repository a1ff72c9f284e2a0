// Package archive stores REPL sessions as txtar archives.
//
// An archive holds a "session" header member followed by one
// "snippet-N.kts" member per compiled snippet, N being the snippet's
// sequence number:
//
//	krepl session archive
//	-- session --
//	id: 5f0c...
//	version: 1
//	snippets: 2
//	-- snippet-1.kts --
//	val x = 5
//	-- snippet-2.kts --
//	x + 2
package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ileasile/kotlin/internal/repl"
	"golang.org/x/tools/txtar"
)

// FormatVersion is the archive layout version written by Export.
const FormatVersion = 1

const (
	headerName    = "session"
	snippetPrefix = "snippet-"
	snippetSuffix = ".kts"
	comment       = "krepl session archive\n"
)

var (
	// ErrMalformed is returned for archives that do not follow the layout.
	ErrMalformed = errors.New("archive: malformed session archive")
	// ErrUnsupportedVersion is returned for archives written by a newer layout.
	ErrUnsupportedVersion = errors.New("archive: unsupported archive version")
	// ErrMarkerLine is returned when a snippet contains a line that txtar
	// would read as a member boundary.
	ErrMarkerLine = errors.New("archive: snippet contains a txtar file marker line")
)

// Header describes the session an archive was taken from.
type Header struct {
	SessionID string
	Version   int
}

// Entry is one archived snippet.
type Entry struct {
	No   int
	Text string
}

// Session is a decoded archive.
type Session struct {
	Header  Header
	Entries []Entry
}

// FromSession captures every snippet compiled so far by s.
func FromSession(s *repl.Session) *Session {
	hist := s.CompiledHistory()
	out := &Session{
		Header:  Header{SessionID: s.ID(), Version: FormatVersion},
		Entries: make([]Entry, 0, len(hist)),
	}
	for _, e := range hist {
		out.Entries = append(out.Entries, Entry{No: e.Item.Snippet.No, Text: e.Item.Snippet.Text})
	}
	return out
}

// Export encodes the session as a txtar archive.
func Export(s *Session) (*txtar.Archive, error) {
	a := &txtar.Archive{Comment: []byte(comment)}
	var hdr strings.Builder
	fmt.Fprintf(&hdr, "id: %s\n", s.Header.SessionID)
	fmt.Fprintf(&hdr, "version: %d\n", FormatVersion)
	fmt.Fprintf(&hdr, "snippets: %d\n", len(s.Entries))
	a.Files = append(a.Files, txtar.File{Name: headerName, Data: []byte(hdr.String())})

	for _, e := range s.Entries {
		if hasMarkerLine(e.Text) {
			return nil, fmt.Errorf("%w: snippet %d", ErrMarkerLine, e.No)
		}
		data := e.Text
		if !strings.HasSuffix(data, "\n") {
			data += "\n"
		}
		a.Files = append(a.Files, txtar.File{Name: snippetName(e.No), Data: []byte(data)})
	}
	return a, nil
}

// Import decodes an archive produced by Export. Entries are returned in
// ascending snippet order.
func Import(a *txtar.Archive) (*Session, error) {
	out := &Session{}
	seenHeader := false
	seen := make(map[int]bool)
	for _, f := range a.Files {
		if f.Name == headerName {
			if seenHeader {
				return nil, fmt.Errorf("%w: duplicate %s member", ErrMalformed, headerName)
			}
			seenHeader = true
			hdr, err := parseHeader(f.Data)
			if err != nil {
				return nil, err
			}
			out.Header = hdr
			continue
		}
		no, ok := parseSnippetName(f.Name)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected member %q", ErrMalformed, f.Name)
		}
		if seen[no] {
			return nil, fmt.Errorf("%w: duplicate snippet %d", ErrMalformed, no)
		}
		seen[no] = true
		out.Entries = append(out.Entries, Entry{No: no, Text: strings.TrimSuffix(string(f.Data), "\n")})
	}
	if !seenHeader {
		return nil, fmt.Errorf("%w: missing %s member", ErrMalformed, headerName)
	}
	slices.SortFunc(out.Entries, func(a, b Entry) int { return a.No - b.No })
	return out, nil
}

// Save writes the session archive to path.
func Save(path string, s *Session) error {
	a, err := Export(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, txtar.Format(a), 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// Load reads a session archive from path.
func Load(path string) (*Session, error) {
	a, err := txtar.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return Import(a)
}

// Replay submits every archived snippet to target, in order. Failed
// snippets do not stop the replay; fn observes each result. Only session
// misuse and cancellation abort it.
func Replay(ctx context.Context, target *repl.Session, s *Session, fn func(Entry, repl.SubmitResult)) error {
	for _, e := range s.Entries {
		res, err := target.Submit(ctx, e.Text)
		if err != nil {
			return fmt.Errorf("replaying snippet %d: %w", e.No, err)
		}
		if fn != nil {
			fn(e, res)
		}
	}
	return nil
}

func snippetName(no int) string {
	return snippetPrefix + strconv.Itoa(no) + snippetSuffix
}

func parseSnippetName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, snippetPrefix)
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, snippetSuffix)
	if !ok {
		return 0, false
	}
	no, err := strconv.Atoi(rest)
	if err != nil || no < 1 {
		return 0, false
	}
	return no, true
}

func parseHeader(data []byte) (Header, error) {
	var h Header
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return h, fmt.Errorf("%w: header line %q", ErrMalformed, line)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "id":
			h.SessionID = value
		case "version":
			v, err := strconv.Atoi(value)
			if err != nil {
				return h, fmt.Errorf("%w: version %q", ErrMalformed, value)
			}
			h.Version = v
		}
	}
	if h.Version > FormatVersion {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

// hasMarkerLine reports whether text has a line of the form "-- name --".
func hasMarkerLine(text string) bool {
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "-- ") && strings.HasSuffix(line, " --") && len(line) > 6 {
			return true
		}
	}
	return false
}
