package shell

import (
	"context"
	"strings"

	"github.com/ileasile/kotlin/internal/repl"
)

// Chunk is one input of a script: a snippet or a meta-command.
type Chunk struct {
	Text string
	// Line is the 1-based line of src the chunk starts on.
	Line int
}

// Split cuts src into the inputs a shell fed with it line by line would
// execute. A trailing incomplete snippet is returned as the last chunk.
func Split(ctx context.Context, session *repl.Session, src string) ([]Chunk, error) {
	var (
		out     []Chunk
		pending []string
		start   int
	)
	for i, line := range strings.Split(strings.TrimSuffix(src, "\n"), "\n") {
		if len(pending) == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if isMeta(trimmed) {
				out = append(out, Chunk{Text: trimmed, Line: i + 1})
				continue
			}
			start = i + 1
		}
		pending = append(pending, line)
		text := strings.Join(pending, "\n")
		res, err := session.Check(ctx, text)
		if err != nil {
			return nil, err
		}
		if res.Status == repl.CheckIncomplete {
			continue
		}
		out = append(out, Chunk{Text: text, Line: start})
		pending = pending[:0]
	}
	if len(pending) > 0 {
		out = append(out, Chunk{Text: strings.Join(pending, "\n"), Line: start})
	}
	return out, nil
}
