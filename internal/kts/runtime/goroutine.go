package runtime

import (
	"bytes"
	goruntime "runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's id from the header of its
// stack trace ("goroutine 7 [running]:"). It returns 0 when the header
// cannot be parsed, which callers treat as "not on the loop".
func goroutineID() int64 {
	var buf [64]byte
	return parseGoroutineID(buf[:goruntime.Stack(buf[:], false)])
}

func parseGoroutineID(stack []byte) int64 {
	rest, ok := bytes.CutPrefix(stack, goroutinePrefix)
	if !ok {
		return 0
	}
	if i := bytes.IndexAny(rest, " ["); i >= 0 {
		rest = rest[:i]
	}
	id, err := strconv.ParseInt(string(rest), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
