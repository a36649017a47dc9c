package terminal

import (
	"regexp"
	"strings"
)

// Terminal-control sequences a shell echoes back through the output stream.
// These are query responses and mode chatter, not content, so they are
// stripped before output is buffered. Patterns are applied in a fixed order:
// full sequences first, then the truncated DA tail left behind when a
// response's head was already consumed upstream, then stray control bytes.
var (
	// Device Attributes response: ESC [ ? 61;6;7;... c
	reDeviceAttrs = regexp.MustCompile(`\x1b\[\?[\d;]+c`)

	// Cursor position report: ESC [ row ; col R
	reCursorReport = regexp.MustCompile(`\x1b\[\d+;\d+R`)

	// Mode toggles: bracketed paste (2004), alternate screen (1049),
	// application cursor keys (1), cursor visibility (25), and the four
	// mouse tracking variants.
	reModeToggle = regexp.MustCompile(`\x1b\[\?(?:2004|1049|1000|1002|1003|1006|25|1)[hl]`)

	// OSC sequences: ESC ] ... BEL or ESC ] ... ESC \
	reOSCBel = regexp.MustCompile(`\x1b\][^\x07]*\x07`)
	reOSCEsc = regexp.MustCompile(`\x1b\][^\x1b]*\x1b\\`)
)

// daTail is the fragment left behind when the upstream consumer has already
// eaten the head of a Device Attributes response.
const daTail = "23;24;28;32;42c"

// Filter strips recognized terminal-control sequences from a chunk of
// output. It is pure and idempotent on already-clean text. Sequences split
// across chunk boundaries are not reassembled here; see Scrubber.
func Filter(chunk string) string {
	if chunk == "" {
		return chunk
	}

	// The full-response pattern must run before the tail literal: the tail
	// is a substring of an intact response, and removing it first would
	// leave a headless fragment the pattern can no longer match.
	out := reDeviceAttrs.ReplaceAllString(chunk, "")
	out = strings.ReplaceAll(out, daTail, "")

	out = reCursorReport.ReplaceAllString(out, "")
	out = reModeToggle.ReplaceAllString(out, "")

	// Cursor save/restore, bracket and single-letter (DECSC/DECRC) forms.
	out = strings.ReplaceAll(out, "\x1b[s", "")
	out = strings.ReplaceAll(out, "\x1b[u", "")
	out = strings.ReplaceAll(out, "\x1b7", "")
	out = strings.ReplaceAll(out, "\x1b8", "")

	out = reOSCBel.ReplaceAllString(out, "")
	out = reOSCEsc.ReplaceAllString(out, "")

	// Stray ETB, CAN, FS control bytes, wherever they occur.
	out = strings.ReplaceAll(out, "\x17", "")
	out = strings.ReplaceAll(out, "\x18", "")
	out = strings.ReplaceAll(out, "\x1c", "")

	return out
}

// maxCarry bounds the tail held back between chunks. An OSC sequence that
// never terminates would otherwise make the carry grow without limit.
const maxCarry = 256

// Scrubber is a stateful wrapper around Filter for a stream read in
// arbitrary chunks. A chunk ending inside an escape sequence would leak the
// fragment into visible output, so the Scrubber holds an unterminated
// trailing sequence back and prepends it to the next chunk.
//
// A Scrubber is used by a single reader goroutine and is not safe for
// concurrent use.
type Scrubber struct {
	tail string
}

// Scrub filters one chunk, carrying any unterminated trailing escape
// sequence into the next call.
func (s *Scrubber) Scrub(chunk string) string {
	if s.tail != "" {
		chunk = s.tail + chunk
		s.tail = ""
	}

	if i := danglingEscape(chunk); i >= 0 && len(chunk)-i <= maxCarry {
		s.tail = chunk[i:]
		chunk = chunk[:i]
	}

	return Filter(chunk)
}

// Flush filters and returns whatever tail is still held back.
func (s *Scrubber) Flush() string {
	t := s.tail
	s.tail = ""
	return Filter(t)
}

// danglingEscape returns the index of a trailing escape sequence that has
// started but not yet terminated, or -1 if the chunk ends cleanly. Only the
// sequence classes Filter recognizes are considered.
func danglingEscape(chunk string) int {
	i := strings.LastIndexByte(chunk, 0x1b)
	if i < 0 {
		return -1
	}

	rest := chunk[i+1:]
	switch {
	case rest == "":
		// Lone ESC, could start anything.
		return i

	case rest[0] == '[':
		// CSI is terminated by a byte in the 0x40..0x7e range.
		for j := 1; j < len(rest); j++ {
			if rest[j] >= 0x40 && rest[j] <= 0x7e {
				return -1
			}
		}
		return i

	case rest[0] == ']':
		// OSC runs until BEL or ESC \; the ESC found above is the opener,
		// so neither terminator has appeared yet.
		if strings.ContainsRune(rest, 0x07) {
			return -1
		}
		return i

	case rest == "\\":
		// The ESC \ terminator of an OSC already handled in a prior pass.
		return -1

	default:
		// ESC followed by something Filter does not recognize; let it through.
		return -1
	}
}
