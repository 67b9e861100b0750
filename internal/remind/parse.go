package remind

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// commandVerb starts a reminder request. It may appear anywhere in the
// message text; chat frontends often prepend mentions or routing prefixes.
const commandVerb = "/remindme"

// HelpText is the fixed reply for anything Parse rejects.
const HelpText = "Sorry, I didn't quite get that. Please use a format like:\n" +
	"• `/remindme \"Task\" in 10 minutes`\n" +
	"• `/remindme \"Task\" at 16:30`"

// Parsed is a successfully understood reminder request.
type Parsed struct {
	Task  string
	DueAt time.Time // UTC instant
}

// ParseError reports why command text was not understood. Reason is for
// logs; callers reply with HelpText either way.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

func parseErr(reason string) (Parsed, error) {
	return Parsed{}, &ParseError{Reason: reason}
}

// Parse extracts a reminder request from raw message text.
//
// Two shapes are recognized after the quoted task:
//
//	/remindme "<task>" in <N> second(s)|minute(s)|hour(s)
//	/remindme "<task>" at <HH:MM>        (24-hour clock)
//
// The relative form is tried first; text matching both resolves to it.
// "at HH:MM" resolves to the next occurrence of that wall-clock time in
// now's location: today if still ahead, otherwise tomorrow. Trailing text
// after a matched clause is tolerated.
//
// Parse is pure: no I/O, no clock reads; "now" is the only time source.
func Parse(text string, now time.Time) (Parsed, error) {
	rest, found := isolateTask(text)
	if !found {
		if !containsVerb(text) {
			return parseErr("no /remindme command found")
		}
		return parseErr("missing quoted task after /remindme")
	}

	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return parseErr("unterminated task quote")
	}
	task := rest[:end]

	toks := strings.Fields(rest[end+1:])
	if len(toks) == 0 {
		return parseErr("missing 'in' or 'at' clause after task")
	}

	switch strings.ToLower(toks[0]) {
	case "in":
		d, err := parseOffset(toks[1:])
		if err != nil {
			return Parsed{}, err
		}
		return Parsed{Task: task, DueAt: now.Add(d).UTC()}, nil
	case "at":
		at, err := parseClock(toks[1:], now)
		if err != nil {
			return Parsed{}, err
		}
		return Parsed{Task: task, DueAt: at.UTC()}, nil
	default:
		return parseErr("expected 'in' or 'at' after task, got " + strconv.Quote(toks[0]))
	}
}

func containsVerb(text string) bool {
	return strings.Contains(strings.ToLower(text), commandVerb)
}

// isolateTask finds the first verb occurrence that is followed by
// whitespace and an opening quote, and returns the text starting just
// inside the quote.
func isolateTask(text string) (string, bool) {
	lower := strings.ToLower(text)
	from := 0
	for {
		i := strings.Index(lower[from:], commandVerb)
		if i < 0 {
			return "", false
		}
		after := from + i + len(commandVerb)
		rest := text[after:]
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if len(trimmed) < len(rest) && strings.HasPrefix(trimmed, `"`) {
			return trimmed[1:], true
		}
		from = after
	}
}

// parseOffset handles `in <N> <unit>`.
func parseOffset(toks []string) (time.Duration, error) {
	if len(toks) == 0 {
		return 0, &ParseError{Reason: "missing offset after 'in'"}
	}
	if !allDigits(toks[0]) {
		return 0, &ParseError{Reason: "offset is not a plain number: " + strconv.Quote(toks[0])}
	}
	n, err := strconv.ParseInt(toks[0], 10, 64)
	if err != nil {
		return 0, &ParseError{Reason: "offset out of range: " + strconv.Quote(toks[0])}
	}
	if len(toks) < 2 {
		return 0, &ParseError{Reason: "missing unit after offset"}
	}

	var unit time.Duration
	switch strings.ToLower(toks[1]) {
	case "second", "seconds":
		unit = time.Second
	case "minute", "minutes":
		unit = time.Minute
	case "hour", "hours":
		unit = time.Hour
	default:
		return 0, &ParseError{Reason: "unknown unit " + strconv.Quote(toks[1])}
	}

	if n > math.MaxInt64/int64(unit) {
		return 0, &ParseError{Reason: "offset out of range: " + strconv.Quote(toks[0])}
	}
	return time.Duration(n) * unit, nil
}

// parseClock handles `at <HH:MM>` and resolves the next occurrence.
func parseClock(toks []string, now time.Time) (time.Time, error) {
	if len(toks) == 0 {
		return time.Time{}, &ParseError{Reason: "missing time after 'at'"}
	}
	tok := toks[0]

	sep := strings.IndexByte(tok, ':')
	if sep < 0 {
		return time.Time{}, &ParseError{Reason: "clock time must look like HH:MM, got " + strconv.Quote(tok)}
	}
	hh, mm := tok[:sep], tok[sep+1:]
	if len(hh) < 1 || len(hh) > 2 || !allDigits(hh) || len(mm) != 2 || !allDigits(mm) {
		return time.Time{}, &ParseError{Reason: "clock time must look like HH:MM, got " + strconv.Quote(tok)}
	}

	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(mm)
	if hour > 23 {
		return time.Time{}, &ParseError{Reason: "hour out of range: " + hh}
	}
	if minute > 59 {
		return time.Time{}, &ParseError{Reason: "minute out of range: " + mm}
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if at.Before(now) {
		// Already passed today; same wall-clock time tomorrow.
		at = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return at, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
