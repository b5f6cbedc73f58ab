package sender

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/emersion/go-message/textproto"
)

// addressPattern matches word characters, dots and hyphens on both sides
// of a single @.
var addressPattern = regexp.MustCompile(`[\p{L}\p{N}_.-]+@[\p{L}\p{N}_.-]+`)

// headerTerminator guarantees the header reader stops at a blank line
// even when the server trimmed it.
var headerTerminator = []byte("\r\n\r\n")

// mboxEnvelope starts the "From sender date" line some servers and mbox
// exports put ahead of the header fields.
var mboxEnvelope = []byte("From ")

// ExtractSender returns the first address in the From header of a raw
// header block. It reports false when the block has no From field or the
// field holds nothing address-like.
//
// The pattern runs on the raw field value. Encoded words are left
// encoded, so a display name can never shadow the address that follows.
func ExtractSender(raw []byte) (string, bool) {
	raw = skipEnvelope(raw)
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}

	from, ok := fromField(raw)
	if !ok {
		return "", false
	}

	match := addressPattern.FindString(from)
	if match == "" {
		return "", false
	}
	return match, true
}

// skipEnvelope drops a leading mbox envelope line.
func skipEnvelope(raw []byte) []byte {
	if !bytes.HasPrefix(raw, mboxEnvelope) {
		return raw
	}
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		return raw[i+1:]
	}
	return nil
}

// fromField returns the undecoded value of the first From field.
func fromField(raw []byte) (string, bool) {
	data := make([]byte, 0, len(raw)+len(headerTerminator))
	data = append(data, raw...)
	data = append(data, headerTerminator...)

	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return scanFromField(raw)
	}
	if !h.Has("From") {
		return "", false
	}
	return h.Get("From"), true
}

// scanFromField reads the header block line by line when the strict
// reader rejects it. Fields are read up to the first blank or malformed
// line; folded continuation lines are joined to their field.
func scanFromField(raw []byte) (string, bool) {
	var (
		value  strings.Builder
		found  bool
		inFrom bool
	)

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if inFrom {
				value.WriteByte(' ')
				value.WriteString(strings.TrimSpace(line))
			}
			continue
		}

		name, v, ok := strings.Cut(line, ":")
		if !ok || !isFieldName(name) {
			break
		}
		inFrom = false
		if !found && strings.EqualFold(name, "From") {
			found, inFrom = true, true
			value.WriteString(strings.TrimSpace(v))
		}
	}

	return value.String(), found
}

// isFieldName reports whether name is made of printable ASCII without
// spaces, as header field names are.
func isFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '!' || name[i] > '~' {
			return false
		}
	}
	return true
}
