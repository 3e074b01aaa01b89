package ticket

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Flag is one boolean ticket line, rendered as key=True or key=False.
type Flag struct {
	Key   string
	Value bool
}

// Content is the body of a ticket: the work root followed by flags in a
// fixed order.
type Content struct {
	RootDir string
	Flags   []Flag
}

// StitchContent describes a full processing request. skipDenoise asks the
// worker to stop after conversion.
func StitchContent(rootDir string, skipDenoise bool) Content {
	c := Content{RootDir: rootDir, Flags: []Flag{
		{Key: "keepComposites", Value: true},
		{Key: "moveToHive", Value: false},
	}}
	if skipDenoise {
		c.Flags = append(c.Flags, Flag{Key: "denoise", Value: false})
	}
	return c
}

// MoveContent describes a move-only request to the archive tier.
func MoveContent(rootDir string) Content {
	return Content{RootDir: rootDir, Flags: []Flag{
		{Key: "IMS", Value: false},
		{Key: "denoise", Value: false},
		{Key: "moveOnly", Value: true},
	}}
}

// Encode renders the ticket body.
func (c Content) Encode() []byte {
	var b bytes.Buffer
	// Workers read the path between the quotes verbatim; no escaping.
	b.WriteString(`rootDir="` + c.RootDir + `"`)
	for _, f := range c.Flags {
		b.WriteByte('\n')
		b.WriteString(f.Key)
		b.WriteByte('=')
		if f.Value {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	}
	return b.Bytes()
}

// Flag returns the value of key and whether it was present.
func (c Content) Flag(key string) (bool, bool) {
	for _, f := range c.Flags {
		if f.Key == key {
			return f.Value, true
		}
	}
	return false, false
}

// Parse decodes a key=value ticket body. Unknown non-boolean keys other than
// rootDir are rejected so malformed hand-offs surface instead of being
// silently reinterpreted.
func Parse(data []byte) (Content, error) {
	var c Content
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, raw, ok := strings.Cut(text, "=")
		if !ok {
			return Content{}, fmt.Errorf("ticket line %d: missing '='", line)
		}
		key = strings.TrimSpace(key)
		value := unquote(strings.TrimSpace(raw))
		if key == "rootDir" {
			c.RootDir = value
			continue
		}
		b, err := parseBool(value)
		if err != nil {
			return Content{}, fmt.Errorf("ticket line %d: %s: %w", line, key, err)
		}
		c.Flags = append(c.Flags, Flag{Key: key, Value: b})
	}
	if err := scanner.Err(); err != nil {
		return Content{}, fmt.Errorf("read ticket: %w", err)
	}
	if c.RootDir == "" {
		return Content{}, fmt.Errorf("ticket: rootDir missing")
	}
	return c, nil
}

// WorkRoot extracts the directory a worker ticket refers to. Daemon tickets
// carry rootDir; the denoise workers rewrite tickets as XML job descriptions
// whose output folder lives in an outFilePathUnix element.
func WorkRoot(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return xmlWorkRoot(trimmed)
	}
	c, err := Parse(data)
	if err != nil {
		return "", false
	}
	return c.RootDir, true
}

func xmlWorkRoot(data []byte) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", false
		}
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || (start.Name.Local != "outFilePathUnix" && start.Name.Local != "rootDir") {
			continue
		}
		var value string
		if err := dec.DecodeElement(&value, &start); err != nil {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}
}

func unquote(value string) string {
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		return value[1 : len(value)-1]
	}
	return value
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}
