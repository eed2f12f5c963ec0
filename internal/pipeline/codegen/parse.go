package codegen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
)

var (
	ErrNoJSON   = errors.New("no JSON object found in reply")
	ErrNoFiles  = errors.New("reply has no files")
	ErrBadFiles = errors.New("files is not an array")
)

// ExtractJSON returns the JSON payload of a model reply: the body of the first
// ```json fence, else the first plain fence, else the outermost braces. An
// unterminated fence runs to the end of the text.
func ExtractJSON(text string) (string, error) {
	if body, ok := fenced(text, "```json"); ok {
		return body, nil
	}
	if body, ok := fenced(text, "```"); ok {
		return body, nil
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return "", ErrNoJSON
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return strings.TrimSpace(text[start:]), nil
	}
	return text[start : end+1], nil
}

func fenced(text, open string) (string, bool) {
	i := strings.Index(text, open)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(open):]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

type rawEntry struct {
	Path    string          `json:"path"`
	Content json.RawMessage `json:"content"`
}

// ParseFiles decodes {"files":[{"path","content"},...]} from payload.
//
// Entries are decoded one by one. When the payload is cut off, every entry
// that decoded completely is kept and salvaged is true; a reply with no
// complete entry is an error. A content value that is not a string (a model
// writing package.json as an object) is kept as its JSON text.
func ParseFiles(payload string) (files []sites.FileEntry, salvaged bool, err error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, false, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return files, len(files) > 0, truncatedOr(files, err)
		}
		key, _ := tok.(string)
		if key != "files" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return files, len(files) > 0, truncatedOr(files, err)
			}
			continue
		}
		if err := expectDelim(dec, '['); err != nil {
			return nil, false, ErrBadFiles
		}
		for dec.More() {
			var e rawEntry
			if err := dec.Decode(&e); err != nil {
				if len(files) == 0 {
					return nil, false, fmt.Errorf("decode files[0]: %w", err)
				}
				return files, true, nil
			}
			if strings.TrimSpace(e.Path) == "" {
				continue
			}
			files = append(files, sites.FileEntry{Path: strings.TrimSpace(e.Path), Content: contentString(e.Content)})
		}
		if _, err := dec.Token(); err != nil {
			return files, len(files) > 0, truncatedOr(files, nil)
		}
	}
	if len(files) == 0 {
		return nil, false, ErrNoFiles
	}
	return files, false, nil
}

func truncatedOr(files []sites.FileEntry, err error) error {
	if len(files) > 0 {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrNoFiles
	}
	return err
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: want %q got %v", ErrNoJSON, want, tok)
	}
	return nil
}

func contentString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err == nil {
		return buf.String()
	}
	return string(raw)
}

// ParseEdits decodes {"files":{"path":"content",...}} from a model reply.
func ParseEdits(text string) (map[string]string, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var out struct {
		Files map[string]json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("decode edit reply: %w", err)
	}
	if out.Files == nil {
		return nil, ErrNoFiles
	}
	files := make(map[string]string, len(out.Files))
	for p, raw := range out.Files {
		files[strings.TrimSpace(p)] = contentString(raw)
	}
	return files, nil
}
