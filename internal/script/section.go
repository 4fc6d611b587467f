package script

import (
	"fmt"
	"strings"
)

// Section is one bracketed block of a script: [NAME] { key=value; ... }.
// Names and keys are stored lowercased.
type Section struct {
	Name     string
	Values   map[string]string
	Sections []*Section
}

func newSection(name string) *Section {
	return &Section{
		Name:   strings.ToLower(name),
		Values: make(map[string]string),
	}
}

// Get returns a value by case-insensitive key.
func (s *Section) Get(key string) (string, bool) {
	v, ok := s.Values[strings.ToLower(key)]
	return v, ok
}

// Child returns the first subsection with the given name.
func (s *Section) Child(name string) *Section {
	name = strings.ToLower(name)
	for _, c := range s.Sections {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenWithPrefix returns subsections whose name starts with prefix, in script order.
func (s *Section) ChildrenWithPrefix(prefix string) []*Section {
	prefix = strings.ToLower(prefix)
	var out []*Section
	for _, c := range s.Sections {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// scanner walks script text keeping track of the current line for errors.
type scanner struct {
	src  string
	pos  int
	line int
}

func (sc *scanner) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidScript, sc.line, fmt.Sprintf(format, args...))
}

func (sc *scanner) eof() bool { return sc.pos >= len(sc.src) }

func (sc *scanner) peek() byte { return sc.src[sc.pos] }

func (sc *scanner) advance() byte {
	c := sc.src[sc.pos]
	sc.pos++
	if c == '\n' {
		sc.line++
	}
	return c
}

// skipSpace skips whitespace and // comments.
func (sc *scanner) skipSpace() {
	for !sc.eof() {
		c := sc.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			sc.advance()
		case c == '/' && sc.pos+1 < len(sc.src) && sc.src[sc.pos+1] == '/':
			for !sc.eof() && sc.peek() != '\n' {
				sc.advance()
			}
		default:
			return
		}
	}
}

// until consumes up to (not including) the first byte in stops.
func (sc *scanner) until(stops string) (string, bool) {
	start := sc.pos
	for !sc.eof() {
		if strings.IndexByte(stops, sc.peek()) >= 0 {
			return sc.src[start:sc.pos], true
		}
		sc.advance()
	}
	return sc.src[start:sc.pos], false
}

func (sc *scanner) expect(c byte) error {
	sc.skipSpace()
	if sc.eof() {
		return sc.errorf("expected %q, got end of script", c)
	}
	if got := sc.peek(); got != c {
		return sc.errorf("expected %q, got %q", c, got)
	}
	sc.advance()
	return nil
}

// parseSections parses top-level sections until EOF.
func parseSections(text string) (*Section, error) {
	sc := &scanner{src: text, line: 1}
	root := newSection("")
	for {
		sc.skipSpace()
		if sc.eof() {
			return root, nil
		}
		sec, err := sc.section()
		if err != nil {
			return nil, err
		}
		root.Sections = append(root.Sections, sec)
	}
}

func (sc *scanner) section() (*Section, error) {
	if err := sc.expect('['); err != nil {
		return nil, err
	}
	name, ok := sc.until("]\n{}")
	if !ok || sc.peek() != ']' {
		return nil, sc.errorf("unterminated section header")
	}
	sc.advance()
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, sc.errorf("empty section name")
	}
	sec := newSection(name)
	if err := sc.expect('{'); err != nil {
		return nil, err
	}

	for {
		sc.skipSpace()
		if sc.eof() {
			return nil, sc.errorf("section [%s] is not closed", name)
		}
		switch sc.peek() {
		case '}':
			sc.advance()
			return sec, nil
		case '[':
			child, err := sc.section()
			if err != nil {
				return nil, err
			}
			sec.Sections = append(sec.Sections, child)
		default:
			if err := sc.pair(sec); err != nil {
				return nil, err
			}
		}
	}
}

func (sc *scanner) pair(sec *Section) error {
	key, ok := sc.until("=;{}[\n")
	if !ok || sc.peek() != '=' {
		return sc.errorf("expected key=value in section [%s]", sec.Name)
	}
	sc.advance()
	key = strings.TrimSpace(key)
	if key == "" {
		return sc.errorf("empty key in section [%s]", sec.Name)
	}
	value, ok := sc.until(";{}\n")
	if !ok || sc.peek() != ';' {
		return sc.errorf("value of %q is not terminated by ';'", key)
	}
	sc.advance()
	sec.Values[strings.ToLower(key)] = strings.TrimSpace(value)
	return nil
}
