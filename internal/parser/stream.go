package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// streamFrame is an open container on the decode stack.
type streamFrame struct {
	array   []any
	object  map[string]any
	isArray bool
	key     string
	haveKey bool
}

func (f *streamFrame) empty() bool {
	if f.isArray {
		return len(f.array) == 0
	}
	return len(f.object) == 0
}

func (f *streamFrame) value() any {
	if f.isArray {
		if f.array == nil {
			return []any{}
		}
		return f.array
	}
	return f.object
}

// add appends v to an array frame or stores it under the pending key.
func (f *streamFrame) add(v any) {
	if f.isArray {
		f.array = append(f.array, v)
		return
	}
	f.object[f.key] = v
	f.haveKey = false
	f.key = ""
}

// DecodeStream walks the text token by token starting at the first '{' or
// '['. It returns the first complete top-level value. When the input ends
// or turns malformed before the root closes, it returns the partial root:
// unfinished elements of arrays are dropped, unfinished members of objects
// are kept with whatever they hold so far unless they hold nothing. A
// partial root with nothing completed is ErrNoJSON.
func DecodeStream(text string) (any, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}

	dec := json.NewDecoder(strings.NewReader(text[start:]))
	dec.UseNumber()

	var stack []*streamFrame
	for {
		tok, err := dec.Token()
		if err != nil {
			return partialRoot(stack, err)
		}

		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{':
				stack = append(stack, &streamFrame{object: map[string]any{}})
			case '[':
				stack = append(stack, &streamFrame{isArray: true})
			case '}', ']':
				done := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return done.value(), nil
				}
				stack[len(stack)-1].add(done.value())
			}
		default:
			if len(stack) == 0 {
				// The opener guarantees a container root; this is unreachable
				// for well-formed token streams.
				return nil, fmt.Errorf("%w: scalar at top level", ErrNoJSON)
			}
			top := stack[len(stack)-1]
			if !top.isArray && !top.haveKey {
				key, ok := t.(string)
				if !ok {
					return partialRoot(stack, fmt.Errorf("non-string object key %v", t))
				}
				top.key = key
				top.haveKey = true
				continue
			}
			top.add(t)
		}
	}
}

// partialRoot folds the open frames into the root value after the stream
// stopped early. Unfinished containers that hold nothing are dropped, and a
// root without a single completed member or element is not a value.
func partialRoot(stack []*streamFrame, cause error) (any, error) {
	if len(stack) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, cause)
	}
	for len(stack) > 1 {
		child := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent := stack[len(stack)-1]
		if parent.isArray || !parent.haveKey {
			continue
		}
		if child.empty() {
			parent.haveKey = false
			parent.key = ""
			continue
		}
		parent.add(child.value())
	}
	if stack[0].empty() {
		return nil, fmt.Errorf("%w: nothing completed before %v", ErrNoJSON, cause)
	}
	return stack[0].value(), nil
}
