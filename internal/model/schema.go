package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
)

// FieldProblem describes one structural problem found in a raw document.
type FieldProblem struct {
	Path    string `json:"path"`
	Problem string `json:"problem"`
}

// SchemaError lists every structural problem of a raw document. It unwraps
// to app_errors.ErrValidation.
type SchemaError struct {
	Problems []FieldProblem `json:"problems"`
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: %s", p.Path, p.Problem)
	}
	return "schema check failed: " + strings.Join(parts, "; ")
}

func (e *SchemaError) Unwrap() error { return app_errors.ErrValidation }

// WithPrefix returns a copy whose paths are nested under prefix.
func (e *SchemaError) WithPrefix(prefix string) *SchemaError {
	out := &SchemaError{Problems: make([]FieldProblem, len(e.Problems))}
	for i, p := range e.Problems {
		path := prefix
		if p.Path != rootPath {
			path = joinPath(prefix, p.Path)
		}
		out.Problems[i] = FieldProblem{Path: path, Problem: p.Problem}
	}
	return out
}

// CheckMessageJSON verifies the presence and JSON kind of every Message field
// in data without decoding it.
func CheckMessageJSON(data []byte) error {
	return checkDocument(data, func(c *checker, v gjson.Result) { c.message("", v) })
}

// CheckSearchInfoJSON verifies the presence and JSON kind of every SearchInfo
// field in data without decoding it.
func CheckSearchInfoJSON(data []byte) error {
	return checkDocument(data, func(c *checker, v gjson.Result) { c.searchInfo("", v) })
}

// DecodeMessage schema-checks, decodes and validates a Message document.
func DecodeMessage(data []byte) (*Message, error) {
	if err := CheckMessageJSON(data); err != nil {
		return nil, err
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s", app_errors.ErrValidation, err.Error())
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeSearchInfo schema-checks, decodes and validates a SearchInfo document.
func DecodeSearchInfo(data []byte) (*SearchInfo, error) {
	if err := CheckSearchInfoJSON(data); err != nil {
		return nil, err
	}
	var s SearchInfo
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s", app_errors.ErrValidation, err.Error())
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

const rootPath = "$"

type kind struct {
	name  string
	match func(gjson.Result) bool
}

var (
	kindString = kind{"text", func(v gjson.Result) bool { return v.Type == gjson.String }}
	kindBool   = kind{"a boolean", func(v gjson.Result) bool { return v.Type == gjson.True || v.Type == gjson.False }}
	// kindInt accepts plain integer literals that fit an int64. 1.0 and 1e2
	// are not integers here.
	kindInt    = kind{"an integer", func(v gjson.Result) bool {
		if v.Type != gjson.Number {
			return false
		}
		_, err := strconv.ParseInt(v.Raw, 10, 64)
		return err == nil
	}}
)

type checker struct {
	problems []FieldProblem
}

func checkDocument(data []byte, check func(*checker, gjson.Result)) error {
	if !gjson.ValidBytes(data) {
		return &SchemaError{Problems: []FieldProblem{{Path: rootPath, Problem: "invalid JSON"}}}
	}
	c := &checker{}
	check(c, gjson.ParseBytes(data))
	if len(c.problems) == 0 {
		return nil
	}
	return &SchemaError{Problems: c.problems}
}

func (c *checker) add(path, problem string) {
	if path == "" {
		path = rootPath
	}
	c.problems = append(c.problems, FieldProblem{Path: path, Problem: problem})
}

func (c *checker) object(path string, v gjson.Result) bool {
	if !v.IsObject() {
		c.add(path, "must be an object")
		return false
	}
	return true
}

func (c *checker) required(path string, obj gjson.Result, key string, k kind) {
	v := obj.Get(key)
	p := joinPath(path, key)
	if !v.Exists() {
		c.add(p, "is required")
		return
	}
	if !k.match(v) {
		c.add(p, "must be "+k.name)
	}
}

func (c *checker) optional(path string, obj gjson.Result, key string, k kind) {
	v := obj.Get(key)
	if v.Exists() && !k.match(v) {
		c.add(joinPath(path, key), "must be "+k.name)
	}
}

func (c *checker) message(path string, v gjson.Result) {
	if !c.object(path, v) {
		return
	}
	c.required(path, v, "id", kindInt)
	c.required(path, v, "content", kindString)
	c.required(path, v, "isUser", kindBool)
	c.required(path, v, "type", kindString)
	c.optional(path, v, "isLoading", kindBool)
	if info := v.Get("searchInfo"); info.Exists() {
		c.searchInfo(joinPath(path, "searchInfo"), info)
	}
}

func (c *checker) searchInfo(path string, v gjson.Result) {
	if !c.object(path, v) {
		return
	}

	stagesPath := joinPath(path, "stages")
	if stages := v.Get("stages"); !stages.Exists() {
		c.add(stagesPath, "is required")
	} else if !stages.IsArray() {
		c.add(stagesPath, "must be an array")
	} else {
		for i, stage := range stages.Array() {
			if !kindString.match(stage) {
				c.add(joinPath(stagesPath, strconv.Itoa(i)), "must be text")
			}
		}
	}

	c.required(path, v, "query", kindString)

	urlsPath := joinPath(path, "urls")
	if urls := v.Get("urls"); !urls.Exists() {
		c.add(urlsPath, "is required")
	} else if !urls.IsArray() {
		c.add(urlsPath, "must be an array")
	} else {
		for i, entry := range urls.Array() {
			entryPath := joinPath(urlsPath, strconv.Itoa(i))
			switch {
			case kindString.match(entry):
			case entry.IsObject():
				c.searchResult(entryPath, entry)
			default:
				c.add(entryPath, "must be text or a search result object")
			}
		}
	}

	c.optional(path, v, "error", kindString)
}

func (c *checker) searchResult(path string, v gjson.Result) {
	c.optional(path, v, resultTitleKey, kindString)
	c.optional(path, v, resultURLKey, kindString)
}

func joinPath(prefix, key string) string {
	if prefix == "" || prefix == rootPath {
		return key
	}
	return prefix + "." + key
}
