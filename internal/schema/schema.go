// Package schema validates boundary payloads against JSON Schema contracts before they are
// decoded into typed values.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseURL prefixes every schema resource name so cross-document $ref values resolve locally.
const BaseURL = "https://stravasync.local/schemas/"

// ErrValidation is matched by every *ValidationFailure.
var ErrValidation = errors.New("payload failed validation")

var printer = message.NewPrinter(language.English)

// Document is a named JSON Schema source.
type Document struct {
	Name   string
	Source string
}

// URL returns the absolute resource location of the document.
func (d Document) URL() string {
	return BaseURL + d.Name
}

// Schema is a compiled contract.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Name identifies the contract in logs and failures.
func (s *Schema) Name() string {
	return s.name
}

// Compile compiles doc; refs are additional documents doc may reference.
func Compile(doc Document, refs ...Document) (*Schema, error) {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	c.AssertFormat()

	for _, d := range append([]Document{doc}, refs...) {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(d.Source))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", d.Name, err)
		}
		if err := c.AddResource(d.URL(), parsed); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", d.Name, err)
		}
	}

	compiled, err := c.Compile(doc.URL())
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", doc.Name, err)
	}
	return &Schema{name: doc.Name, compiled: compiled}, nil
}

// MustCompile is Compile for package-level contracts known to be valid.
func MustCompile(doc Document, refs ...Document) *Schema {
	s, err := Compile(doc, refs...)
	if err != nil {
		panic(err)
	}
	return s
}

// FieldError describes a single violation. Field is a JSON pointer into the payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationFailure enumerates every field that violated a contract.
// Malformed is set when the payload was not JSON at all.
type ValidationFailure struct {
	Schema    string
	Fields    []FieldError
	Malformed bool
}

func (f *ValidationFailure) Error() string {
	parts := make([]string, 0, len(f.Fields))
	for _, fe := range f.Fields {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%s: %s", f.Schema, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (f *ValidationFailure) Unwrap() error {
	return ErrValidation
}

// Decode parses raw, validates it and decodes it into out. Every failure, including malformed
// JSON, is reported as a *ValidationFailure.
func (s *Schema) Decode(raw []byte, out any) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		failure := s.failure("", "body is not valid JSON")
		failure.Malformed = true
		return failure
	}
	if err := s.Validate(instance); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return s.failure("", err.Error())
	}
	return nil
}

// Validate checks an already parsed instance (as produced by jsonschema.UnmarshalJSON).
func (s *Schema) Validate(instance any) error {
	err := s.compiled.Validate(instance)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return s.failure("", err.Error())
	}

	failure := &ValidationFailure{Schema: s.name}
	collect(ve, &failure.Fields)
	sort.SliceStable(failure.Fields, func(i, j int) bool {
		return failure.Fields[i].Field < failure.Fields[j].Field
	})
	return failure
}

func (s *Schema) failure(field, msg string) *ValidationFailure {
	return &ValidationFailure{Schema: s.name, Fields: []FieldError{{Field: pointer(nil, field), Message: msg}}}
}

func collect(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, FieldError{
			Field:   pointer(ve.InstanceLocation, ""),
			Message: ve.ErrorKind.LocalizedString(printer),
		})
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, out)
	}
}

func pointer(location []string, fallback string) string {
	if len(location) == 0 {
		if fallback != "" {
			return fallback
		}
		return "/"
	}
	return "/" + strings.Join(location, "/")
}
