package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Wire field names
const (
	fieldTitle            = "title"
	fieldContent          = "content"
	fieldTimestamp        = "timestamp"
	fieldOwner            = "owner"
	fieldEra              = "era"
	fieldStatus           = "status"
	fieldThemes           = "themes"
	fieldCharacterNetwork = "characterNetwork"
)

// DecodeError reports a payload that could not be turned into a Script.
type DecodeError struct {
	ID     string
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode " + Key(e.ID)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is, or wraps, a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Encode serializes s as canonical JSON: every field present, keys sorted,
// themes never null. The id is not written; it lives in the key.
func Encode(s Script) ([]byte, error) {
	fields := make(map[string]any, 8+len(s.extra))
	for k, v := range s.extra {
		fields[k] = json.RawMessage(v)
	}

	status := s.Status
	if status == "" {
		status = StatusPending
	}
	themes := s.Themes
	if themes == nil {
		themes = []string{}
	}

	fields[fieldTitle] = s.Title
	fields[fieldContent] = s.Content
	fields[fieldTimestamp] = s.CreatedAt
	fields[fieldOwner] = s.Owner
	fields[fieldEra] = s.Era
	fields[fieldStatus] = status
	fields[fieldThemes] = themes
	fields[fieldCharacterNetwork] = s.CharacterNetwork

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", Key(s.ID), err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses the payload stored under Key(id). It either returns a
// fully populated Script or a *DecodeError. Missing owner, status, themes
// and characterNetwork take their defaults. A missing title or era, an
// unknown status, or a payload that is not an object is an error.
func Decode(id string, data []byte) (Script, error) {
	fail := func(field, reason string, err error) (Script, error) {
		return Script{}, &DecodeError{ID: id, Field: field, Reason: reason, Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return fail("", "empty payload", nil)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fail("", "payload is not a JSON object", err)
	}
	if raw == nil {
		return fail("", "payload is not a JSON object", nil)
	}

	s := Script{ID: id, Status: StatusPending, Themes: []string{}}
	var err error

	if s.Title, err = stringField(raw, fieldTitle); err != nil {
		return fail(fieldTitle, "not a string", err)
	}
	if s.Title == "" {
		return fail(fieldTitle, "missing", nil)
	}
	if s.Era, err = stringField(raw, fieldEra); err != nil {
		return fail(fieldEra, "not a string", err)
	}
	if s.Era == "" {
		return fail(fieldEra, "missing", nil)
	}
	if s.Content, err = stringField(raw, fieldContent); err != nil {
		return fail(fieldContent, "not a string", err)
	}
	if s.Owner, err = stringField(raw, fieldOwner); err != nil {
		return fail(fieldOwner, "not a string", err)
	}
	if s.CharacterNetwork, err = stringField(raw, fieldCharacterNetwork); err != nil {
		return fail(fieldCharacterNetwork, "not a string", err)
	}

	status, err := stringField(raw, fieldStatus)
	if err != nil {
		return fail(fieldStatus, "not a string", err)
	}
	if status != "" {
		s.Status = Status(status)
		if !s.Status.Valid() {
			return fail(fieldStatus, fmt.Sprintf("unknown status %q", status), nil)
		}
	}

	if v, ok := raw[fieldThemes]; ok && !isNull(v) {
		var themes []string
		if err := json.Unmarshal(v, &themes); err != nil {
			return fail(fieldThemes, "not an array of strings", err)
		}
		if themes != nil {
			s.Themes = themes
		}
	}

	if v, ok := raw[fieldTimestamp]; ok && !isNull(v) {
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fail(fieldTimestamp, "not a number", err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
			return fail(fieldTimestamp, fmt.Sprintf("%g is out of range", f), nil)
		}
		s.CreatedAt = int64(math.Floor(f))
	}

	for k, v := range raw {
		if isKnownField(k) {
			continue
		}
		if s.extra == nil {
			s.extra = make(map[string][]byte)
		}
		s.extra[k] = append([]byte(nil), v...)
	}
	return s, nil
}

func stringField(raw map[string]json.RawMessage, name string) (string, error) {
	v, ok := raw[name]
	if !ok || isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", err
	}
	return s, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func isKnownField(name string) bool {
	switch name {
	case fieldTitle, fieldContent, fieldTimestamp, fieldOwner, fieldEra,
		fieldStatus, fieldThemes, fieldCharacterNetwork:
		return true
	}
	return false
}
