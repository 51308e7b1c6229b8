package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// Report fields by their JSON names so errors read "user.color", not "User.Color".
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeEvents checks a raw event list before anything touches the store.
// Checks run in order (presence, array shape, then each element front to
// back) and the first failure is returned.
func decodeEvents(payload json.RawMessage) ([]Event, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || isFalsy(trimmed) {
		return nil, ErrMissingPayload
	}
	if trimmed[0] != '[' {
		return nil, ErrInvalidShape
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	events := make([]Event, 0, len(elements))
	for i, raw := range elements {
		event, err := decodeElement(i, raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func decodeElement(index int, raw json.RawMessage) (Event, error) {
	fields, ok := object(raw)
	if !ok {
		return Event{}, &ValidationError{Index: index, Field: "event", Reason: "must be an object"}
	}

	date, ok := stringField(fields, "date")
	if !ok || date == "" {
		return Event{}, &ValidationError{Index: index, Field: "date", Reason: "must be a non-empty string"}
	}

	user, ok := object(fields["user"])
	if !ok {
		return Event{}, &ValidationError{Index: index, Field: "user", Reason: "must be an object"}
	}
	name, ok := stringField(user, "name")
	if !ok || name == "" {
		return Event{}, &ValidationError{Index: index, Field: "user.name", Reason: "must be a non-empty string"}
	}
	color, ok := stringField(user, "color")
	if !ok || color == "" {
		return Event{}, &ValidationError{Index: index, Field: "user.color", Reason: "must be a non-empty string"}
	}

	var at string
	if rawTime, present := fields["time"]; present && !isNull(rawTime) {
		if at, ok = stringField(fields, "time"); !ok {
			return Event{}, &ValidationError{Index: index, Field: "time", Reason: "must be a string"}
		}
	}

	event := Event{Date: date, User: User{Name: name, Color: color}, Time: at}
	if err := validate.Struct(event); err != nil {
		return Event{}, contentError(index, err)
	}
	return event, nil
}

func contentError(index int, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Index: index, Field: "event", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	var reason string
	switch fe.Tag() {
	case "notblank":
		reason = "must not be blank"
	case "datetime":
		reason = fmt.Sprintf("must match layout %s", fe.Param())
	case "max":
		reason = fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		reason = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return &ValidationError{Index: index, Field: field, Reason: reason}
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// isFalsy reports whether raw is null, false, zero or the empty string.
func isFalsy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case float64:
		return v == 0
	case string:
		return v == ""
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
