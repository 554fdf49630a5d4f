// Package engine contains the universal data core
// It maps arbitrary typed business objects onto the fixed six-table schema:
// polymorphic value storage, record building, rule validation, filter
// translation, and optimistic versioning.
package engine

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/aethra/hera/internal/models"
)

// EncodedValue is the output of the value codec: the single target column
// and the value coerced into the shape that column accepts.
type EncodedValue struct {
	Column  string
	Text    *string
	Number  *float64
	Boolean *bool
	Date    *time.Time
	JSON    json.RawMessage
	FileURL *string
}

// Date layouts accepted by the codec, tried in order.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// EncodeValue coerces a caller-supplied value into the typed column declared
// by fieldType. A nil raw value is rejected as a type mismatch: a field
// record always carries exactly one non-null value.
func EncodeValue(fieldType string, raw interface{}) (EncodedValue, error) {
	if raw == nil {
		return EncodedValue{}, apperr.NewTypeMismatchError(fieldType, raw)
	}

	switch fieldType {
	case models.FieldTypeText:
		s, err := coerceString(fieldType, raw)
		if err != nil {
			return EncodedValue{}, err
		}
		return EncodedValue{Column: models.ColumnValueText, Text: &s}, nil

	case models.FieldTypeNumber:
		n, err := coerceNumber(raw)
		if err != nil {
			return EncodedValue{}, err
		}
		return EncodedValue{Column: models.ColumnValueNumber, Number: &n}, nil

	case models.FieldTypeBoolean:
		b, err := coerceBoolean(raw)
		if err != nil {
			return EncodedValue{}, err
		}
		return EncodedValue{Column: models.ColumnValueBoolean, Boolean: &b}, nil

	case models.FieldTypeDate:
		t, err := coerceDate(raw)
		if err != nil {
			return EncodedValue{}, err
		}
		return EncodedValue{Column: models.ColumnValueDate, Date: &t}, nil

	case models.FieldTypeJSON:
		doc, err := coerceJSON(raw)
		if err != nil {
			return EncodedValue{}, err
		}
		return EncodedValue{Column: models.ColumnValueJSON, JSON: doc}, nil

	case models.FieldTypeFileURL:
		u, err := coerceFileURL(raw)
		if err != nil {
			return EncodedValue{}, err
		}
		return EncodedValue{Column: models.ColumnValueFileURL, FileURL: &u}, nil

	default:
		return EncodedValue{}, apperr.NewUnknownFieldTypeError(fieldType)
	}
}

// Apply writes the encoded value onto a dynamic field record, clearing every
// other value column first so the polymorphic-exclusivity invariant holds.
func (v EncodedValue) Apply(f *models.DynamicField) {
	f.ClearValues()
	switch v.Column {
	case models.ColumnValueText:
		f.FieldValueText = v.Text
	case models.ColumnValueNumber:
		f.FieldValueNumber = v.Number
	case models.ColumnValueBoolean:
		f.FieldValueBoolean = v.Boolean
	case models.ColumnValueDate:
		f.FieldValueDate = v.Date
	case models.ColumnValueJSON:
		f.FieldValueJSON = []byte(v.JSON)
	case models.ColumnValueFileURL:
		f.FieldValueFileURL = v.FileURL
	}
}

// DecodeValue reads the stored value back out of its typed column.
// Returns nil when no column is populated.
func DecodeValue(f *models.DynamicField) interface{} {
	switch {
	case f.FieldValueText != nil:
		return *f.FieldValueText
	case f.FieldValueNumber != nil:
		return *f.FieldValueNumber
	case f.FieldValueBoolean != nil:
		return *f.FieldValueBoolean
	case f.FieldValueDate != nil:
		return *f.FieldValueDate
	case f.FieldValueJSON != nil:
		var doc interface{}
		if err := json.Unmarshal(f.FieldValueJSON, &doc); err != nil {
			return nil
		}
		return doc
	case f.FieldValueFileURL != nil:
		return *f.FieldValueFileURL
	default:
		return nil
	}
}

// KnownFieldType reports whether fieldType is one of the six declared types.
func KnownFieldType(fieldType string) bool {
	switch fieldType {
	case models.FieldTypeText, models.FieldTypeNumber, models.FieldTypeBoolean,
		models.FieldTypeDate, models.FieldTypeJSON, models.FieldTypeFileURL:
		return true
	}
	return false
}

func coerceString(fieldType string, raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", apperr.NewTypeMismatchError(fieldType, raw)
	}
}

func coerceNumber(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, apperr.NewTypeMismatchError(models.FieldTypeNumber, raw)
		}
		return n, nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, apperr.NewTypeMismatchError(models.FieldTypeNumber, raw)
		}
		return n, nil
	default:
		return 0, apperr.NewTypeMismatchError(models.FieldTypeNumber, raw)
	}
}

func coerceBoolean(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	}
	return false, apperr.NewTypeMismatchError(models.FieldTypeBoolean, raw)
}

func coerceDate(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, apperr.NewTypeMismatchError(models.FieldTypeDate, raw)
}

func coerceJSON(raw interface{}) (json.RawMessage, error) {
	switch v := raw.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, apperr.NewTypeMismatchError(models.FieldTypeJSON, raw)
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, apperr.NewTypeMismatchError(models.FieldTypeJSON, raw)
		}
		return json.RawMessage(v), nil
	case string:
		if !json.Valid([]byte(v)) {
			return nil, apperr.NewTypeMismatchError(models.FieldTypeJSON, raw)
		}
		return json.RawMessage(v), nil
	default:
		doc, err := json.Marshal(raw)
		if err != nil {
			return nil, apperr.NewTypeMismatchError(models.FieldTypeJSON, raw)
		}
		return doc, nil
	}
}

func coerceFileURL(raw interface{}) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", apperr.NewTypeMismatchError(models.FieldTypeFileURL, raw)
	}
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", apperr.NewTypeMismatchError(models.FieldTypeFileURL, raw)
	}
	return s, nil
}
