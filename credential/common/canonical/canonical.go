// Package canonical produces the deterministic byte form of a credential
// document. The canonical form is the sole input to digest computation, so
// two structurally equal documents must serialize byte-identically no matter
// how their maps were populated.
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/slices"
)

// Document represents a JSON object document.
type Document = map[string]interface{}

// ErrMalformedDocument is returned when the input is not a JSON object at the
// top level.
var ErrMalformedDocument = errors.New("malformed document: top level must be a JSON object")

const (
	proofField        = "proof"
	metadataField     = "metadata"
	anchorDigestField = "anchorDigest"
)

// Canonicalize serializes a credential-shaped value into its canonical byte
// form: proof stripped, object keys sorted ascending by Unicode code point,
// array order preserved, no insignificant whitespace, null object fields
// omitted.
//
// The input may be a Document or any value that marshals to a JSON object
// (for example the typed vc.Credential); anything else fails with
// ErrMalformedDocument.
func Canonicalize(v interface{}) ([]byte, error) {
	doc, err := toDocument(v)
	if err != nil {
		return nil, err
	}

	delete(doc, proofField)

	// The anchored digest is derived from the canonical bytes, so the
	// metadata placeholder for it cannot itself be part of them: a stamped
	// and an unstamped copy of the same credential must hash identically.
	if meta, ok := doc[metadataField].(map[string]interface{}); ok {
		delete(meta, anchorDigestField)
	}

	var buf bytes.Buffer
	if err := appendValue(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toDocument round-trips the value through JSON so canonicalization sees the
// same shape regardless of the source Go type. Numbers are kept as
// json.Number to avoid premature float conversion.
func toDocument(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	doc, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, ErrMalformedDocument
	}
	return doc, nil
}

func appendValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return appendString(buf, val)
	case json.Number:
		return appendNumber(buf, val)
	case float64:
		return appendNumber(buf, floatToNumber(val))
	case map[string]interface{}:
		return appendObject(buf, val)
	case []interface{}:
		return appendArray(buf, val)
	default:
		return fmt.Errorf("%w: unsupported value of type %T", ErrMalformedDocument, v)
	}
	return nil
}

func appendObject(buf *bytes.Buffer, obj map[string]interface{}) error {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		// Absent and null fields must hash identically.
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := appendValue(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func appendArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, v := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// appendString writes the fixed JSON escaping of s without HTML escaping.
func appendString(buf *bytes.Buffer, s string) error {
	var sb bytes.Buffer
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	// Encode appends a newline.
	buf.Write(bytes.TrimRight(sb.Bytes(), "\n"))
	return nil
}

// appendNumber normalizes numeric formatting so that the same value hashes
// identically regardless of its source representation: integral values carry
// no fractional part ("10", never "10.0"), everything else uses the shortest
// round-trippable decimal form.
func appendNumber(buf *bytes.Buffer, n json.Number) error {
	raw := string(n)
	if !bytes.ContainsAny([]byte(raw), ".eE") {
		// Already a plain integer literal; large values keep full precision.
		buf.WriteString(raw)
		return nil
	}

	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("%w: invalid number %q", ErrMalformedDocument, raw)
	}
	buf.WriteString(formatFloat(f))
	return nil
}

func floatToNumber(f float64) json.Number {
	return json.Number(formatFloat(f))
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
