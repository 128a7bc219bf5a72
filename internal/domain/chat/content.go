package chat

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type ContentKind string

const (
	ContentText ContentKind = "text"
	ContentJSON ContentKind = "json"
)

// Content is either free text or a structured JSON document. Both are stored
// in a single JSON column: text as a JSON string, structured content as-is.
type Content struct {
	Kind ContentKind
	Text string
	JSON json.RawMessage
}

func TextContent(s string) Content {
	return Content{Kind: ContentText, Text: s}
}

// JSONContent wraps a structured payload. A raw JSON string is still treated
// as text so that reading it back is lossless.
func JSONContent(raw json.RawMessage) (Content, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return Content{}, errors.New("content: invalid json")
	}
	return decodeContent(trimmed)
}

// String returns the text, or the JSON document for structured content.
func (c Content) String() string {
	if c.Kind == ContentJSON {
		return string(c.JSON)
	}
	return c.Text
}

func (c Content) IsZero() bool {
	return c.Kind == "" && c.Text == "" && len(c.JSON) == 0
}

func (c Content) encode() ([]byte, error) {
	switch c.Kind {
	case ContentJSON:
		if len(c.JSON) == 0 || !json.Valid(c.JSON) {
			return nil, errors.New("content: invalid json")
		}
		return append([]byte(nil), c.JSON...), nil
	case ContentText, "":
		return json.Marshal(c.Text)
	default:
		return nil, fmt.Errorf("content: unknown kind %q", c.Kind)
	}
}

func decodeContent(raw []byte) (Content, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Content{}, err
		}
		return TextContent(s), nil
	}
	if !json.Valid(raw) {
		return Content{}, errors.New("content: invalid json")
	}
	return Content{Kind: ContentJSON, JSON: append(json.RawMessage(nil), raw...)}, nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	return c.encode()
}

func (c *Content) UnmarshalJSON(b []byte) error {
	out, err := decodeContent(b)
	if err != nil {
		return err
	}
	*c = out
	return nil
}

func (c Content) Value() (driver.Value, error) {
	b, err := c.encode()
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b).Value()
}

func (c *Content) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*c = Content{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case int64:
		raw = []byte(strconv.FormatInt(v, 10))
	case float64:
		raw = []byte(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		return fmt.Errorf("content: unsupported scan type %T", value)
	}
	out, err := decodeContent(raw)
	if err != nil {
		return err
	}
	*c = out
	return nil
}

func (Content) GormDataType() string {
	return "json"
}

func (Content) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return datatypes.JSON{}.GormDBDataType(db, field)
}
