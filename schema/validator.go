package eventschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed event_feed.schema.json
var eventFeedSchemaJSON string

const (
	schemaResource = "event_feed.schema.json"
	recordPointer  = schemaResource + "#/$defs/event"
)

// Feed is one collector's output document. Records are kept raw so each can be
// validated on its own.
type Feed struct {
	Source    string            `json:"source"`
	BaseURL   *string           `json:"base_url,omitempty"`
	Category  *string           `json:"category,omitempty"`
	ScrapedAt *string           `json:"scraped_at,omitempty"`
	Events    []json.RawMessage `json:"events"`
}

type Record struct {
	Title       string  `json:"title"`
	Artist      *string `json:"artist,omitempty"`
	Venue       string  `json:"venue"`
	Date        *string `json:"date,omitempty"`
	URL         string  `json:"url"`
	Category    *string `json:"category,omitempty"`
	Price       *string `json:"price,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	VideoURL    *string `json:"video_url,omitempty"`
}

var (
	compileOnce       sync.Once
	feedSchema        *jsonschema.Schema
	recordSchema      *jsonschema.Schema
	compiledSchemaErr error
)

// DecodeFeed validates the feed envelope. Individual records are checked by ValidateRecord.
func DecodeFeed(payload []byte) (*Feed, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode feed JSON: %w", err)
	}

	feedSch, _, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := feedSch.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var feed Feed
	if err := json.Unmarshal(bytes.TrimSpace(payload), &feed); err != nil {
		return nil, fmt.Errorf("unmarshal feed: %w", err)
	}
	if strings.TrimSpace(feed.Source) == "" {
		return nil, fmt.Errorf("source must not be empty")
	}
	if feed.BaseURL != nil {
		if err := validateAbsoluteURL("base_url", *feed.BaseURL); err != nil {
			return nil, err
		}
	}
	return &feed, nil
}

// ValidateRecord checks one event record against the schema and returns it decoded.
func ValidateRecord(payload json.RawMessage) (*Record, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode record JSON: %w", err)
	}

	_, recordSch, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := recordSch.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var record Record
	if err := json.Unmarshal(bytes.TrimSpace(payload), &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if strings.TrimSpace(record.Title) == "" {
		return nil, fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(record.URL) == "" {
		return nil, fmt.Errorf("url must not be empty")
	}
	return &record, nil
}

func loadSchemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(schemaResource, strings.NewReader(eventFeedSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		feed, err := compiler.Compile(schemaResource)
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile feed schema: %w", err)
			return
		}
		record, err := compiler.Compile(recordPointer)
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile record schema: %w", err)
			return
		}

		feedSchema = feed
		recordSchema = record
	})

	if compiledSchemaErr != nil {
		return nil, nil, compiledSchemaErr
	}
	if feedSchema == nil || recordSchema == nil {
		return nil, nil, fmt.Errorf("schema not initialized")
	}
	return feedSchema, recordSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateAbsoluteURL(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", fieldName)
	}
	return nil
}
