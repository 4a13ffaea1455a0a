package eventschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeFeed_Valid(t *testing.T) {
	payload := []byte(`{
		"source":"iabilet",
		"base_url":"https://www.iabilet.ro",
		"category":"music",
		"scraped_at":"2026-10-15T06:00:00Z",
		"events":[{"title":"Subcarpati","venue":"Control","url":"/x"}]
	}`)

	feed, err := DecodeFeed(payload)
	if err != nil {
		t.Fatalf("expected feed to be valid, got error: %v", err)
	}
	if feed.Source != "iabilet" {
		t.Fatalf("expected source=iabilet, got %q", feed.Source)
	}
	if len(feed.Events) != 1 {
		t.Fatalf("expected 1 raw event, got %d", len(feed.Events))
	}
}

func TestDecodeFeed_RejectsUnknownCategory(t *testing.T) {
	payload := []byte(`{"source":"iabilet","category":"sports","events":[]}`)

	_, err := DecodeFeed(payload)
	if err == nil {
		t.Fatalf("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema validation failure, got: %v", err)
	}
}

func TestDecodeFeed_RejectsRelativeBaseURL(t *testing.T) {
	payload := []byte(`{"source":"iabilet","base_url":"/relative","events":[]}`)

	if _, err := DecodeFeed(payload); err == nil {
		t.Fatalf("expected base_url error")
	}
}

func TestDecodeFeed_RejectsTrailingContent(t *testing.T) {
	payload := []byte(`{"source":"iabilet","events":[]} {}`)

	_, err := DecodeFeed(payload)
	if err == nil || !strings.Contains(err.Error(), "trailing content") {
		t.Fatalf("expected trailing content error, got: %v", err)
	}
}

func TestValidateRecord_Valid(t *testing.T) {
	record, err := ValidateRecord(json.RawMessage(`{
		"title":"Hamlet",
		"artist":null,
		"venue":"TNB",
		"date":"TBA",
		"url":"https://www.tnb.ro/hamlet",
		"category":"theatre",
		"price":"60 lei"
	}`))
	if err != nil {
		t.Fatalf("expected record to be valid, got error: %v", err)
	}
	if record.Artist != nil {
		t.Fatalf("expected nil artist")
	}
	if record.Date == nil || *record.Date != "TBA" {
		t.Fatalf("unparsed dates must be carried through as strings")
	}
}

func TestValidateRecord_RequiresTitle(t *testing.T) {
	cases := []string{
		`{"venue":"TNB","url":"https://x.test"}`,
		`{"title":"","venue":"TNB","url":"https://x.test"}`,
		`{"title":"   ","venue":"TNB","url":"https://x.test"}`,
		`{"title":"Hamlet","venue":"TNB","url":"https://x.test","rating":5}`,
	}
	for _, raw := range cases {
		if _, err := ValidateRecord(json.RawMessage(raw)); err == nil {
			t.Fatalf("expected invalid record: %s", raw)
		}
	}
}
