package api

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTagsBothShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		flat []string
		obj  bool
	}{
		{"list", `["go","tui"]`, []string{"go", "tui"}, false},
		{"object", `{"topics":["go"],"category":"tech"}`, []string{"tech", "go"}, true},
		{"null", `null`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tags Tags
			if err := json.Unmarshal([]byte(tt.in), &tags); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if tags.Object != tt.obj {
				t.Errorf("Object = %v, want %v", tags.Object, tt.obj)
			}
			if diff := cmp.Diff(tt.flat, tags.Flat()); diff != "" {
				t.Errorf("Flat() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTagsRejectScalar(t *testing.T) {
	var tags Tags
	if err := json.Unmarshal([]byte(`42`), &tags); err == nil {
		t.Error("expected error for scalar tags")
	}
}

func TestTagsKeepShapeOnMarshal(t *testing.T) {
	var tags Tags
	json.Unmarshal([]byte(`{"topics":["a"],"category":"b"}`), &tags)
	out, err := json.Marshal(tags)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"topics":["a"],"category":"b"}` {
		t.Errorf("object shape lost: %s", out)
	}
}

func TestFlexIDAcceptsNumberAndString(t *testing.T) {
	var p struct {
		A Party `json:"a"`
		B Party `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":{"id":7,"name":"x"},"b":{"id":"u-9","name":"y"}}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.A.ID != "7" || p.B.ID != "u-9" {
		t.Errorf("ids = %q, %q", p.A.ID, p.B.ID)
	}
}

func TestDisplayFallbacks(t *testing.T) {
	tests := []struct {
		item  FeedItem
		title string
		meta  string
	}{
		{FeedItem{Type: TypeContent}, "Untitled", ""},
		{FeedItem{Type: TypeContent, Content: &ContentPayload{Title: "T"}}, "T", "Unknown author"},
		{FeedItem{Type: TypeContent, Content: &ContentPayload{Title: "T", CreatedAt: "2024-05-01T10:00:00Z"}}, "T", "2024-05-01"},
		{FeedItem{Type: TypeAd}, "Sponsored", "Sponsored"},
		{FeedItem{Type: TypeAd, Ad: &AdPayload{Title: "Buy", Advertiser: &Party{Name: "ACME"}}}, "Buy", "ACME"},
		{FeedItem{Type: TypeProduct, Product: &ProductPayload{Title: "Mug", Price: 12.5}}, "Mug", "¥12.50"},
		{FeedItem{Type: "mystery"}, "Unknown item", ""},
	}

	for _, tt := range tests {
		if got := tt.item.Title(); got != tt.title {
			t.Errorf("Title() = %q, want %q", got, tt.title)
		}
		if got := tt.item.Meta(); got != tt.meta {
			t.Errorf("Meta() = %q, want %q", got, tt.meta)
		}
	}
}

func TestItemToFeedItemGallery(t *testing.T) {
	it := Item{
		ID:    5,
		Title: "Trip",
		Kind:  TypeContent,
		Media: &ItemMedia{Type: "gallery", URLs: []string{"a.jpg", "b.jpg"}},
	}

	fi := it.ToFeedItem()
	if fi.Type != TypeContent || fi.Content == nil {
		t.Fatalf("expected content item, got %+v", fi)
	}
	if len(fi.Content.Media) != 2 || fi.Content.Media[1].URL != "b.jpg" {
		t.Errorf("gallery not expanded: %+v", fi.Content.Media)
	}
	if fi.Content.Author.Name != "Unknown author" {
		t.Errorf("author fallback = %q", fi.Content.Author.Name)
	}
	if fi.Tracking.EventToken != "token_5" || fi.Tracking.TraceID != "trace_5" {
		t.Errorf("synthetic tracking = %+v", fi.Tracking)
	}
}

func TestItemToFeedItemAd(t *testing.T) {
	it := Item{
		ID:     8,
		Title:  "Shoes",
		Kind:   TypeAd,
		Author: &ItemAuthor{Username: "ACME"},
		Media:  &ItemMedia{Type: "image", URL: "ad.png", URLs: []string{"https://acme.test"}},
	}

	fi := it.ToFeedItem()
	if !fi.IsAd() || fi.Ad == nil {
		t.Fatalf("expected ad, got %+v", fi)
	}
	if fi.Ad.LandingURL != "https://acme.test" || fi.Ad.ImageURL != "ad.png" {
		t.Errorf("unexpected ad payload: %+v", fi.Ad)
	}
	if fi.Meta() != "ACME" {
		t.Errorf("Meta() = %q", fi.Meta())
	}
}
