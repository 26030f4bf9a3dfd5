package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ItemType discriminates the FeedItem variants.
type ItemType string

const (
	TypeContent ItemType = "content"
	TypeAd      ItemType = "ad"
	TypeProduct ItemType = "product"
)

// Tracking carries the per-impression ids minted by the server at fetch time.
// Every analytics event for the item echoes them back.
type Tracking struct {
	EventToken string `json:"event_token"`
	TraceID    string `json:"trace_id"`
}

// FlexID is an identifier the backend sends either as a number or a string.
type FlexID string

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// Party is an author, advertiser or seller reference.
type Party struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}

// Media is one attachment of a content item.
type Media struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Tags is either a plain list of strings or an object with topics and a
// category. Both shapes occur in the wild, so the decoded shape is kept.
type Tags struct {
	List     []string
	Object   bool
	Topics   []string
	Category string
}

// IsZero reports whether no tags were present.
func (t Tags) IsZero() bool {
	return len(t.List) == 0 && !t.Object
}

// Flat returns every tag as display strings regardless of shape.
func (t Tags) Flat() []string {
	if !t.Object {
		return t.List
	}
	out := make([]string, 0, len(t.Topics)+1)
	if t.Category != "" {
		out = append(out, t.Category)
	}
	return append(out, t.Topics...)
}

// UnmarshalJSON accepts `["a","b"]`, `{"topics":[...],"category":"x"}` and null.
func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = Tags{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '[':
		return json.Unmarshal(data, &t.List)
	case '{':
		var obj struct {
			Topics   []string `json:"topics"`
			Category string   `json:"category"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		t.Object = true
		t.Topics = obj.Topics
		t.Category = obj.Category
		return nil
	default:
		return fmt.Errorf("tags: unexpected JSON %s", truncateBody(data))
	}
}

// MarshalJSON writes the tags back in the shape they were decoded from.
func (t Tags) MarshalJSON() ([]byte, error) {
	if t.Object {
		return json.Marshal(struct {
			Topics   []string `json:"topics,omitempty"`
			Category string   `json:"category,omitempty"`
		}{t.Topics, t.Category})
	}
	if t.List == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.List)
}

// ContentPayload is the presentation payload of a content item.
type ContentPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Author      *Party  `json:"author,omitempty"`
	CreatedAt   string  `json:"created_at"`
	Media       []Media `json:"media,omitempty"`
	Tags        Tags    `json:"tags,omitempty"`
}

// AdPayload is the presentation payload of an ad item.
type AdPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Advertiser  *Party `json:"advertiser,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	LandingURL  string `json:"landing_url"`
	CampaignID  FlexID `json:"campaign_id"`
}

// ProductPayload is the presentation payload of a product item.
type ProductPayload struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	Seller        *Party   `json:"seller,omitempty"`
	Tags          Tags     `json:"tags,omitempty"`
}

// FeedItem is one card of the feed. Only the payload matching Type is
// expected to be set; the client never mutates it.
type FeedItem struct {
	Type     ItemType        `json:"type"`
	ID       int64           `json:"id"`
	Score    float64         `json:"score"`
	Position int             `json:"position"`
	Reason   string          `json:"reason,omitempty"`
	Tracking Tracking        `json:"tracking"`
	Content  *ContentPayload `json:"content,omitempty"`
	Ad       *AdPayload      `json:"ad,omitempty"`
	Product  *ProductPayload `json:"product,omitempty"`
}

// IsAd reports whether the item is an ad.
func (f FeedItem) IsAd() bool { return f.Type == TypeAd }

// Title returns the display title with a fallback per variant.
func (f FeedItem) Title() string {
	switch f.Type {
	case TypeContent:
		if f.Content != nil && f.Content.Title != "" {
			return f.Content.Title
		}
		return "Untitled"
	case TypeAd:
		if f.Ad != nil && f.Ad.Title != "" {
			return f.Ad.Title
		}
		return "Sponsored"
	case TypeProduct:
		if f.Product != nil && f.Product.Title != "" {
			return f.Product.Title
		}
		return "Product"
	}
	return "Unknown item"
}

// Body returns the description text, or "" when there is none.
func (f FeedItem) Body() string {
	switch {
	case f.Type == TypeContent && f.Content != nil:
		return f.Content.Description
	case f.Type == TypeAd && f.Ad != nil:
		return f.Ad.Description
	case f.Type == TypeProduct && f.Product != nil:
		return f.Product.Description
	}
	return ""
}

// Meta returns the secondary line: author or date for content, advertiser
// for ads, price for products.
func (f FeedItem) Meta() string {
	switch f.Type {
	case TypeContent:
		if f.Content == nil {
			return ""
		}
		if f.Content.CreatedAt != "" {
			if i := strings.IndexByte(f.Content.CreatedAt, 'T'); i > 0 {
				return f.Content.CreatedAt[:i]
			}
			return f.Content.CreatedAt
		}
		if f.Content.Author != nil && f.Content.Author.Name != "" {
			return f.Content.Author.Name
		}
		return "Unknown author"
	case TypeAd:
		if f.Ad != nil && f.Ad.Advertiser != nil && f.Ad.Advertiser.Name != "" {
			return f.Ad.Advertiser.Name
		}
		return "Sponsored"
	case TypeProduct:
		if f.Product == nil {
			return ""
		}
		return fmt.Sprintf("¥%.2f", f.Product.Price)
	}
	return ""
}

// Image returns the first image URL of the item, or "".
func (f FeedItem) Image() string {
	switch {
	case f.Type == TypeContent && f.Content != nil && len(f.Content.Media) > 0:
		if f.Content.Media[0].Thumbnail != "" {
			return f.Content.Media[0].Thumbnail
		}
		return f.Content.Media[0].URL
	case f.Type == TypeAd && f.Ad != nil:
		return f.Ad.ImageURL
	case f.Type == TypeProduct && f.Product != nil:
		return f.Product.ImageURL
	}
	return ""
}

// Tags returns the item's tags, if its variant carries any.
func (f FeedItem) Tags() Tags {
	switch {
	case f.Type == TypeContent && f.Content != nil:
		return f.Content.Tags
	case f.Type == TypeProduct && f.Product != nil:
		return f.Product.Tags
	}
	return Tags{}
}

// FeedPage is one page of GET /posts. An empty Cursor means null.
type FeedPage struct {
	ServerTime string     `json:"server_time"`
	Cursor     string     `json:"cursor"`
	Items      []FeedItem `json:"items"`
}

// UnmarshalJSON tolerates a null cursor and a null items array.
func (p *FeedPage) UnmarshalJSON(data []byte) error {
	var raw struct {
		ServerTime string     `json:"server_time"`
		Cursor     *string    `json:"cursor"`
		Items      []FeedItem `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ServerTime = raw.ServerTime
	p.Cursor = ""
	if raw.Cursor != nil {
		p.Cursor = *raw.Cursor
	}
	p.Items = raw.Items
	return nil
}

// ItemMedia is the media object of a raw backend item. Galleries carry URLs,
// single media carry URL.
type ItemMedia struct {
	Type      string   `json:"type"`
	URLs      []string `json:"urls,omitempty"`
	URL       string   `json:"url,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}

// ItemAuthor is the author block embedded in a raw backend item.
type ItemAuthor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Item is a raw backend item as returned by GET /items/{id}.
type Item struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Tags      Tags        `json:"tags"`
	AuthorID  int64       `json:"author_id"`
	Media     *ItemMedia  `json:"media,omitempty"`
	Kind      ItemType    `json:"kind"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
	Author    *ItemAuthor `json:"author,omitempty"`
}

// ToFeedItem converts a raw item into a FeedItem for display. Items fetched
// outside the feed get synthetic tracking ids.
func (it Item) ToFeedItem() FeedItem {
	var media []Media
	if it.Media != nil {
		if it.Media.Type == "gallery" && len(it.Media.URLs) > 0 {
			for _, u := range it.Media.URLs {
				media = append(media, Media{Type: "image", URL: u})
			}
		} else if it.Media.URL != "" {
			media = []Media{{Type: it.Media.Type, URL: it.Media.URL, Thumbnail: it.Media.Thumbnail}}
		}
	}

	authorName := func(fallback string) string {
		if it.Author != nil && it.Author.Username != "" {
			return it.Author.Username
		}
		return fallback
	}
	author := FlexID(fmt.Sprint(it.AuthorID))

	fi := FeedItem{
		Type:  it.Kind,
		ID:    it.ID,
		Score: 1.0,
		Tracking: Tracking{
			EventToken: fmt.Sprintf("token_%d", it.ID),
			TraceID:    fmt.Sprintf("trace_%d", it.ID),
		},
	}
	switch it.Kind {
	case TypeAd:
		ad := &AdPayload{
			Title:       it.Title,
			Description: it.Content,
			Advertiser:  &Party{ID: author, Name: authorName("Unknown advertiser")},
			LandingURL:  "#",
			CampaignID:  "0",
		}
		if it.Media != nil {
			ad.ImageURL = it.Media.URL
			if len(it.Media.URLs) > 0 {
				ad.LandingURL = it.Media.URLs[0]
			}
		}
		fi.Ad = ad
	case TypeProduct:
		p := &ProductPayload{
			Title:       it.Title,
			Description: it.Content,
			Seller:      &Party{ID: author, Name: authorName("Unknown seller")},
			Tags:        it.Tags,
		}
		if it.Media != nil {
			p.ImageURL = it.Media.URL
		}
		fi.Product = p
	default:
		fi.Type = TypeContent
		fi.Content = &ContentPayload{
			Title:       it.Title,
			Description: it.Content,
			Author:      &Party{ID: author, Name: authorName("Unknown author")},
			CreatedAt:   it.CreatedAt,
			Media:       media,
			Tags:        it.Tags,
		}
	}
	return fi
}

// EventType enumerates analytics events.
type EventType string

const (
	EventImpression   EventType = "impression"
	EventClick        EventType = "click"
	EventStay         EventType = "stay"
	EventGMV          EventType = "gmv"
	EventAdImpression EventType = "ad_impression"
	EventAdClick      EventType = "ad_click"
)

// EventRequest is the body of POST /events.
type EventRequest struct {
	ItemID     int64          `json:"item_id"`
	EventType  EventType      `json:"event_type"`
	Source     string         `json:"source,omitempty"`
	StaytimeMs int64          `json:"staytime_ms,omitempty"`
	GMVAmount  float64        `json:"gmv_amount,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
	EventToken string         `json:"event_token,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
}

// RelationType enumerates user-entity relations.
type RelationType string

const (
	RelationLike     RelationType = "like"
	RelationFavorite RelationType = "favorite"
	RelationFollow   RelationType = "follow"
	RelationBlock    RelationType = "block"
	RelationWishlist RelationType = "wishlist"
)

// RelationStatus is the desired state of a relation.
type RelationStatus string

const (
	StatusActive   RelationStatus = "active"
	StatusInactive RelationStatus = "inactive"
)

// StatusOf maps a boolean toggle to a relation status.
func StatusOf(active bool) RelationStatus {
	if active {
		return StatusActive
	}
	return StatusInactive
}

// RelationRequest is the body of POST /relations/upsert.
type RelationRequest struct {
	EntityType   string         `json:"entity_type"`
	EntityID     int64          `json:"entity_id"`
	RelationType RelationType   `json:"relation_type"`
	Status       RelationStatus `json:"status"`
}

// SearchResult is the data of GET /search.
type SearchResult struct {
	Items    []FeedItem `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}
