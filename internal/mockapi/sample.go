package mockapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abelbrown/minifeed/internal/api"
)

var sampleTopics = [][]string{
	{"go", "terminals"},
	{"cooking"},
	{"travel", "photography"},
	{"music"},
	{"design", "typography"},
}

var sampleTitles = []string{
	"Writing a pager that never double-fetches",
	"Ten-minute tomato soup",
	"Night trains across the Alps",
	"Why the bassline carries the song",
	"Grid systems for small screens",
	"Reading cursors without guessing",
	"Sourdough on a schedule",
}

// SampleFeed builds n deterministic feed items. Every fifth item is an ad
// and every seventh a product; the rest are content. Ids start at 1001.
func SampleFeed(n int) []api.FeedItem {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	items := make([]api.FeedItem, 0, n)
	for i := 0; i < n; i++ {
		id := int64(1001 + i)
		tr := api.Tracking{
			EventToken: fmt.Sprintf("evt_%d", id),
			TraceID:    fmt.Sprintf("trace_%d", id),
		}
		it := api.FeedItem{ID: id, Score: 1 - float64(i)/float64(n+1), Tracking: tr}
		switch {
		case i%5 == 4:
			it.Type = api.TypeAd
			it.Reason = "sponsored"
			it.Ad = &api.AdPayload{
				Title:       fmt.Sprintf("Try Terminal Pro %d", i),
				Description: "A faster shell for people who live in one.",
				Advertiser:  &api.Party{ID: "ad-7", Name: "Acme Tools"},
				ImageURL:    fmt.Sprintf("https://img.example.com/ad/%d.png", id),
				LandingURL:  "https://acme.example.com",
				CampaignID:  api.FlexID(strconv.Itoa(100 + i)),
			}
		case i%7 == 6:
			it.Type = api.TypeProduct
			it.Reason = "popular near you"
			it.Product = &api.ProductPayload{
				Title:       fmt.Sprintf("Mechanical keyboard #%d", i),
				Description: "Hot-swappable, quiet switches.",
				Price:       float64(199 + i),
				ImageURL:    fmt.Sprintf("https://img.example.com/p/%d.png", id),
				Seller:      &api.Party{ID: "s-3", Name: "KeyShop"},
				Tags:        api.Tags{List: []string{"hardware"}},
			}
		default:
			it.Type = api.TypeContent
			it.Reason = "because you liked similar posts"
			topics := sampleTopics[i%len(sampleTopics)]
			tags := api.Tags{List: topics}
			if i%2 == 1 {
				tags = api.Tags{Object: true, Topics: topics, Category: "lifestyle"}
			}
			it.Content = &api.ContentPayload{
				Title:       sampleTitles[i%len(sampleTitles)],
				Description: fmt.Sprintf("## Part %d\n\nNotes from the field, with a short list:\n\n- first point\n- second point\n", i+1),
				Author:      &api.Party{ID: api.FlexID(strconv.Itoa(500 + i%3)), Name: fmt.Sprintf("author%d", i%3)},
				CreatedAt:   base.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
				Media:       []api.Media{{Type: "image", URL: fmt.Sprintf("https://img.example.com/c/%d.jpg", id)}},
				Tags:        tags,
			}
		}
		items = append(items, it)
	}
	return items
}

// rawItem is the /items/{id} view of a feed item.
func rawItem(f api.FeedItem) api.Item {
	it := api.Item{ID: f.ID, Kind: f.Type, Title: f.Title(), Content: f.Body(), Tags: f.Tags()}
	switch f.Type {
	case api.TypeContent:
		if f.Content != nil {
			it.CreatedAt = f.Content.CreatedAt
			it.UpdatedAt = f.Content.CreatedAt
			if f.Content.Author != nil {
				id, _ := strconv.ParseInt(string(f.Content.Author.ID), 10, 64)
				it.AuthorID = id
				it.Author = &api.ItemAuthor{ID: id, Username: f.Content.Author.Name}
			}
			if len(f.Content.Media) > 0 {
				it.Media = &api.ItemMedia{Type: f.Content.Media[0].Type, URL: f.Content.Media[0].URL}
			}
		}
	case api.TypeAd:
		if f.Ad != nil {
			it.Media = &api.ItemMedia{Type: "image", URL: f.Ad.ImageURL, URLs: []string{f.Ad.LandingURL}}
		}
	case api.TypeProduct:
		if f.Product != nil {
			it.Media = &api.ItemMedia{Type: "image", URL: f.Product.ImageURL}
		}
	}
	return it
}

// SampleMetrics is a small, plausible metrics data set.
func SampleMetrics() Metrics {
	days := []string{"2025-03-01", "2025-03-02", "2025-03-03"}
	m := Metrics{
		Overview: api.MetricsOverview{
			DAU:        api.GrowthValue{Value: 1250, Growth: 4.2, Trend: api.TrendUp},
			WAU:        api.PlainValue{Value: 6100},
			MAU:        api.PlainValue{Value: 20400},
			AdRevenue:  api.GrowthValue{Value: 812.5, Growth: -1.3, Trend: api.TrendDown},
			GMV:        api.GrowthValue{Value: 15320, Growth: 9.8, Trend: api.TrendUp},
			OverallCTR: api.PlainValue{Value: 3.4},
		},
		Distribution: []api.ContentDistribution{
			{Kind: "content", Count: 1400, Percentage: 70},
			{Kind: "ad", Count: 400, Percentage: 20},
			{Kind: "product", Count: 200, Percentage: 10},
		},
	}
	for i, d := range days {
		n := int64(i + 1)
		m.CTR = append(m.CTR,
			api.ContentTypeCTR{Day: d, Kind: "content", Impressions: 1000 * n, Clicks: 40 * n, CTR: 4},
			api.ContentTypeCTR{Day: d, Kind: "ad", Impressions: 300 * n, Clicks: 6 * n, CTR: 2},
		)
		m.DAU = append(m.DAU, api.DailyActiveUsers{Day: d, DAU: 1200 + 25*n})
		m.AdRevenue = append(m.AdRevenue, api.AdRevenue{Day: d, AdImpressions: 300 * n, AdClicks: 6 * n, AdCTR: 2, AdRevenue: 250 + 10*float64(n)})
		m.ProductRevenue = append(m.ProductRevenue, api.ProductRevenue{Day: d, ProductImpressions: 200 * n, ProductClicks: 10 * n, GMV: 5000 * float64(n), Conversions: 3 * n, ConversionRate: 1.5})
		m.Retention = append(m.Retention, api.UserRetention{CohortDay: d, CohortSize: 100, ActiveUsers: 60 - 5*n, RetentionRate: float64(60-5*n) / 100})
		m.ActiveUsers = append(m.ActiveUsers, api.ActiveUsers{Date: d, ActiveUsers: 1200 + 25*n})
		m.Staytime = append(m.Staytime, api.UserStaytime{Day: d, AvgStaytimeMs: 4200 + 100*float64(n), MaxStaytimeMs: 60000, MinStaytimeMs: 800})
		m.Interaction = append(m.Interaction, api.UserInteractionRate{Day: d, Impressions: 1300 * n, Interactions: 90 * n, InteractionRate: 6.9})
	}
	return m
}
