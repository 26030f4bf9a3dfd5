package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Trend is the direction of a growth figure.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// GrowthValue is a headline number with its period-over-period growth.
type GrowthValue struct {
	Value  float64 `json:"value"`
	Growth float64 `json:"growth"`
	Trend  Trend   `json:"trend"`
}

// PlainValue is a headline number without growth.
type PlainValue struct {
	Value float64 `json:"value"`
}

// MetricsOverview is the data of GET /metrics/overview.
type MetricsOverview struct {
	DAU        GrowthValue `json:"dau"`
	WAU        PlainValue  `json:"wau"`
	MAU        PlainValue  `json:"mau"`
	AdRevenue  GrowthValue `json:"ad_revenue"`
	GMV        GrowthValue `json:"gmv"`
	OverallCTR PlainValue  `json:"overall_ctr"`
}

// ContentTypeCTR is one row of GET /metrics/ctr.
type ContentTypeCTR struct {
	Day         string  `json:"day"`
	Kind        string  `json:"kind"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// AdRevenue is one row of GET /metrics/ad-revenue.
type AdRevenue struct {
	Day           string  `json:"day"`
	AdImpressions int64   `json:"ad_impressions"`
	AdClicks      int64   `json:"ad_clicks"`
	AdCTR         float64 `json:"ad_ctr"`
	AdRevenue     float64 `json:"ad_revenue"`
}

// ProductRevenue is one row of GET /metrics/product-revenue.
type ProductRevenue struct {
	Day                string  `json:"day"`
	ProductImpressions int64   `json:"product_impressions"`
	ProductClicks      int64   `json:"product_clicks"`
	GMV                float64 `json:"gmv"`
	Conversions        int64   `json:"conversions"`
	ConversionRate     float64 `json:"conversion_rate"`
}

// UserRetention is one cohort row of GET /metrics/retention.
type UserRetention struct {
	CohortDay     string  `json:"cohort_day"`
	CohortSize    int64   `json:"cohort_size"`
	ActiveUsers   int64   `json:"active_users"`
	RetentionRate float64 `json:"retention_rate"`
}

// ActiveUsers is one row of GET /metrics/active-users.
type ActiveUsers struct {
	Date        string `json:"date"`
	ActiveUsers int64  `json:"active_users"`
}

// DailyActiveUsers is one row of GET /metrics/dau.
type DailyActiveUsers struct {
	Day string `json:"day"`
	DAU int64  `json:"dau"`
}

// UserStaytime is one row of GET /metrics/staytime.
type UserStaytime struct {
	Day           string  `json:"day"`
	AvgStaytimeMs float64 `json:"avg_staytime_ms"`
	MaxStaytimeMs int64   `json:"max_staytime_ms"`
	MinStaytimeMs int64   `json:"min_staytime_ms"`
}

// UserInteractionRate is one row of GET /metrics/interaction.
type UserInteractionRate struct {
	Day             string  `json:"day"`
	Impressions     int64   `json:"impressions"`
	Interactions    int64   `json:"interactions"`
	InteractionRate float64 `json:"interaction_rate"`
}

// ContentDistribution is one row of GET /metrics/distribution.
type ContentDistribution struct {
	Kind       string  `json:"kind"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DateRange bounds metric queries. Empty fields are omitted.
type DateRange struct {
	Start string // YYYY-MM-DD
	End   string
}

func (r DateRange) values() url.Values {
	v := url.Values{}
	if r.Start != "" {
		v.Set("start_date", r.Start)
	}
	if r.End != "" {
		v.Set("end_date", r.End)
	}
	return v
}

// ActivePeriod is the bucket size of MetricsActiveUsers.
type ActivePeriod string

const (
	PeriodDay   ActivePeriod = "day"
	PeriodWeek  ActivePeriod = "week"
	PeriodMonth ActivePeriod = "month"
)

// MetricsOverview fetches the dashboard headline numbers.
func (c *Client) MetricsOverview(ctx context.Context) (*MetricsOverview, error) {
	var out MetricsOverview
	if err := c.do(ctx, http.MethodGet, "/metrics/overview", nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MetricsCTR fetches click-through rates per content kind. kind may be empty.
func (c *Client) MetricsCTR(ctx context.Context, r DateRange, kind string) ([]ContentTypeCTR, error) {
	q := r.values()
	if kind != "" {
		q.Set("kind", kind)
	}
	var out []ContentTypeCTR
	err := c.do(ctx, http.MethodGet, "/metrics/ctr", q, nil, nil, &out)
	return out, err
}

// MetricsDAU fetches daily active users.
func (c *Client) MetricsDAU(ctx context.Context, r DateRange) ([]DailyActiveUsers, error) {
	var out []DailyActiveUsers
	err := c.do(ctx, http.MethodGet, "/metrics/dau", r.values(), nil, nil, &out)
	return out, err
}

// MetricsAdRevenue fetches ad revenue per day.
func (c *Client) MetricsAdRevenue(ctx context.Context, r DateRange) ([]AdRevenue, error) {
	var out []AdRevenue
	err := c.do(ctx, http.MethodGet, "/metrics/ad-revenue", r.values(), nil, nil, &out)
	return out, err
}

// MetricsProductRevenue fetches product revenue per day.
func (c *Client) MetricsProductRevenue(ctx context.Context, r DateRange) ([]ProductRevenue, error) {
	var out []ProductRevenue
	err := c.do(ctx, http.MethodGet, "/metrics/product-revenue", r.values(), nil, nil, &out)
	return out, err
}

// MetricsRetention fetches cohort retention. Zero arguments use the server
// defaults of the original client (1 day, 30 cohorts).
func (c *Client) MetricsRetention(ctx context.Context, daysSince, limit int) ([]UserRetention, error) {
	if daysSince <= 0 {
		daysSince = 1
	}
	if limit <= 0 {
		limit = 30
	}
	q := url.Values{}
	q.Set("days_since", strconv.Itoa(daysSince))
	q.Set("limit", strconv.Itoa(limit))
	var out []UserRetention
	err := c.do(ctx, http.MethodGet, "/metrics/retention", q, nil, nil, &out)
	return out, err
}

// MetricsActiveUsers fetches active users bucketed by period.
func (c *Client) MetricsActiveUsers(ctx context.Context, period ActivePeriod, r DateRange) ([]ActiveUsers, error) {
	if period == "" {
		period = PeriodDay
	}
	q := r.values()
	q.Set("period", string(period))
	var out []ActiveUsers
	err := c.do(ctx, http.MethodGet, "/metrics/active-users", q, nil, nil, &out)
	return out, err
}

// MetricsStaytime fetches stay-time aggregates per day.
func (c *Client) MetricsStaytime(ctx context.Context, r DateRange) ([]UserStaytime, error) {
	var out []UserStaytime
	err := c.do(ctx, http.MethodGet, "/metrics/staytime", r.values(), nil, nil, &out)
	return out, err
}

// MetricsInteraction fetches interaction rates per day.
func (c *Client) MetricsInteraction(ctx context.Context, r DateRange) ([]UserInteractionRate, error) {
	var out []UserInteractionRate
	err := c.do(ctx, http.MethodGet, "/metrics/interaction", r.values(), nil, nil, &out)
	return out, err
}

// MetricsDistribution fetches the content-kind distribution.
func (c *Client) MetricsDistribution(ctx context.Context) ([]ContentDistribution, error) {
	var out []ContentDistribution
	err := c.do(ctx, http.MethodGet, "/metrics/distribution", nil, nil, nil, &out)
	return out, err
}

// RefreshMetrics asks the server to rebuild its materialized metric views.
func (c *Client) RefreshMetrics(ctx context.Context) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/metrics/refresh", nil, nil, nil, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}
