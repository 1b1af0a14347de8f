package domain

import "strings"

// SessionColumns names the columns of the storefront session export.
type SessionColumns struct {
	Primary           string `mapstructure:"primary_column"`
	Secondary         string `mapstructure:"secondary_column"`
	Date              string `mapstructure:"date_column"`
	Visitors          string `mapstructure:"visitors"`
	CartAdds          string `mapstructure:"cart_adds"`
	CheckoutStarts    string `mapstructure:"checkout_starts"`
	CheckoutCompletes string `mapstructure:"checkout_completes"`
	PageViews         string `mapstructure:"page_views"`
	Duration          string `mapstructure:"duration"` // average session duration, seconds
}

// PlatformColumns names the identity columns of an ad platform export.
// Secondary is empty when the platform is matched on the primary identity only.
type PlatformColumns struct {
	Primary   string `mapstructure:"primary_column"`
	Secondary string `mapstructure:"secondary_column"`
	Date      string `mapstructure:"date_column"`
}

type ColumnMapping struct {
	Sessions SessionColumns  `mapstructure:"sessions"`
	Meta     PlatformColumns `mapstructure:"meta"`
	Google   PlatformColumns `mapstructure:"google"`
}

func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		Sessions: SessionColumns{
			Primary:           "UTM campaign",
			Secondary:         "UTM content",
			Date:              "Day",
			Visitors:          "Online store visitors",
			CartAdds:          "Sessions with cart additions",
			CheckoutStarts:    "Sessions that reached checkout",
			CheckoutCompletes: "Sessions that completed checkout",
			PageViews:         "Pageviews",
			Duration:          "Average session duration",
		},
		Meta: PlatformColumns{
			Primary:   "Campaign name",
			Secondary: "Ad set name",
			Date:      "Day",
		},
		Google: PlatformColumns{
			Primary: "Campaign",
			Date:    "Day",
		},
	}
}

// Metric identifies one of the pivot accumulators.
type Metric string

const (
	MetricVisitors          Metric = "visitors"
	MetricCartAdds          Metric = "cart_adds"
	MetricCheckoutStarts    Metric = "checkout_starts"
	MetricCheckoutCompletes Metric = "checkout_completes"
	MetricPageViews         Metric = "page_views"
	MetricDuration          Metric = "duration"
)

var metricAliases = map[string]Metric{
	"visitors":           MetricVisitors,
	"users":              MetricVisitors,
	"cart_adds":          MetricCartAdds,
	"cartadds":           MetricCartAdds,
	"checkout_starts":    MetricCheckoutStarts,
	"checkoutstarts":     MetricCheckoutStarts,
	"checkout_completes": MetricCheckoutCompletes,
	"checkoutcompletes":  MetricCheckoutCompletes,
	"page_views":         MetricPageViews,
	"pageviews":          MetricPageViews,
	"duration":           MetricDuration,
}

// Metric resolves a formula operand to a pivot accumulator, either by its
// canonical alias or by the configured column name.
func (c SessionColumns) Metric(name string) (Metric, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if m, ok := metricAliases[key]; ok {
		return m, true
	}
	for m, col := range c.metricColumns() {
		if col != "" && strings.EqualFold(col, strings.TrimSpace(name)) {
			return m, true
		}
	}
	return "", false
}

// Column returns the dataset column behind a metric alias or the name itself.
func (c SessionColumns) Column(name string) string {
	if m, ok := c.Metric(name); ok {
		if col := c.metricColumns()[m]; col != "" {
			return col
		}
	}
	return strings.TrimSpace(name)
}

func (c SessionColumns) metricColumns() map[Metric]string {
	return map[Metric]string{
		MetricVisitors:          c.Visitors,
		MetricCartAdds:          c.CartAdds,
		MetricCheckoutStarts:    c.CheckoutStarts,
		MetricCheckoutCompletes: c.CheckoutCompletes,
		MetricPageViews:         c.PageViews,
		MetricDuration:          c.Duration,
	}
}
