package domain

// UnknownGroup stands in for a missing identity value.
const UnknownGroup = "Unknown"

// GroupKeySeparator joins primary and secondary identity into the composite key.
const GroupKeySeparator = "|||"

func GroupKey(primary, secondary string) string {
	return primary + GroupKeySeparator + secondary
}

// PivotRow aggregates every session record sharing one primary/secondary identity.
type PivotRow struct {
	Key               string
	Primary           string
	Secondary         string
	Visitors          float64
	CartAdds          float64
	CheckoutStarts    float64
	CheckoutCompletes float64
	PageViews         float64
	AvgDuration       float64 // visitor-weighted
	Records           []Record
}

func (p *PivotRow) Metric(m Metric) float64 {
	switch m {
	case MetricVisitors:
		return p.Visitors
	case MetricCartAdds:
		return p.CartAdds
	case MetricCheckoutStarts:
		return p.CheckoutStarts
	case MetricCheckoutCompletes:
		return p.CheckoutCompletes
	case MetricPageViews:
		return p.PageViews
	case MetricDuration:
		return p.AvgDuration
	default:
		return 0
	}
}
