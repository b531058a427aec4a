package models

// Requests for the query surface. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Limit  int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=2000"`
	Action string `query:"action" json:"action" validate:"omitempty,oneof=hold accumulate wait"`
	Since  string `query:"since" json:"since"`
	Until  string `query:"until" json:"until"`
	Order  string `query:"order" json:"order" default:"desc" validate:"oneof=asc desc"`
}

type ItemsRequest struct {
	Limit    int      `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=2000"`
	Source   string   `query:"source" json:"source" validate:"omitempty,oneof=feed social notification seed"`
	Label    string   `query:"label" json:"label"`
	Q        string   `query:"q" json:"q"`
	MinScore *float64 `query:"min_score" json:"min_score"`
	MaxScore *float64 `query:"max_score" json:"max_score"`
	Since    string   `query:"since" json:"since"`
	Until    string   `query:"until" json:"until"`
	Order    string   `query:"order" json:"order" default:"desc" validate:"oneof=asc desc"`
	Relevant *int     `query:"relevant" json:"relevant" validate:"omitempty,oneof=0 1"`
}

type EventsRequest struct {
	SinceID *int64 `query:"since_id" json:"since_id"`
	Limit   int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=200"`
}

type ImpactTopRequest struct {
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
	Hours  int    `query:"hours" json:"hours" default:"6" validate:"gte=1,lte=168"`
	Source string `query:"source" json:"source" validate:"omitempty,oneof=feed social notification seed"`
}

type SeriesRequest struct {
	Minutes int    `query:"minutes" json:"minutes" default:"240" validate:"gte=1,lte=10080"`
	Asset   string `query:"asset" json:"asset"`
}

type PriceSeriesRequest struct {
	Symbol    string `query:"symbol" json:"symbol"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1m"`
	Minutes   int    `query:"minutes" json:"minutes" default:"240" validate:"gte=1,lte=10080"`
}
