// Package stats drives statistic queries against the logbook.
package stats

import (
	"github.com/qlogstats/qlogstats/internal/model"
	"github.com/qlogstats/qlogstats/internal/query"
)

// Descriptor declaratively describes one statistic kind. Every kind runs
// through the same execution path; they differ only by their descriptor.
type Descriptor struct {
	ID      string
	Label   string
	View    query.View
	Columns []model.Column

	// Chartable statistics expose ChartDim/ChartValue pairs per row.
	Chartable  bool
	ChartDim   string
	ChartValue string

	// GroupField names the allow-listed column a row's dimension value
	// filters on when drilling down to the underlying contacts.
	GroupField string

	post func(*model.ResultSet) *model.ResultSet
}

// Registry is the read-only statistic lookup table, populated once at
// startup and never mutated afterwards.
type Registry struct {
	order []string
	byID  map[string]Descriptor
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// IDs returns the statistic ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func countColumns(dim model.Column) []model.Column {
	return []model.Column{dim, {Key: "count", Label: "QSOs", Type: model.ColumnInteger}}
}

var detailColumns = []model.Column{
	{Key: "callsign", Label: "Callsign", Type: model.ColumnString},
	{Key: "date", Label: "Date", Type: model.ColumnDate},
	{Key: "time", Label: "Time", Type: model.ColumnString},
	{Key: "band", Label: "Band", Type: model.ColumnString},
	{Key: "mode", Label: "Mode", Type: model.ColumnString},
	{Key: "country", Label: "Country", Type: model.ColumnString},
}

const detailSelect = "callsign, DATE(start_time) AS date, TIME(start_time) AS time, band, mode, country"

// NewRegistry builds the statistic registry. Adding a statistic kind is
// adding one entry here, not new control flow.
func NewRegistry() *Registry {
	descriptors := []Descriptor{
		{
			ID:    "by_country",
			Label: "QSOs by country",
			View: query.View{
				Select:  "country, COUNT(*) AS count",
				Where:   []string{"country IS NOT NULL", "country != ''"},
				GroupBy: "country",
				OrderBy: "count DESC, country ASC",
			},
			Columns:    countColumns(model.Column{Key: "country", Label: "Country", Type: model.ColumnString}),
			Chartable:  true,
			ChartDim:   "country",
			ChartValue: "count",
			GroupField: "country",
		},
		{
			ID:    "by_band",
			Label: "QSOs by band",
			View: query.View{
				Select:  "band, COUNT(*) AS count",
				Where:   []string{"band IS NOT NULL", "band != ''"},
				GroupBy: "band",
				OrderBy: "count DESC, band ASC",
			},
			Columns:    countColumns(model.Column{Key: "band", Label: "Band", Type: model.ColumnString}),
			Chartable:  true,
			ChartDim:   "band",
			ChartValue: "count",
			GroupField: "band",
		},
		{
			ID:    "by_mode",
			Label: "QSOs by mode",
			View: query.View{
				Select:  "mode, COUNT(*) AS count",
				Where:   []string{"mode IS NOT NULL", "mode != ''"},
				GroupBy: "mode",
				OrderBy: "count DESC, mode ASC",
			},
			Columns:    countColumns(model.Column{Key: "mode", Label: "Mode", Type: model.ColumnString}),
			Chartable:  true,
			ChartDim:   "mode",
			ChartValue: "count",
			GroupField: "mode",
		},
		{
			ID:    "by_year",
			Label: "QSOs by year",
			View: query.View{
				Select:  "strftime('%Y', start_time) AS year, COUNT(*) AS count",
				Where:   []string{"start_time IS NOT NULL"},
				GroupBy: "year",
				OrderBy: "year DESC",
			},
			Columns:    countColumns(model.Column{Key: "year", Label: "Year", Type: model.ColumnInteger}),
			Chartable:  true,
			ChartDim:   "year",
			ChartValue: "count",
		},
		{
			ID:    "by_month",
			Label: "QSOs by month",
			View: query.View{
				Select:  "strftime('%Y-%m', start_time) AS month, COUNT(*) AS count",
				Where:   []string{"start_time IS NOT NULL"},
				GroupBy: "month",
				OrderBy: "month DESC",
			},
			Columns:    countColumns(model.Column{Key: "month", Label: "Month", Type: model.ColumnString}),
			Chartable:  true,
			ChartDim:   "month",
			ChartValue: "count",
		},
		{
			ID:    "by_weekday",
			Label: "QSOs by weekday",
			View: query.View{
				Select: `CASE CAST(strftime('%w', start_time) AS INTEGER)
					WHEN 0 THEN 'Sunday' WHEN 1 THEN 'Monday' WHEN 2 THEN 'Tuesday'
					WHEN 3 THEN 'Wednesday' WHEN 4 THEN 'Thursday' WHEN 5 THEN 'Friday'
					WHEN 6 THEN 'Saturday' END AS weekday,
					COUNT(*) AS count,
					CAST(strftime('%w', start_time) AS INTEGER) AS day_num`,
				Where:   []string{"start_time IS NOT NULL"},
				GroupBy: "day_num",
				OrderBy: "day_num ASC",
			},
			Columns: []model.Column{
				{Key: "weekday", Label: "Weekday", Type: model.ColumnString},
				{Key: "count", Label: "QSOs", Type: model.ColumnInteger},
				{Key: "day_num", Label: "Day #", Type: model.ColumnInteger},
			},
			Chartable:  true,
			ChartDim:   "weekday",
			ChartValue: "count",
		},
		{
			ID:    "by_day",
			Label: "QSOs by day of month",
			View: query.View{
				Select:  "CAST(strftime('%d', start_time) AS INTEGER) AS day, COUNT(*) AS count",
				Where:   []string{"start_time IS NOT NULL"},
				GroupBy: "day",
				OrderBy: "day ASC",
			},
			Columns:    countColumns(model.Column{Key: "day", Label: "Day", Type: model.ColumnInteger}),
			Chartable:  true,
			ChartDim:   "day",
			ChartValue: "count",
		},
		{
			ID:    "by_hour",
			Label: "QSOs by hour (UTC)",
			View: query.View{
				Select:  "CAST(strftime('%H', start_time) AS INTEGER) AS hour, COUNT(*) AS count",
				Where:   []string{"start_time IS NOT NULL"},
				GroupBy: "hour",
				OrderBy: "hour ASC",
			},
			Columns:    countColumns(model.Column{Key: "hour", Label: "Hour", Type: model.ColumnInteger}),
			Chartable:  true,
			ChartDim:   "hour",
			ChartValue: "count",
		},
		{
			ID:    "by_callsign",
			Label: "QSOs by callsign",
			View: query.View{
				Select:  "callsign, COUNT(*) AS count",
				Where:   []string{"callsign IS NOT NULL", "callsign != ''"},
				GroupBy: "callsign",
				OrderBy: "count DESC, callsign ASC",
			},
			Columns:    countColumns(model.Column{Key: "callsign", Label: "Callsign", Type: model.ColumnString}),
			GroupField: "callsign",
			post:       annotateSpecial,
		},
		{
			ID:    "top_days",
			Label: "Top QSO days",
			View: query.View{
				Select:  "DATE(start_time) AS date, COUNT(*) AS count",
				Where:   []string{"start_time IS NOT NULL"},
				GroupBy: "date",
				OrderBy: "count DESC, date ASC",
				Limit:   250,
			},
			Columns:    countColumns(model.Column{Key: "date", Label: "Date", Type: model.ColumnDate}),
			Chartable:  true,
			ChartDim:   "date",
			ChartValue: "count",
		},
		{
			ID:    "flop_days",
			Label: "Flop QSO days",
			View: query.View{
				Select:  "DATE(start_time) AS date, COUNT(*) AS count",
				Where:   []string{"start_time IS NOT NULL"},
				GroupBy: "date",
				OrderBy: "count ASC, date ASC",
				Limit:   250,
			},
			Columns:    countColumns(model.Column{Key: "date", Label: "Date", Type: model.ColumnDate}),
			Chartable:  true,
			ChartDim:   "date",
			ChartValue: "count",
		},
		{
			ID:    "propagation",
			Label: "Propagation indices by month",
			View: query.View{
				Select: `strftime('%Y-%m', start_time) AS month,
					ROUND(AVG(k_index), 1) AS k_index,
					ROUND(AVG(a_index), 1) AS a_index,
					ROUND(AVG(sfi), 1) AS sfi`,
				Where:   []string{"(k_index IS NOT NULL OR a_index IS NOT NULL OR sfi IS NOT NULL)"},
				GroupBy: "month",
				OrderBy: "month ASC",
			},
			Columns: []model.Column{
				{Key: "month", Label: "Month", Type: model.ColumnString},
				{Key: "k_index", Label: "K-index", Type: model.ColumnFloat},
				{Key: "a_index", Label: "A-index", Type: model.ColumnFloat},
				{Key: "sfi", Label: "SFI", Type: model.ColumnFloat},
			},
			Chartable:  true,
			ChartDim:   "month",
			ChartValue: "sfi",
		},
		{
			ID:    "special_callsigns",
			Label: "Special callsigns",
			View: query.View{
				Select:  detailSelect + ", dxcc",
				Where:   []string{"callsign IS NOT NULL", "callsign NOT LIKE '%/%'"},
				OrderBy: "start_time DESC",
			},
			Columns: append(append([]model.Column(nil), detailColumns...),
				model.Column{Key: "dxcc", Label: "DXCC", Type: model.ColumnInteger}),
			post: filterSpecial,
		},
		{
			ID:    "qsl_sent",
			Label: "QSL cards sent",
			View: query.View{
				Select:   detailSelect + ", qsl_sdate AS qsl_date",
				Where:    []string{"qsl_sdate IS NOT NULL"},
				OrderBy:  "start_time DESC",
				DateOnly: true,
			},
			Columns: append(append([]model.Column(nil), detailColumns...),
				model.Column{Key: "qsl_date", Label: "QSL sent date", Type: model.ColumnDate}),
		},
		{
			ID:    "qsl_received",
			Label: "QSL cards received",
			View: query.View{
				Select:   detailSelect + ", qsl_rdate AS qsl_date",
				Where:    []string{"qsl_rdate IS NOT NULL"},
				OrderBy:  "start_time DESC",
				DateOnly: true,
			},
			Columns: append(append([]model.Column(nil), detailColumns...),
				model.Column{Key: "qsl_date", Label: "QSL received date", Type: model.ColumnDate}),
		},
		{
			ID:    "qsl_requested",
			Label: "QSL cards requested",
			View: query.View{
				Select:   detailSelect,
				Where:    []string{"qsl_rcvd = 'R'"},
				OrderBy:  "start_time DESC",
				DateOnly: true,
			},
			Columns: detailColumns,
		},
		{
			ID:    "qsl_queued",
			Label: "QSL cards queued",
			View: query.View{
				Select:   detailSelect,
				Where:    []string{"qsl_sent = 'Q'"},
				OrderBy:  "start_time DESC",
				DateOnly: true,
			},
			Columns: detailColumns,
		},
		{
			ID:    "lotw_received",
			Label: "LotW confirmations",
			View: query.View{
				Select:   detailSelect,
				Where:    []string{"lotw_qsl_rcvd = 'Y'"},
				OrderBy:  "start_time DESC",
				DateOnly: true,
			},
			Columns: detailColumns,
		},
		{
			ID:    "eqsl_received",
			Label: "eQSL confirmations",
			View: query.View{
				Select:   detailSelect,
				Where:    []string{"eqsl_qsl_rcvd = 'Y'"},
				OrderBy:  "start_time DESC",
				DateOnly: true,
			},
			Columns: detailColumns,
		},
	}

	r := &Registry{byID: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = d
	}
	return r
}
