package entity

// KeywordFilter selects the backend-side content filtering policy for a source.
// Unknown values are passed through untouched.
type KeywordFilter string

const (
	FilterNone       KeywordFilter = "no_filter"
	FilterFinance    KeywordFilter = "finance"
	FilterEducation  KeywordFilter = "education"
	FilterTechnology KeywordFilter = "technology"
	FilterEconomy    KeywordFilter = "economy"
	FilterPolitics   KeywordFilter = "politics"
	FilterESG        KeywordFilter = "esg"
	FilterHealth     KeywordFilter = "health"
	FilterBusiness   KeywordFilter = "business"
	FilterExclude    KeywordFilter = "exclude"
)

var filterLabels = map[KeywordFilter]string{
	FilterNone:       "No Filter",
	FilterFinance:    "Finance",
	FilterEducation:  "Education",
	FilterTechnology: "Technology",
	FilterEconomy:    "Economy",
	FilterPolitics:   "Politics",
	FilterESG:        "ESG",
	FilterHealth:     "Health",
	FilterBusiness:   "Business",
	FilterExclude:    "Exclude",
}

// KeywordFilters returns the known filters in display order.
func KeywordFilters() []KeywordFilter {
	return []KeywordFilter{
		FilterNone,
		FilterFinance,
		FilterEducation,
		FilterTechnology,
		FilterEconomy,
		FilterPolitics,
		FilterESG,
		FilterHealth,
		FilterBusiness,
		FilterExclude,
	}
}

// Label returns the display label. Unknown filters are labelled with their raw value.
func (f KeywordFilter) Label() string {
	if label, ok := filterLabels[f]; ok {
		return label
	}
	if f == "" {
		return filterLabels[FilterNone]
	}
	return string(f)
}

// Known reports whether f is one of the filters the backend ships with.
func (f KeywordFilter) Known() bool {
	_, ok := filterLabels[f]
	return ok
}
