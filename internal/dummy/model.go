// Package dummy is a small business component exposed through the component
// runtime: a keyed text record with memory and Postgres persistence.
package dummy

// Dummy is the business entity.
type Dummy struct {
	ID      string `json:"id" db:"id"`
	Key     string `json:"key" db:"key" validate:"required"`
	Content string `json:"content" db:"content"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Key string   `json:"key,omitempty"`
	IDs []string `json:"ids,omitempty"`
}

// Paging selects a window of results. Take 0 means the default page size.
type Paging struct {
	Skip  int  `json:"skip,omitempty" validate:"gte=0"`
	Take  int  `json:"take,omitempty" validate:"gte=0,lte=1000"`
	Total bool `json:"total,omitempty"`
}

// DefaultTake is the page size used when Paging.Take is 0.
const DefaultTake = 100

func (p Paging) take() int {
	if p.Take <= 0 {
		return DefaultTake
	}
	return p.Take
}

// Page is one window of results. Total is set only when requested.
type Page struct {
	Data  []Dummy `json:"data"`
	Total *int64  `json:"total,omitempty"`
}

func (f Filter) matches(d Dummy) bool {
	if f.Key != "" && d.Key != f.Key {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == d.ID {
				return true
			}
		}
		return false
	}
	return true
}
