// Package domain contains core domain types for the farmbot application.
package domain

// FarmEntry represents a selectable farm with an hourly income rate.
// Income is expressed in millions per hour.
type FarmEntry struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Income float64 `json:"income"`
}

// Category is a named, insertion-ordered group of farm entries.
type Category struct {
	Name  string      `json:"name"`
	Farms []FarmEntry `json:"farms"`
}

// FindFarm returns the farm with the given id. Matching is case-sensitive.
func (c Category) FindFarm(id string) (FarmEntry, bool) {
	for _, f := range c.Farms {
		if f.ID == id {
			return f, true
		}
	}
	return FarmEntry{}, false
}
