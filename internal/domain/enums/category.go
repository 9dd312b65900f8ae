package enums

import "strings"

// Category is the closed set of showcase categories. Anything the admin
// sends that does not match falls back to CategoryOther.
type Category string

const (
	CategoryLandscape Category = "landscape"
	CategoryCity      Category = "city"
	CategoryArt       Category = "art"
	CategoryHoliday   Category = "holiday"
	CategoryAnimals   Category = "animals"
	CategoryOther     Category = "other"
)

var categoryLabels = map[Category]string{
	CategoryLandscape: "Landscapes",
	CategoryCity:      "Cities",
	CategoryArt:       "Art",
	CategoryHoliday:   "Holidays",
	CategoryAnimals:   "Animals",
	CategoryOther:     "Other",
}

func Categories() []Category {
	return []Category{
		CategoryLandscape,
		CategoryCity,
		CategoryArt,
		CategoryHoliday,
		CategoryAnimals,
		CategoryOther,
	}
}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categoryLabels[c]; ok {
		return c, true
	}
	return CategoryOther, false
}

func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return categoryLabels[CategoryOther]
}

func (c Category) String() string {
	return string(c)
}
