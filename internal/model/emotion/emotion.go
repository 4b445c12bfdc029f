package emotion

import "strings"

// Category is one of the fixed emotion buckets tracked per user.
type Category int

const (
	VeryHappy Category = iota
	Happy
	Sad
	VerySad
	Scared
	Surprised
	Normal
	Confused

	// NumCategories is the length of every emotion vector.
	NumCategories = 8
)

// Categories lists every category in classifier order.
var Categories = [NumCategories]Category{VeryHappy, Happy, Sad, VerySad, Scared, Surprised, Normal, Confused}

var categoryKeys = [NumCategories]string{"vhappy", "happy", "sad", "vsad", "scared", "surprised", "normal", "confused"}

// Key returns the wire name of the category.
func (c Category) Key() string {
	if c < 0 || int(c) >= NumCategories {
		return ""
	}
	return categoryKeys[c]
}

func (c Category) String() string {
	return c.Key()
}

// Vector holds one detection flag per category, in classifier order.
type Vector [NumCategories]bool

// NewVector builds a vector with the given categories flagged.
func NewVector(flagged ...Category) Vector {
	var v Vector
	for _, c := range flagged {
		if c >= 0 && int(c) < NumCategories {
			v[c] = true
		}
	}
	return v
}

// Count returns how many categories are flagged.
func (v Vector) Count() int {
	n := 0
	for _, set := range v {
		if set {
			n++
		}
	}
	return n
}

// Flagged returns the wire names of the flagged categories.
func (v Vector) Flagged() []string {
	keys := make([]string, 0, NumCategories)
	for i, set := range v {
		if set {
			keys = append(keys, categoryKeys[i])
		}
	}
	return keys
}

// String renders the vector the way the classifier emits it, e.g. [1,0,0,0,0,0,0,0].
func (v Vector) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, set := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		if set {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	b.WriteByte(']')
	return b.String()
}

// Counts is a running per-category tally. The zero value is a valid all-zero tally
// that still reports all eight keys.
type Counts [NumCategories]int

// Add increments every category flagged in v.
func (c *Counts) Add(v Vector) {
	for i, set := range v {
		if set {
			c[i]++
		}
	}
}

// Get returns the count of one category.
func (c Counts) Get(cat Category) int {
	if cat < 0 || int(cat) >= NumCategories {
		return 0
	}
	return c[cat]
}

// Total is the sum of every category count.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Map returns every category keyed by wire name, without the total.
func (c Counts) Map() map[string]int {
	out := make(map[string]int, NumCategories)
	for _, cat := range Categories {
		out[cat.Key()] = c[cat]
	}
	return out
}

// MapWithTotal returns Map plus a "total" entry, the historical response shape.
func (c Counts) MapWithTotal() map[string]int {
	out := c.Map()
	out["total"] = c.Total()
	return out
}

// CategoryByKey resolves a wire name back into a category.
func CategoryByKey(key string) (Category, bool) {
	for i, k := range categoryKeys {
		if k == key {
			return Category(i), true
		}
	}
	return 0, false
}
