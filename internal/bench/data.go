package bench

import (
	"math/rand"
	"strings"
)

var (
	adjectives = []string{
		"pretty", "large", "big", "small", "tall", "short", "long", "handsome",
		"plain", "quaint", "clean", "elegant", "easy", "angry", "crazy", "helpful",
		"mushy", "odd", "unsightly", "adorable", "important", "inexpensive",
		"cheap", "expensive", "fancy",
	}
	colours = []string{
		"red", "yellow", "blue", "green", "pink", "brown", "purple", "brown",
		"white", "black", "orange",
	}
	nouns = []string{
		"table", "chair", "house", "bbq", "desk", "car", "pony", "cookie",
		"sandwich", "burger", "pizza", "mouse", "keyboard",
	}
)

// rowSource generates rows with increasing ids and random labels.
type rowSource struct {
	rng    *rand.Rand
	nextID int
}

func newRowSource(seed int64) *rowSource {
	return &rowSource{rng: rand.New(rand.NewSource(seed)), nextID: 1}
}

// build returns count new rows as plain maps, ready to be ingested.
func (g *rowSource) build(count int) []any {
	rows := make([]any, count)
	var b strings.Builder
	for i := range rows {
		b.Reset()
		b.WriteString(adjectives[g.rng.Intn(len(adjectives))])
		b.WriteByte(' ')
		b.WriteString(colours[g.rng.Intn(len(colours))])
		b.WriteByte(' ')
		b.WriteString(nouns[g.rng.Intn(len(nouns))])

		rows[i] = map[string]any{"id": g.nextID, "label": b.String()}
		g.nextID++
	}
	return rows
}
