// Package quotes picks the quote shown on the page.
package quotes

import (
	"math/rand"
	"sync"

	"github.com/kjstillabower/our-story/internal/models"
)

// Rotator picks quotes uniformly at random. It is safe for concurrent use.
type Rotator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRotatorWithSource returns a Rotator drawing from src.
func NewRotatorWithSource(src rand.Source) *Rotator {
	return &Rotator{rng: rand.New(src)}
}

// Next returns a random quote from list and its index. ok is false for an empty list.
func (r *Rotator) Next(list []models.Quote) (q models.Quote, index int, ok bool) {
	if len(list) == 0 {
		return models.Quote{}, -1, false
	}
	r.mu.Lock()
	index = r.rng.Intn(len(list))
	r.mu.Unlock()
	return list[index], index, true
}
