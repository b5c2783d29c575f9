package feed

import "github.com/alanyoungcy/arbwatch/internal/domain"

// Publisher receives every observation a source produces.
type Publisher interface {
	Publish(obs domain.PriceObservation)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(domain.PriceObservation)

// Publish calls f(obs).
func (f PublisherFunc) Publish(obs domain.PriceObservation) { f(obs) }

// Fanout delivers each observation to every publisher in order.
type Fanout []Publisher

// Publish forwards obs to every non-nil publisher.
func (f Fanout) Publish(obs domain.PriceObservation) {
	for _, p := range f {
		if p != nil {
			p.Publish(obs)
		}
	}
}
