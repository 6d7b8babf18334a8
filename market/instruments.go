package market

// AssetClass distinguishes the two operating profiles' universes.
type AssetClass string

const (
	Equity AssetClass = "equity"
	Crypto AssetClass = "crypto"
)

// Instrument is immutable once loaded for a cycle.
type Instrument struct {
	ID       string
	Class    AssetClass
	Tradable bool
}

// Universe is the ordered set of instruments one profile evaluates per cycle.
type Universe []Instrument

func NewUniverse(class AssetClass, ids ...string) Universe {
	u := make(Universe, 0, len(ids))
	for _, id := range ids {
		u = append(u, Instrument{ID: id, Class: class, Tradable: true})
	}
	return u
}
