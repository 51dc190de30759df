package catalog

// DedupPolicy decides whether a candidate foreign-key edge should be
// suppressed given the edges already materialized. Returning true drops
// the candidate.
type DedupPolicy func(existing []ForeignKey, from, to ColumnID) bool

// CoarseEndpointDedup suppresses a candidate when ANY existing edge shares
// either its from endpoint or its to endpoint, not only when the exact
// pair already exists. A column can therefore appear as a foreign-key
// target at most once, and later edges sharing a target are silently
// dropped. This is the default policy; ExactPairDedup is the strict
// alternative.
func CoarseEndpointDedup(existing []ForeignKey, from, to ColumnID) bool {
	for _, fk := range existing {
		if fk.To == to || fk.From == from {
			return true
		}
	}
	return false
}

// ExactPairDedup suppresses a candidate only when the same (from, to)
// pair is already materialized.
func ExactPairDedup(existing []ForeignKey, from, to ColumnID) bool {
	for _, fk := range existing {
		if fk.From == from && fk.To == to {
			return true
		}
	}
	return false
}
