package sweep

// EntityRanges holds the range descriptors of one entity in the order the
// attributes were first declared.
type EntityRanges struct {
	ID     string
	Ranges []RangeDescriptor
}

// Attributes returns the attribute names in declaration order.
func (e EntityRanges) Attributes() []string {
	names := make([]string, len(e.Ranges))
	for i, r := range e.Ranges {
		names[i] = r.Attribute
	}
	return names
}

// Replications returns the largest replication count declared for any of the
// entity's attributes, at least 1.
func (e EntityRanges) Replications() int {
	n := 1
	for _, r := range e.Ranges {
		if r.Replications > n {
			n = r.Replications
		}
	}
	return n
}

// ParameterSet maps entity ids to their range descriptors, preserving the
// order entities and attributes were first seen.
type ParameterSet struct {
	entities []EntityRanges
	index    map[string]int
}

// NewParameterSet returns an empty set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{index: make(map[string]int)}
}

// Put adds a descriptor. A later descriptor for the same (entity, attribute)
// pair replaces the earlier one in place.
func (p *ParameterSet) Put(d RangeDescriptor) {
	i, ok := p.index[d.EntityID]
	if !ok {
		i = len(p.entities)
		p.index[d.EntityID] = i
		p.entities = append(p.entities, EntityRanges{ID: d.EntityID})
	}
	e := &p.entities[i]
	for j := range e.Ranges {
		if e.Ranges[j].Attribute == d.Attribute {
			e.Ranges[j] = d
			return
		}
	}
	e.Ranges = append(e.Ranges, d)
}

// Entities returns the entities in first-seen order.
func (p *ParameterSet) Entities() []EntityRanges {
	out := make([]EntityRanges, len(p.entities))
	for i, e := range p.entities {
		out[i] = EntityRanges{ID: e.ID, Ranges: append([]RangeDescriptor(nil), e.Ranges...)}
	}
	return out
}

// Len returns the number of entities.
func (p *ParameterSet) Len() int { return len(p.entities) }

// Attributes returns every attribute name across all entities, first-seen
// order, without duplicates.
func (p *ParameterSet) Attributes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range p.entities {
		for _, r := range e.Ranges {
			if !seen[r.Attribute] {
				seen[r.Attribute] = true
				out = append(out, r.Attribute)
			}
		}
	}
	return out
}
