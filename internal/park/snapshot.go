package park

import "parkrep/core/internal/snapshots"

// SnapshotEntities flattens every live entity into comparable fields.
func (p *Park) SnapshotEntities() []snapshots.Entity {
	live := p.Entities()
	out := make([]snapshots.Entity, 0, len(live))
	for _, e := range live {
		out = append(out, snapshots.Entity{
			Index: e.ID,
			Kind:  e.Kind.String(),
			Fields: []snapshots.Field{
				{Name: "x", Value: int64(e.X)},
				{Name: "y", Value: int64(e.Y)},
				{Name: "z", Value: int64(e.Z)},
				{Name: "direction", Value: int64(e.Direction)},
				{Name: "energy", Value: int64(e.Energy)},
				{Name: "cash", Value: int64(e.Cash)},
			},
		})
	}
	return out
}
