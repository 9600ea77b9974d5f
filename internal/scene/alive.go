package scene

import "sort"

// Alive is the alive-objects projection: uuid -> the insert event that created it.
type Alive map[string]BallEvent

// NewAlive returns an empty projection.
func NewAlive() Alive {
	return make(Alive)
}

// Apply folds one event into the projection. An insert adds or overwrites the
// entry, a delete removes it.
func (a Alive) Apply(ev BallEvent) {
	if ev.IsInsert {
		a[ev.UUID] = ev
		return
	}
	delete(a, ev.UUID)
}

// Fold replays txs in order onto a fresh projection.
func Fold(txs []Transaction) Alive {
	a := NewAlive()
	for _, tx := range txs {
		a.Apply(tx.Ball)
	}
	return a
}

// IsAlive reports whether uuid currently names a live object.
func (a Alive) IsAlive(uuid string) bool {
	_, ok := a[uuid]
	return ok
}

// FixedPositions returns the positions of alive fixed objects, ordered by uuid
// so the result is deterministic.
func (a Alive) FixedPositions() []Vec3 {
	uuids := make([]string, 0, len(a))
	for id, ev := range a {
		if ev.IsFixed && ev.Position != nil {
			uuids = append(uuids, id)
		}
	}
	sort.Strings(uuids)

	positions := make([]Vec3, len(uuids))
	for i, id := range uuids {
		positions[i] = *a[id].Position
	}
	return positions
}

// Sorted returns the alive events ordered by uuid.
func (a Alive) Sorted() []BallEvent {
	uuids := make([]string, 0, len(a))
	for id := range a {
		uuids = append(uuids, id)
	}
	sort.Strings(uuids)

	events := make([]BallEvent, len(uuids))
	for i, id := range uuids {
		events[i] = a[id]
	}
	return events
}

// Clone returns a copy that shares no map storage with a.
func (a Alive) Clone() Alive {
	c := make(Alive, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// Equal reports whether both projections hold the same uuids mapped to the
// same logical events.
func (a Alive) Equal(b Alive) bool {
	if len(a) != len(b) {
		return false
	}
	for id, ev := range a {
		other, ok := b[id]
		if !ok || !ev.Equal(other) {
			return false
		}
	}
	return true
}

// Equal compares two events field by field, following pointers.
func (ev BallEvent) Equal(o BallEvent) bool {
	if ev.IsFixed != o.IsFixed || ev.IsInsert != o.IsInsert || ev.UUID != o.UUID {
		return false
	}
	if (ev.Color == nil) != (o.Color == nil) || (ev.Color != nil && *ev.Color != *o.Color) {
		return false
	}
	if (ev.Position == nil) != (o.Position == nil) || (ev.Position != nil && *ev.Position != *o.Position) {
		return false
	}
	if (ev.Impulse == nil) != (o.Impulse == nil) || (ev.Impulse != nil && *ev.Impulse != *o.Impulse) {
		return false
	}
	return true
}
