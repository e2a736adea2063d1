package domain

import "time"

// Water records a watering performed by actorID on date. The event carries the
// plant's current compiled owner id. Dates are taken as given: backdated and
// future entries are accepted and the history keeps insertion order.
func (p *Plant) Water(eventID string, date time.Time, comment, actorID string) WateringEvent {
	event := WateringEvent{
		ID:              eventID,
		Date:            date,
		Comment:         comment,
		WateredBy:       actorID,
		CompiledOwnerID: CompileOwnerID(p),
	}
	p.WateringHistory = append(p.WateringHistory, event)
	p.DateLastWatered = date
	return event
}

// ToggleFavorite flips the favorite flag.
func (p *Plant) ToggleFavorite() bool {
	p.IsFavorite = !p.IsFavorite
	return p.IsFavorite
}

// SyncCompiledOwner rewrites the compiled owner id on every watering event and
// reports how many events changed.
func (p *Plant) SyncCompiledOwner() int {
	compiled := CompileOwnerID(p)
	changed := 0
	for i := range p.WateringHistory {
		if p.WateringHistory[i].CompiledOwnerID != compiled {
			p.WateringHistory[i].CompiledOwnerID = compiled
			changed++
		}
	}
	return changed
}

// HistoryInSync reports whether every watering event carries the current
// compiled owner id.
func (p *Plant) HistoryInSync() bool {
	compiled := CompileOwnerID(p)
	for _, ev := range p.WateringHistory {
		if ev.CompiledOwnerID != compiled {
			return false
		}
	}
	return true
}
