package schema

import "fmt"

// Scale is the number of decimal places used by a scaled integer.
// Example: Scale=8 means the integer value is scaled by 1e8.
type Scale int32

// ScaleSpec defines scaling for common numeric fields.
type ScaleSpec struct {
	PriceScale    Scale `json:"priceScale"`
	QuantityScale Scale `json:"quantityScale"`
	NotionalScale Scale `json:"notionalScale"`
}

// VenueID is the numeric identifier for a venue.
type VenueID uint16

// SymbolID is the numeric identifier for an instrument.
type SymbolID uint32

// Venue describes a trading venue or broker.
type Venue struct {
	ID   VenueID
	Name string
}

// Instrument describes a tradable instrument. Immutable once registered.
type Instrument struct {
	ID          SymbolID
	VenueID     VenueID
	Name        string
	VenueSymbol string
	TickSize    Price
	LotSize     Quantity
	Scale       ScaleSpec
}

// Registry stores venue and instrument mappings. It is built once at
// startup and read-only afterwards.
type Registry struct {
	venues      []Venue
	instruments []Instrument
	venueByName map[string]VenueID
	idByName    map[string]SymbolID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		venueByName: make(map[string]VenueID),
		idByName:    make(map[string]SymbolID),
	}
}

// AddVenue registers a new venue and returns its ID.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	if name == "" {
		return 0, fmt.Errorf("venue name is empty")
	}
	if id, ok := r.venueByName[name]; ok {
		return id, fmt.Errorf("venue already exists: %s", name)
	}
	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueByName[name] = id
	return id, nil
}

// AddInstrument registers a new instrument and returns its ID.
func (r *Registry) AddInstrument(inst Instrument) (SymbolID, error) {
	if inst.Name == "" {
		return 0, fmt.Errorf("instrument name is empty")
	}
	if _, ok := r.Venue(inst.VenueID); !ok {
		return 0, fmt.Errorf("venue id not found: %d", inst.VenueID)
	}
	if id, ok := r.idByName[inst.Name]; ok {
		return id, fmt.Errorf("instrument already exists: %s", inst.Name)
	}
	if inst.TickSize < 0 || inst.LotSize < 0 {
		return 0, fmt.Errorf("instrument %s has negative tick/lot size", inst.Name)
	}
	if inst.VenueSymbol == "" {
		inst.VenueSymbol = inst.Name
	}
	id := SymbolID(len(r.instruments) + 1)
	inst.ID = id
	r.instruments = append(r.instruments, inst)
	r.idByName[inst.Name] = id
	return id, nil
}

// Venue returns the venue by ID.
func (r *Registry) Venue(id VenueID) (Venue, bool) {
	if id == 0 || int(id) > len(r.venues) {
		return Venue{}, false
	}
	return r.venues[id-1], true
}

// Instrument returns the instrument by ID.
func (r *Registry) Instrument(id SymbolID) (Instrument, bool) {
	if id == 0 || int(id) > len(r.instruments) {
		return Instrument{}, false
	}
	return r.instruments[id-1], true
}

// InstrumentCount returns the number of registered instruments.
func (r *Registry) InstrumentCount() int {
	return len(r.instruments)
}

// InstrumentAt returns the instrument by zero-based index.
func (r *Registry) InstrumentAt(index int) (Instrument, bool) {
	if index < 0 || index >= len(r.instruments) {
		return Instrument{}, false
	}
	return r.instruments[index], true
}

// VenueIDByName returns the venue ID for a name.
func (r *Registry) VenueIDByName(name string) (VenueID, bool) {
	id, ok := r.venueByName[name]
	return id, ok
}

// SymbolIDByName returns the instrument ID for a name.
func (r *Registry) SymbolIDByName(name string) (SymbolID, bool) {
	id, ok := r.idByName[name]
	return id, ok
}
