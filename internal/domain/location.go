package domain

// Discriminator field names in priority order.
const (
	FieldPincode  = "pincode"
	FieldLocality = "locality"
	FieldTown     = "town"
	FieldCity     = "city"
)

// Location represents the shopper's physical location. Every field is optional.
type Location struct {
	Pincode  string `json:"pincode,omitempty"`
	City     string `json:"city,omitempty"`
	Town     string `json:"town,omitempty"`
	Locality string `json:"locality,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Discriminator is the single location field used as the catalog cache key
type Discriminator struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// IsEmpty reports whether no discriminator value is present
func (d Discriminator) IsEmpty() bool {
	return d.Value == ""
}

// Discriminator applies the fixed priority pincode > locality > town > city.
// An entirely empty location yields ("pincode", "").
func (l Location) Discriminator() Discriminator {
	switch {
	case l.Pincode != "":
		return Discriminator{Field: FieldPincode, Value: l.Pincode}
	case l.Locality != "":
		return Discriminator{Field: FieldLocality, Value: l.Locality}
	case l.Town != "":
		return Discriminator{Field: FieldTown, Value: l.Town}
	case l.City != "":
		return Discriminator{Field: FieldCity, Value: l.City}
	default:
		return Discriminator{Field: FieldPincode}
	}
}

// SameKey reports whether two locations map to the same cache key
func (l Location) SameKey(other Location) bool {
	return l.Discriminator() == other.Discriminator()
}

// IsEmpty reports whether the location carries no fields at all
func (l Location) IsEmpty() bool {
	return l == Location{}
}

// Merge overlays the non-empty fields of patch onto l
func (l Location) Merge(patch LocationPatch) Location {
	if patch.Pincode != nil {
		l.Pincode = *patch.Pincode
	}
	if patch.City != nil {
		l.City = *patch.City
	}
	if patch.Town != nil {
		l.Town = *patch.Town
	}
	if patch.Locality != nil {
		l.Locality = *patch.Locality
	}
	if patch.Country != nil {
		l.Country = *patch.Country
	}
	return l
}

// LocationPatch is a partial location edit. A nil field is left untouched,
// an empty string clears it.
type LocationPatch struct {
	Pincode  *string `json:"pincode,omitempty"`
	City     *string `json:"city,omitempty"`
	Town     *string `json:"town,omitempty"`
	Locality *string `json:"locality,omitempty"`
	Country  *string `json:"country,omitempty"`
}

// Coordinates is a device position fix
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RawAddress is a reverse geocoder payload before normalization. Geocoders
// disagree on which field carries the settlement name.
type RawAddress struct {
	Pincode  string `json:"pincode"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
	Suburb   string `json:"suburb"`
	Locality string `json:"locality"`
	District string `json:"district"`
	Country  string `json:"country"`
}
