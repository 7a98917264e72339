package location

import (
	"strings"

	"storefront/internal/domain"
)

// Normalize maps heterogeneous geocoder output onto the canonical location
// shape. When city is absent it is filled by the first non-empty of town,
// village, suburb, locality and district.
func Normalize(raw domain.RawAddress) domain.Location {
	loc := domain.Location{
		Pincode:  clean(raw.Pincode),
		City:     clean(raw.City),
		Town:     clean(raw.Town),
		Locality: clean(raw.Locality),
		Country:  clean(raw.Country),
	}
	if loc.City == "" {
		loc.City = firstNonEmpty(raw.Town, raw.Village, raw.Suburb, raw.Locality, raw.District)
	}
	return loc
}

// Clean applies the normalization rules to an already canonical location,
// used for manual input and restored state.
func Clean(loc domain.Location) domain.Location {
	return domain.Location{
		Pincode:  clean(loc.Pincode),
		City:     clean(loc.City),
		Town:     clean(loc.Town),
		Locality: clean(loc.Locality),
		Country:  clean(loc.Country),
	}
}

// SelectDiscriminator returns the active cache key field of a location
func SelectDiscriminator(loc domain.Location) (field, value string) {
	d := loc.Discriminator()
	return d.Field, d.Value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
