package spacestsync

import (
	"fmt"
	"strings"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/shopspring/decimal"
)

// Classification is the classifier verdict for one listing: the internal
// property type, the Italian catalogue category shown in the UI, and a
// human-readable reasoning string persisted for review.
type Classification struct {
	Type           models.PropertyType
	MappedCategory string
	Reasoning      string
}

// Listings above this monthly rent are never inferred to be studios.
var studioMaxMonthlyRent = decimal.NewFromInt(1500)

// Assumed monthly rent per bedroom used to estimate the size of apartments
// that arrive without a bedroom count.
var assumedRentPerBedroom = decimal.NewFromInt(900)

// Keyword lexicons for the markets Spacest feeds cover. Matching is
// case-insensitive substring, so stems like "condivis" cover the inflected
// Italian forms.
var (
	roomKeywords = []string{
		"room", "bedsit",
		"stanza", "camera", "posto letto",
		"habitacion", "habitación",
		"chambre",
		"quarto",
		"zimmer",
	}
	sharedKeywords = []string{
		"shared", "share",
		"condivis", "coliving", "co-living",
		"colocation",
		"compartid",
		"partilhad",
	}
	studioKeywords = []string{
		"studio",
		"monolocale",
		"estudio",
		"studette",
		"efficiency",
	}
	apartmentKeywords = []string{
		"apartment", "flat",
		"appartamento",
		"apartamento",
		"appartement",
		"wohnung",
		"piso",
	}
)

// Classify decides the property type from the source's category label, the
// declared bedroom count (zero when absent) and the monthly rent. It is pure:
// the same inputs always yield the same verdict.
func Classify(label string, bedrooms int, rent decimal.Decimal) Classification {
	normalized := strings.ToLower(strings.TrimSpace(label))

	if bedrooms == 1 {
		return Classification{
			Type:           models.PropertyTypeSingleRoom,
			MappedCategory: models.CategoryStanza,
			Reasoning:      "bedroom count 1 implies a single room",
		}
	}
	if kw, ok := matchKeyword(normalized, roomKeywords); ok {
		return Classification{
			Type:           models.PropertyTypeSingleRoom,
			MappedCategory: models.CategoryStanza,
			Reasoning:      fmt.Sprintf("label matched room keyword %q", kw),
		}
	}
	if kw, ok := matchKeyword(normalized, sharedKeywords); ok {
		return Classification{
			Type:           models.PropertyTypeSingleRoom,
			MappedCategory: models.CategoryStanza,
			Reasoning:      fmt.Sprintf("label matched shared-housing keyword %q", kw),
		}
	}

	if kw, ok := matchKeyword(normalized, studioKeywords); ok {
		return Classification{
			Type:           models.PropertyTypeStudio,
			MappedCategory: models.CategoryMonolocale,
			Reasoning:      fmt.Sprintf("label matched studio keyword %q", kw),
		}
	}
	if bedrooms == 0 && rent.GreaterThan(decimal.Zero) && rent.LessThanOrEqual(studioMaxMonthlyRent) {
		return Classification{
			Type:           models.PropertyTypeStudio,
			MappedCategory: models.CategoryMonolocale,
			Reasoning:      fmt.Sprintf("no bedrooms declared and rent %s within studio range", rent.StringFixed(2)),
		}
	}

	if kw, ok := matchKeyword(normalized, apartmentKeywords); ok && bedrooms == 0 && rent.GreaterThan(studioMaxMonthlyRent) {
		inferred := inferBedroomsFromRent(rent)
		return Classification{
			Type:           models.PropertyTypeMultiBedroomApartment,
			MappedCategory: bedroomsToCategory(inferred),
			Reasoning: fmt.Sprintf("label matched apartment keyword %q, estimated %d bedrooms from rent %s",
				kw, inferred, rent.StringFixed(2)),
		}
	}

	if bedrooms >= 2 {
		return Classification{
			Type:           models.PropertyTypeMultiBedroomApartment,
			MappedCategory: bedroomsToCategory(bedrooms),
			Reasoning:      fmt.Sprintf("bedroom count %d implies an apartment", bedrooms),
		}
	}

	return Classification{
		Type:      models.PropertyTypeUnknown,
		Reasoning: fmt.Sprintf("no classification rule matched label %q with %d bedrooms", label, bedrooms),
	}
}

func matchKeyword(normalized string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return kw, true
		}
	}
	return "", false
}

// inferBedroomsFromRent estimates a bedroom count for apartments that arrive
// without one, assuming a fixed per-bedroom rent. An apartment is at least a
// two-bedroom here: anything smaller would have been caught by the studio
// rules above.
func inferBedroomsFromRent(rent decimal.Decimal) int {
	estimated := int(rent.Div(assumedRentPerBedroom).Round(0).IntPart())
	if estimated < 2 {
		return 2
	}
	return estimated
}

func bedroomsToCategory(bedrooms int) string {
	switch bedrooms {
	case 2:
		return models.CategoryBilocale
	case 3:
		return models.CategoryTrilocale
	default:
		return models.CategoryAppartamento
	}
}

// classificationCache memoizes verdicts within a single import run. Feeds
// repeat the same label/bedrooms/rent triple across many listings, so the
// cache keeps logs quiet and the run deterministic.
type classificationCache map[string]Classification

func newClassificationCache() classificationCache {
	return make(classificationCache)
}

func (c classificationCache) classify(label string, bedrooms int, rent decimal.Decimal) Classification {
	key := fmt.Sprintf("%s|%d|%s", strings.ToLower(strings.TrimSpace(label)), bedrooms, rent.String())
	if cached, ok := c[key]; ok {
		return cached
	}
	verdict := Classify(label, bedrooms, rent)
	c[key] = verdict
	return verdict
}
