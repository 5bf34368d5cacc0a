package methodology

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalized is the tagged result of mapping a raw methodology string:
// either an exact match of the closed enum, or a Custom fallback with
// the raw text retained for audit.
type Normalized struct {
	Methodology Methodology
	// Source carries the data-source descriptor implied by the raw
	// string (e.g. "odečet SV" implies a cold-water meter), empty when
	// the string does not pin one down.
	Source string
	Raw    string
	Exact  bool
}

// historical maps folded legacy strings from imported spreadsheets onto
// the enum. Keys must be lower-case and diacritics-free.
var historical = map[string]Normalized{
	"vlastnicky podil":  {Methodology: OwnershipShare},
	"dle podilu":        {Methodology: OwnershipShare},
	"podil":             {Methodology: OwnershipShare},
	"plocha":            {Methodology: Area, Source: SourceTotalArea},
	"podlahova plocha":  {Methodology: Area, Source: SourceFloorArea},
	"dle plochy":        {Methodology: Area, Source: SourceTotalArea},
	"osobomesice":       {Methodology: PersonMonths},
	"dle osob":          {Methodology: PersonMonths},
	"osoby":             {Methodology: PersonMonths},
	"odecet":            {Methodology: MeterReading},
	"odecet sv":         {Methodology: MeterReading, Source: SourceColdWater},
	"odecet tv":         {Methodology: MeterReading, Source: SourceHotWater},
	"dle meridel":       {Methodology: MeterReading},
	"vodomer":           {Methodology: MeterReading, Source: SourceColdWater},
	"na byt":            {Methodology: FixedPerUnit},
	"na jednotku":       {Methodology: FixedPerUnit},
	"rovnym dilem":      {Methodology: EqualSplit},
	"neuctovat":         {Methodology: NoBilling},
	"bez vyuctovani":    {Methodology: NoBilling},
	"dle parametru":     {Methodology: UnitParameter},
	"komin":             {Methodology: UnitParameter, Source: "chimney_count"},
	"dle poctu kominu":  {Methodology: UnitParameter, Source: "chimney_count"},
	"vlastni vzorec":    {Methodology: Custom},
}

// Normalize maps a raw methodology string to the closed enum. Enum
// values pass through unchanged; legacy strings are folded (case- and
// diacritics-insensitive) and looked up; anything unrecognised becomes
// a Custom fallback with the raw text retained.
func Normalize(raw string) Normalized {
	trimmed := strings.TrimSpace(raw)
	if m := Methodology(strings.ToUpper(trimmed)); m.Valid() {
		return Normalized{Methodology: m, Raw: raw, Exact: true}
	}
	if hit, ok := historical[Fold(trimmed)]; ok {
		hit.Raw = raw
		hit.Exact = true
		return hit
	}
	return Normalized{Methodology: Custom, Raw: raw}
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lower-cases the string and strips combining diacritical marks,
// so "Odečet SV" and "odecet sv" compare equal.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}
