package gazetteer

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/liftcare/field-bot/internal/apperr"
)

// maxSuggestDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestDistance = 3

// Resolution is a free-text address resolved against the index.
type Resolution struct {
	District string
	Street   string
	Building string
}

// Address renders the stored request address form "<street>, <building>".
func (r Resolution) Address() string {
	return fmt.Sprintf("%s, %s", r.Street, r.Building)
}

// ResolveStreet finds the canonical street for raw text within a district:
// exact table key, then prefix in either direction, then substring of a
// canonical name.
func (idx *Index) ResolveStreet(district, raw string) (string, bool) {
	di, ok := idx.districts[district]
	if !ok {
		return "", false
	}
	key := Normalize(raw)
	if key == "" {
		return "", false
	}
	if street, ok := di.table[key]; ok {
		return street, true
	}
	if street, ok := di.table[Latin(key)]; ok {
		return street, true
	}
	for _, k := range di.keys {
		if strings.HasPrefix(key, k) || strings.HasPrefix(k, key) {
			return di.table[k], true
		}
	}
	for _, street := range di.names {
		if strings.Contains(Normalize(street), key) {
			return street, true
		}
	}
	return "", false
}

// Match resolves a street and building in a district. A building that is
// known but has no active entrance is NotServiced.
func (idx *Index) Match(district, street, building string) (Resolution, error) {
	if strings.TrimSpace(street) == "" || strings.TrimSpace(building) == "" {
		return Resolution{}, apperr.Validation("street and building are required").WithOp("gazetteer.Match")
	}
	canonical, ok := idx.ResolveStreet(district, street)
	if !ok {
		return Resolution{}, apperr.NotFound(fmt.Sprintf("street %q not found in %q", street, district)).WithOp("gazetteer.Match")
	}
	di := idx.districts[district]
	var found string
	for _, b := range sortedKeys(di.streets[canonical], true) {
		if strings.EqualFold(b, strings.TrimSpace(building)) {
			found = b
			break
		}
	}
	if found == "" {
		return Resolution{}, apperr.NotFound(fmt.Sprintf("building %q not found on %q", building, canonical)).WithOp("gazetteer.Match")
	}
	if len(idx.ActiveEntrances(district, canonical, found)) == 0 {
		return Resolution{}, apperr.NotServiced(fmt.Sprintf("%s %s is not serviced", canonical, found)).WithOp("gazetteer.Match")
	}
	return Resolution{District: district, Street: canonical, Building: found}, nil
}

// MatchAny tries every district in order and returns the first resolution.
// When nothing resolves, a NotServiced outcome is preferred over NotFound.
func (idx *Index) MatchAny(street, building string) (Resolution, error) {
	var firstErr error
	for _, district := range idx.names {
		res, err := idx.Match(district, street, building)
		if err == nil {
			return res, nil
		}
		if firstErr == nil || (apperr.Is(err, apperr.KindNotServiced) && !apperr.Is(firstErr, apperr.KindNotServiced)) {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = apperr.NotFound("gazetteer is empty").WithOp("gazetteer.MatchAny")
	}
	return Resolution{}, firstErr
}

// Suggest returns the canonical street whose spelling is closest to raw, if
// any lies within a small edit distance.
func (idx *Index) Suggest(district, raw string) (string, bool) {
	di, ok := idx.districts[district]
	if !ok {
		return "", false
	}
	key := Normalize(raw)
	if key == "" {
		return "", false
	}
	best, bestDist := "", maxSuggestDistance+1
	for _, k := range di.keys {
		if d := levenshtein.ComputeDistance(key, k); d < bestDist {
			best, bestDist = di.table[k], d
		}
	}
	return best, best != ""
}
