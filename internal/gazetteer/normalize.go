package gazetteer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// streetTypeTokens are dropped from street text before any comparison.
var streetTypeTokens = map[string]bool{
	"вулиця":   true,
	"вул":      true,
	"проспект": true,
	"просп":    true,
	"пр":       true,
	"площа":    true,
	"пл":       true,
	"провулок": true,
	"пров":     true,
	"пер":      true,
	"бульвар":  true,
	"бул":      true,
	"узвіз":    true,
	"ул":       true,
	"улица":    true,
	"street":   true,
	"st":       true,
	"avenue":   true,
	"ave":      true,
}

var punctuation = strings.NewReplacer(
	",", " ",
	".", " ",
	";", " ",
	"’", "'",
	"ʼ", "'",
	"`", "'",
)

// Normalize lowercases s, drops street-type tokens and collapses whitespace.
// The result is the comparison form shared by the fuzzy matcher and the
// schedule checker.
func Normalize(s string) string {
	fields := strings.Fields(punctuation.Replace(strings.ToLower(s)))
	kept := fields[:0]
	for _, f := range fields {
		if streetTypeTokens[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Latin folds a normalized key to ASCII.
func Latin(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

// naturalLess orders numeric labels numerically and everything else lexically,
// so entrances list as 1, 2, 10 and buildings as 9, 10, 10а.
func naturalLess(a, b string) bool {
	na, errA := strconv.Atoi(leadingDigits(a))
	nb, errB := strconv.Atoi(leadingDigits(b))
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	return a < b
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

func sortedKeys[V any](m map[string]V, natural bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if natural {
		sort.Slice(keys, func(i, j int) bool { return naturalLess(keys[i], keys[j]) })
	} else {
		sort.Strings(keys)
	}
	return keys
}
