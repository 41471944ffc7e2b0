package gazetteer

import (
	"strings"
	"unicode/utf8"

	"github.com/liftcare/field-bot/internal/models"
)

// Index is an immutable gazetteer snapshot. It is never mutated after Build;
// toggles and reloads produce a new Index.
type Index struct {
	points    []models.AddressPoint
	districts map[string]*districtIndex
	names     []string
	aliases   map[string]string
}

type districtIndex struct {
	// street -> building -> positions in Index.points
	streets map[string]map[string][]int
	names   []string
	table   map[string]string
	keys    []string
}

// Build constructs a snapshot from a document and the alternate-spelling
// table. Points are stored in district, street, building, entrance order.
func Build(doc Document, aliases map[string]string) *Index {
	idx := &Index{
		districts: make(map[string]*districtIndex, len(doc)),
		aliases:   aliases,
	}
	for _, district := range sortedKeys(doc, false) {
		streets := doc[district]
		di := &districtIndex{streets: make(map[string]map[string][]int, len(streets))}
		for _, street := range sortedKeys(streets, false) {
			buildings := streets[street]
			di.streets[street] = make(map[string][]int, len(buildings))
			for _, building := range sortedKeys(buildings, true) {
				entrances := buildings[building]
				for _, entrance := range sortedKeys(entrances, true) {
					p := entrances[entrance]
					di.streets[street][building] = append(di.streets[street][building], len(idx.points))
					idx.points = append(idx.points, models.AddressPoint{
						District: district,
						Street:   street,
						Building: building,
						Entrance: entrance,
						Lat:      p.Lat,
						Lon:      p.Lon,
						Radius:   p.Radius,
						Active:   p.Active,
					})
				}
			}
			di.names = append(di.names, street)
		}
		di.table = buildTable(di.names, aliases)
		di.keys = sortedKeys(di.table, false)
		idx.districts[district] = di
		idx.names = append(idx.names, district)
	}
	return idx
}

// buildTable maps every spelling a resident is likely to type to its canonical
// street. Full names and aliases win over partial keys on collision.
func buildTable(streets []string, aliases map[string]string) map[string]string {
	known := make(map[string]bool, len(streets))
	for _, s := range streets {
		known[s] = true
	}
	table := make(map[string]string)
	put := func(key, street string) {
		if key == "" {
			return
		}
		if _, ok := table[key]; !ok {
			table[key] = street
		}
		if latin := Latin(key); latin != "" {
			if _, ok := table[latin]; !ok {
				table[latin] = street
			}
		}
	}

	for _, street := range streets {
		put(Normalize(street), street)
	}
	for _, alt := range sortedKeys(aliases, false) {
		if canonical := aliases[alt]; known[canonical] {
			put(Normalize(alt), canonical)
		}
	}
	for _, street := range streets {
		words := strings.Fields(Normalize(street))
		for i, w := range words {
			put(w, street)
			if utf8.RuneCountInString(w) > 3 {
				r := []rune(w)
				put(string(r[:3]), street)
				put(string(r[1:4]), street)
			}
			if i > 0 {
				put(strings.Join(words[:i+1], " "), street)
			}
		}
	}
	return table
}

// Districts lists district names in sorted order.
func (idx *Index) Districts() []string {
	return append([]string(nil), idx.names...)
}

// Streets lists the canonical streets of a district.
func (idx *Index) Streets(district string) []string {
	di, ok := idx.districts[district]
	if !ok {
		return nil
	}
	return append([]string(nil), di.names...)
}

// Points returns a copy of every point in snapshot order.
func (idx *Index) Points() []models.AddressPoint {
	return append([]models.AddressPoint(nil), idx.points...)
}

func (idx *Index) Len() int { return len(idx.points) }

func (idx *Index) building(district, street, building string) []int {
	di, ok := idx.districts[district]
	if !ok {
		return nil
	}
	return di.streets[street][building]
}

// Entrance returns the point for an exact entrance identity.
func (idx *Index) Entrance(district, street, building, entrance string) (models.AddressPoint, bool) {
	for _, i := range idx.building(district, street, building) {
		if idx.points[i].Entrance == entrance {
			return idx.points[i], true
		}
	}
	return models.AddressPoint{}, false
}

// ActiveEntrances lists the active entrances of a building in natural order.
func (idx *Index) ActiveEntrances(district, street, building string) []string {
	var out []string
	for _, i := range idx.building(district, street, building) {
		if idx.points[i].Active {
			out = append(out, idx.points[i].Entrance)
		}
	}
	return out
}

// Document renders the snapshot back into its file layout.
func (idx *Index) Document() Document {
	doc := make(Document, len(idx.districts))
	for _, p := range idx.points {
		streets, ok := doc[p.District]
		if !ok {
			streets = map[string]map[string]map[string]Point{}
			doc[p.District] = streets
		}
		buildings, ok := streets[p.Street]
		if !ok {
			buildings = map[string]map[string]Point{}
			streets[p.Street] = buildings
		}
		entrances, ok := buildings[p.Building]
		if !ok {
			entrances = map[string]Point{}
			buildings[p.Building] = entrances
		}
		entrances[p.Entrance] = Point{Lat: p.Lat, Lon: p.Lon, Radius: p.Radius, Active: p.Active}
	}
	return doc
}
