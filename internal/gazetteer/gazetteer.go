// Package gazetteer holds the serviced-address index: an immutable snapshot
// of district -> street -> building -> entrance points, swapped atomically on
// reload or admin toggle, with geofence and free-text lookups on top.
package gazetteer

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
)

// Gazetteer owns the current snapshot and its backing document.
type Gazetteer struct {
	path        string
	aliasesPath string
	logger      *zap.Logger

	mu      sync.Mutex // serializes writers; readers go through current
	current atomic.Pointer[Index]
}

// Open loads the document and alias table and publishes the first snapshot.
func Open(path, aliasesPath string, logger *zap.Logger) (*Gazetteer, error) {
	g := &Gazetteer{path: path, aliasesPath: aliasesPath, logger: logger.Named("gazetteer")}
	if err := g.Reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// NewStatic publishes a fixed snapshot with no backing document.
func NewStatic(idx *Index) *Gazetteer {
	g := &Gazetteer{logger: zap.NewNop()}
	g.current.Store(idx)
	return g
}

// Snapshot returns the current index. Callers keep using the returned value
// for the whole operation even if a reload swaps it meanwhile.
func (g *Gazetteer) Snapshot() *Index {
	return g.current.Load()
}

// Reload rebuilds the snapshot from disk.
func (g *Gazetteer) Reload() error {
	if g.path == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	doc, err := LoadDocument(g.path)
	if err != nil {
		return err
	}
	aliases, err := LoadAliases(g.aliasesPath)
	if err != nil {
		return err
	}
	idx := Build(doc, aliases)
	g.current.Store(idx)
	g.logger.Info("gazetteer loaded",
		zap.Int("districts", len(idx.names)),
		zap.Int("points", idx.Len()),
		zap.Int("aliases", len(aliases)),
	)
	return nil
}

// Target is an admin toggle argument: "<street> <building>[_<entrance>]".
type Target struct {
	Street   string
	Building string
	Entrance string // empty means every entrance of the building
}

// ParseTarget splits admin command arguments into a Target.
func ParseTarget(args string) (Target, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return Target{}, apperr.Validation("expected <street> <building>[_<entrance>]")
	}
	last := fields[len(fields)-1]
	t := Target{Street: strings.Join(fields[:len(fields)-1], " "), Building: last}
	if building, entrance, ok := strings.Cut(last, "_"); ok {
		if building == "" || entrance == "" {
			return Target{}, apperr.Validation("expected <building>_<entrance>")
		}
		t.Building, t.Entrance = building, entrance
	}
	return t, nil
}

// SetActive enables or disables the points matching t across all districts,
// publishes the new snapshot and writes it back to the document. It returns
// the number of points touched.
func (g *Gazetteer) SetActive(t Target, active bool) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.current.Load()
	doc := cur.Document()
	touched := 0
	for _, district := range cur.names {
		street, ok := cur.ResolveStreet(district, t.Street)
		if !ok {
			continue
		}
		for building, entrances := range doc[district][street] {
			if !strings.EqualFold(building, t.Building) {
				continue
			}
			for entrance, p := range entrances {
				if t.Entrance != "" && entrance != t.Entrance {
					continue
				}
				p.Active = active
				entrances[entrance] = p
				touched++
			}
		}
	}
	if touched == 0 {
		return 0, apperr.NotFound(fmt.Sprintf("no points for %s %s", t.Street, t.Building)).WithOp("gazetteer.SetActive")
	}

	next := Build(doc, cur.aliases)
	g.current.Store(next)
	if g.path != "" {
		if err := SaveDocument(g.path, doc); err != nil {
			g.logger.Error("gazetteer write-back failed", zap.Error(err))
			return touched, apperr.Wrap(apperr.KindPersistence, "save gazetteer", err)
		}
	}
	g.logger.Info("gazetteer toggled",
		zap.String("street", t.Street),
		zap.String("building", t.Building),
		zap.String("entrance", t.Entrance),
		zap.Bool("active", active),
		zap.Int("points", touched),
	)
	return touched, nil
}
