package resolver

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/modhost/errors"
	"github.com/wippyai/modhost/manifest"
	"github.com/wippyai/modhost/mod"
)

// ApplyLoadOrderOverrides moves the listed mod IDs to the start (early) or
// end (late) of the list. Early mods keep their list order; late mods are
// placed so the first listed ID loads last. Other mods keep their relative
// order.
func ApplyLoadOrderOverrides(records []*mod.Record, early, late []string) []*mod.Record {
	if len(early) == 0 && len(late) == 0 {
		return records
	}
	index := func(list []string, id string) int {
		for i, v := range list {
			if strings.EqualFold(strings.TrimSpace(v), id) {
				return i
			}
		}
		return -1
	}
	rank := func(rec *mod.Record) int {
		id := rec.ID()
		if id == "" {
			return 0
		}
		if i := index(early, id); i >= 0 {
			return -len(early) + i
		}
		if i := index(late, id); i >= 0 {
			return len(late) - i
		}
		return 0
	}

	out := make([]*mod.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) < rank(out[j])
	})
	return out
}

// dependency is one resolved edge of a mod.
type dependency struct {
	minVersion *manifest.Version
	mod        *mod.Record
	id         string
	required   bool
}

// ProcessDependencies returns every record exactly once, each after the
// dependencies it needs. Records that cannot be sorted are marked failed and
// still included. The only error is *errors.Fatal, raised when the sorting
// contract itself is broken.
func (r *Resolver) ProcessDependencies(records []*mod.Record) ([]*mod.Record, error) {
	s := &sorter{db: r, records: records, cycles: make(map[*mod.Record]string)}

	for _, rec := range records {
		if rec.Failed() {
			if err := rec.SetDependencyState(mod.DependencyFailed); err != nil {
				return nil, errors.Internal(errors.PhaseResolve, "%v", err)
			}
			s.sorted = append(s.sorted, rec)
		}
	}
	for _, rec := range records {
		if _, err := s.process(rec, nil); err != nil {
			return nil, err
		}
	}

	return s.sorted, nil
}

type sorter struct {
	db      *Resolver
	records []*mod.Record
	// sorted holds records in the order they were pushed, which is load order.
	sorted []*mod.Record
	// cycles holds the loop message for mods found on a dependency loop, so
	// every member reports the loop rather than the member that detected it.
	cycles map[*mod.Record]string
}

func (s *sorter) finish(rec *mod.Record, state mod.DependencyState) (mod.DependencyState, error) {
	s.sorted = append(s.sorted, rec)
	if err := rec.SetDependencyState(state); err != nil {
		return state, errors.Internal(errors.PhaseResolve, "%v", err)
	}
	if state == mod.DependencyFailed {
		Logger().Debug("mod failed dependency check", zap.String("mod", rec.DisplayName), zap.String("reason", rec.Error))
	}
	return state, nil
}

func (s *sorter) process(rec *mod.Record, chain []*mod.Record) (mod.DependencyState, error) {
	switch st := rec.DependencyState(); st {
	case mod.DependencySorted, mod.DependencyFailed:
		return st, nil
	case mod.DependencyChecking:
		// callers detect loops before recursing, so reaching this means that check was bypassed
		return st, errors.Internal(errors.PhaseResolve,
			"a dependency loop was not caught by the calling iteration (%s => %s)", chainNames(chain), rec.DisplayName)
	case mod.DependencyQueued:
	default:
		return st, errors.Internal(errors.PhaseResolve, "unknown dependency status '%v'", st)
	}

	deps := s.dependenciesOf(rec)
	if len(deps) == 0 {
		return s.finish(rec, mod.DependencySorted)
	}

	if missing := s.missingNames(deps); len(missing) > 0 {
		rec.Fail(mod.FailMissingDependencies, fmt.Sprintf("it requires mods which aren't installed (%s).", strings.Join(missing, ", ")))
		return s.finish(rec, mod.DependencyFailed)
	}

	var outdated []string
	for _, d := range deps {
		if d.mod == nil || d.minVersion == nil {
			continue
		}
		have := d.mod.Manifest.Version
		if have == nil || d.minVersion.IsNewerThan(have) {
			outdated = append(outdated, fmt.Sprintf("%s (needs %s or later)", d.mod.DisplayName, d.minVersion))
		}
	}
	if len(outdated) > 0 {
		rec.Fail(mod.FailMissingDependencies, fmt.Sprintf("it needs newer versions of some mods: %s.", strings.Join(outdated, ", ")))
		return s.finish(rec, mod.DependencyFailed)
	}

	if err := rec.SetDependencyState(mod.DependencyChecking); err != nil {
		return mod.DependencyQueued, errors.Internal(errors.PhaseResolve, "%v", err)
	}
	subchain := append(append([]*mod.Record{}, chain...), rec)
	for _, d := range deps {
		if d.mod == nil {
			continue
		}
		if d.mod.DependencyState() == mod.DependencyChecking {
			msg := fmt.Sprintf("its dependencies have a circular reference: %s => %s.", chainNames(subchain), d.mod.DisplayName)
			for i := len(subchain) - 1; i >= 0; i-- {
				s.cycles[subchain[i]] = msg
				if subchain[i] == d.mod {
					break
				}
			}
			rec.Fail(mod.FailMissingDependencies, msg)
			return s.finish(rec, mod.DependencyFailed)
		}

		sub, err := s.process(d.mod, subchain)
		if err != nil {
			return sub, err
		}
		switch {
		case sub == mod.DependencySorted, sub == mod.DependencyFailed && !d.required:
		case sub == mod.DependencyFailed:
			if msg, ok := s.cycles[rec]; ok {
				rec.Fail(mod.FailMissingDependencies, msg)
			} else {
				rec.Fail(mod.FailMissingDependencies, fmt.Sprintf("it needs the '%s' mod, which couldn't be loaded.", d.mod.DisplayName))
			}
			return s.finish(rec, mod.DependencyFailed)
		default:
			return sub, errors.Internal(errors.PhaseResolve,
				"something went wrong sorting dependencies: mod '%s' unexpectedly stayed in the '%v' status", d.mod.DisplayName, sub)
		}
	}
	return s.finish(rec, mod.DependencySorted)
}

func (s *sorter) dependenciesOf(rec *mod.Record) []dependency {
	m := rec.Manifest
	if m == nil {
		return nil
	}
	var deps []dependency
	for _, d := range m.Dependencies {
		deps = append(deps, dependency{id: d.UniqueID, minVersion: d.MinimumVersion, required: d.IsRequired, mod: s.find(d.UniqueID)})
	}
	if cp := m.ContentPackFor; cp != nil {
		deps = append(deps, dependency{id: cp.UniqueID, minVersion: cp.MinimumVersion, required: true, mod: s.find(cp.UniqueID)})
	}
	return deps
}

func (s *sorter) find(id string) *mod.Record {
	for _, rec := range s.records {
		if rec.HasID(id) {
			return rec
		}
	}
	return nil
}

// missingNames lists required dependencies that aren't installed, using the
// compatibility list's display name and mod page when known.
func (s *sorter) missingNames(deps []dependency) []string {
	type entry struct{ name, label string }
	var out []entry
	for _, d := range deps {
		if !d.required || d.mod != nil {
			continue
		}
		name := d.id
		if rec := s.db.DB.Get(d.id); rec != nil && rec.DisplayName != "" {
			name = rec.DisplayName
		}
		label := name
		if url := s.db.DB.PageURL(d.id); url != "" {
			label = name + ": " + url
		}
		out = append(out, entry{name, label})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	labels := make([]string, len(out))
	for i, e := range out {
		labels[i] = e.label
	}
	return labels
}

func chainNames(chain []*mod.Record) string {
	names := make([]string, len(chain))
	for i, rec := range chain {
		names[i] = rec.DisplayName
	}
	return strings.Join(names, " => ")
}
