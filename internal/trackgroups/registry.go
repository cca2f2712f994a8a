// Package trackgroups tracks the active heatmap track groups of a page. Groups are a
// projection of the heatmap_track_groups URL parameter; the only mutable state kept here is
// the profile to track-group-index table, which lives as long as the page so a profile keeps
// its vertical position across remove and re-add cycles.
package trackgroups

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/urlstate"
	"github.com/sirupsen/logrus"
)

// ErrUnknownProfile is returned when tracks are added for a profile that is not loaded or
// cannot be shown as a heatmap.
var ErrUnknownProfile = errors.New("unknown heatmap profile")

// minTrackGroupIndex is the last index used by non-heatmap tracks; heatmap groups start after it.
const minTrackGroupIndex = 1

// Group is one active heatmap track group.
type Group struct {
	TrackGroupIndex         int                            `json:"trackGroupIndex"`
	MolecularAlterationType domain.MolecularAlterationType `json:"molecularAlterationType"`
	MolecularProfileID      string                         `json:"molecularProfileId"`
	Entities                []string                       `json:"entities"`
}

// Registry resolves and mutates heatmap track groups through the URL store.
type Registry struct {
	mu       sync.Mutex
	urls     *urlstate.Store
	indices  map[string]int
	profiles map[string]domain.MolecularProfile
	logger   *logrus.Logger
}

// NewRegistry creates a registry backed by urls.
func NewRegistry(urls *urlstate.Store, logger *logrus.Logger) *Registry {
	return &Registry{
		urls:     urls,
		indices:  make(map[string]int),
		profiles: make(map[string]domain.MolecularProfile),
		logger:   logger,
	}
}

// SetProfiles records the molecular profiles of the query; groups referencing other profiles
// are ignored.
func (r *Registry) SetProfiles(profiles []domain.MolecularProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = make(map[string]domain.MolecularProfile, len(profiles))
	for _, p := range profiles {
		r.profiles[p.MolecularProfileID] = p
	}
}

// Groups projects q onto the active groups, ordered by track group index.
func (r *Registry) Groups(q urlstate.Query) []Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groupsLocked(q)
}

func (r *Registry) groupsLocked(q urlstate.Query) []Group {
	params := urlstate.ParseHeatmapTrackGroups(q.Value(urlstate.KeyHeatmapTrackGroups))
	groups := make([]Group, 0, len(params))
	for _, p := range params {
		profile, ok := r.profiles[p.MolecularProfileID]
		if !ok || !profile.MolecularAlterationType.IsHeatmapType() {
			r.logger.WithField("molecular_profile_id", p.MolecularProfileID).
				Debug("Ignoring heatmap track group for unknown profile")
			continue
		}
		groups = append(groups, Group{
			TrackGroupIndex:         r.indexForLocked(p.MolecularProfileID),
			MolecularAlterationType: profile.MolecularAlterationType,
			MolecularProfileID:      p.MolecularProfileID,
			Entities:                p.Entities,
		})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].TrackGroupIndex < groups[j].TrackGroupIndex
	})
	return groups
}

// IndexFor returns the track group index reserved for key, assigning a new one on first use.
// Heatmap groups use their profile id as key.
func (r *Registry) IndexFor(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexForLocked(key)
}

func (r *Registry) indexForLocked(key string) int {
	if idx, ok := r.indices[key]; ok {
		return idx
	}
	highest := minTrackGroupIndex
	for _, idx := range r.indices {
		if idx > highest {
			highest = idx
		}
	}
	r.indices[key] = highest + 1
	return highest + 1
}

// AddTracks replaces the entity set of the profile's group. An empty entity list deletes the
// group. The canonical encoding and the treatment projection are written back in one update.
func (r *Registry) AddTracks(molecularProfileID string, entities []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[molecularProfileID]
	if !ok || !profile.MolecularAlterationType.IsHeatmapType() {
		return fmt.Errorf("%w: %s", ErrUnknownProfile, molecularProfileID)
	}
	entities = cleanEntities(entities)

	params := urlstate.ParseHeatmapTrackGroups(r.urls.Query().Value(urlstate.KeyHeatmapTrackGroups))
	next := make([]urlstate.HeatmapGroupParam, 0, len(params)+1)
	replaced := false
	for _, p := range params {
		if p.MolecularProfileID == molecularProfileID {
			replaced = true
			if len(entities) > 0 {
				next = append(next, urlstate.HeatmapGroupParam{MolecularProfileID: molecularProfileID, Entities: entities})
			}
			continue
		}
		next = append(next, p)
	}
	if !replaced && len(entities) > 0 {
		next = append(next, urlstate.HeatmapGroupParam{MolecularProfileID: molecularProfileID, Entities: entities})
	}
	if len(entities) > 0 {
		r.indexForLocked(molecularProfileID)
	}

	r.logger.WithFields(logrus.Fields{
		"molecular_profile_id": molecularProfileID,
		"entities":             len(entities),
	}).Info("Updating heatmap track group")

	r.writeLocked(next)
	return nil
}

// RemoveTrack removes one entity from the profile's group and reports whether the group was
// deleted as a result.
func (r *Registry) RemoveTrack(molecularProfileID, entity string) (bool, error) {
	r.mu.Lock()
	params := urlstate.ParseHeatmapTrackGroups(r.urls.Query().Value(urlstate.KeyHeatmapTrackGroups))
	var remaining []string
	found := false
	for _, p := range params {
		if p.MolecularProfileID != molecularProfileID {
			continue
		}
		found = true
		for _, e := range p.Entities {
			if e != entity {
				remaining = append(remaining, e)
			}
		}
	}
	r.mu.Unlock()

	if !found {
		return false, nil
	}
	if err := r.AddTracks(molecularProfileID, remaining); err != nil {
		return false, err
	}
	return len(remaining) == 0, nil
}

// Clear removes every heatmap track group.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(nil)
}

// IndexOf returns the index of the profile's group when the group is active in q.
func (r *Registry) IndexOf(q urlstate.Query, molecularProfileID string) (int, bool) {
	for _, g := range r.Groups(q) {
		if g.MolecularProfileID == molecularProfileID {
			return g.TrackGroupIndex, true
		}
	}
	return 0, false
}

func (r *Registry) writeLocked(params []urlstate.HeatmapGroupParam) {
	set := make(map[string]string)
	var unset []string

	if encoded := urlstate.EncodeHeatmapTrackGroups(params); encoded != "" {
		set[urlstate.KeyHeatmapTrackGroups] = encoded
	} else {
		unset = append(unset, urlstate.KeyHeatmapTrackGroups)
	}

	if treatments := r.treatmentsLocked(params); len(treatments) > 0 {
		set[urlstate.KeyTreatmentList] = strings.Join(treatments, ";")
	} else {
		unset = append(unset, urlstate.KeyTreatmentList)
	}

	r.urls.UpdateRoute(set, unset...)
}

// treatmentsLocked projects the entities of generic assay groups onto the treatment list.
func (r *Registry) treatmentsLocked(params []urlstate.HeatmapGroupParam) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range params {
		profile, ok := r.profiles[p.MolecularProfileID]
		if !ok || profile.MolecularAlterationType != domain.GenericAssay {
			continue
		}
		for _, e := range p.Entities {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

func cleanEntities(entities []string) []string {
	seen := make(map[string]bool, len(entities))
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
