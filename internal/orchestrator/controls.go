package orchestrator

import (
	"fmt"
	"strings"

	"github.com/oncoprint-server/internal/annotation"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/store"
	"github.com/oncoprint-server/internal/urlstate"
	"github.com/sirupsen/logrus"
)

// zoomStep is the factor applied by one zoom in or zoom out click.
const zoomStep = 0.7

func boolParam(on bool) string {
	if on {
		return "true"
	}
	return "false"
}

// SetColumnMode switches between sample and patient columns.
func (o *Oncoprint) SetColumnMode(mode domain.ColumnMode) error {
	switch mode {
	case domain.ColumnModeSample, domain.ColumnModePatient:
	default:
		return domain.NewValidationError("columnMode", "must be sample or patient", mode)
	}
	o.urls.UpdateRoute(map[string]string{urlstate.KeyShowSamples: boolParam(mode == domain.ColumnModeSample)})
	return nil
}

func (o *Oncoprint) SetShowUnaltered(on bool) {
	o.updateControls(func(c *controls) { c.showUnaltered = on })
}

func (o *Oncoprint) SetShowWhitespace(on bool) {
	o.updateControls(func(c *controls) { c.showWhitespace = on })
}

func (o *Oncoprint) SetShowClinicalTrackLegends(on bool) {
	o.updateControls(func(c *controls) { c.showClinicalTrackLegends = on })
}

func (o *Oncoprint) SetShowMinimap(on bool) {
	o.updateControls(func(c *controls) { c.showMinimap = on })
}

// SortByData clears the sort selector and any clustered profile.
func (o *Oncoprint) SortByData() {
	o.urls.UpdateRoute(nil, urlstate.KeySortBy, urlstate.KeyClusterProfile)
}

func (o *Oncoprint) SortAlphabetically() {
	o.urls.UpdateRoute(map[string]string{urlstate.KeySortBy: sortByCaseID}, urlstate.KeyClusterProfile)
}

func (o *Oncoprint) SortByCaseList() {
	o.urls.UpdateRoute(map[string]string{urlstate.KeySortBy: sortByCaseList}, urlstate.KeyClusterProfile)
}

func (o *Oncoprint) SetSortByMutationType(on bool) {
	o.urls.UpdateRoute(map[string]string{urlstate.KeySortByMutationType: boolParam(on)})
}

func (o *Oncoprint) SetSortByDrivers(on bool) {
	o.urls.UpdateRoute(map[string]string{urlstate.KeySortByDrivers: boolParam(on)})
}

// SetDistinguishMutationType selects coloured or single-colour mutation glyphs.
func (o *Oncoprint) SetDistinguishMutationType(on bool) {
	o.settings.SetDistinguishMutationType(on)
	o.invalidate()
}

// SetDistinguishDrivers is the umbrella driver annotation switch.
func (o *Oncoprint) SetDistinguishDrivers(on bool) {
	o.settings.SetDistinguishDrivers(on)
	o.invalidate()
}

// SetAnnotationSource toggles one driver annotation source. Enabling an errored or globally
// disabled source is refused and reported as false.
func (o *Oncoprint) SetAnnotationSource(source annotation.Source, on bool) (bool, error) {
	var ok bool
	switch source {
	case annotation.SourceOncoKB:
		ok = o.settings.SetOncoKB(on)
	case annotation.SourceHotspots:
		ok = o.settings.SetHotspots(on)
	case annotation.SourceCBioPortalCount:
		ok = o.settings.SetCBioPortalCount(on)
	case annotation.SourceCOSMICCount:
		ok = o.settings.SetCOSMICCount(on)
	case annotation.SourceCustomBinary:
		ok = o.settings.SetCustomBinary(on)
	default:
		return false, domain.NewValidationError("source", "unknown annotation source", source)
	}
	if ok {
		o.invalidate()
	}
	return ok, nil
}

// SetCountThreshold changes the cBioPortal or COSMIC recurrence threshold.
func (o *Oncoprint) SetCountThreshold(source annotation.Source, threshold int) (bool, error) {
	if threshold < 0 {
		return false, domain.NewValidationError("threshold", "must not be negative", threshold)
	}
	var ok bool
	switch source {
	case annotation.SourceCBioPortalCount:
		ok = o.settings.SetCBioPortalCountThreshold(threshold)
	case annotation.SourceCOSMICCount:
		ok = o.settings.SetCOSMICCountThreshold(threshold)
	default:
		return false, domain.NewValidationError("source", "source has no count threshold", source)
	}
	o.invalidate()
	return ok, nil
}

// SetDriverTier selects or deselects one custom driver tier.
func (o *Oncoprint) SetDriverTier(tier string, on bool) {
	o.settings.SetTier(tier, on)
	o.invalidate()
}

// SetHideVUS hides mutations of unknown significance.
func (o *Oncoprint) SetHideVUS(on bool) {
	o.settings.SetHideVUS(on)
	o.invalidate()
}

// SelectHeatmapProfile picks the profile the heatmap controls act on.
func (o *Oncoprint) SelectHeatmapProfile(molecularProfileID string) {
	o.updateControls(func(c *controls) { c.selectedHeatmapProfile = molecularProfileID })
}

// SetHeatmapGeneInput keeps the text of the heatmap gene box. Once set, the box no longer
// follows the queried genes.
func (o *Oncoprint) SetHeatmapGeneInput(value string) {
	o.updateControls(func(c *controls) {
		c.heatmapGeneInput = value
		c.heatmapGeneInputEdited = true
	})
}

// heatmapGeneInput is the text of the gene box: what was typed, or the queried genes.
func heatmapGeneInput(c controls, snap store.Snapshot) string {
	if c.heatmapGeneInputEdited {
		return c.heatmapGeneInput
	}
	genes := snap.Genes.ValueOr(nil)
	symbols := make([]string, len(genes))
	for i, g := range genes {
		symbols[i] = g.HugoGeneSymbol
	}
	return strings.Join(symbols, " ")
}

// parseGeneInput splits the gene box into upper-cased symbols.
func parseGeneInput(value string) []string {
	return strings.Fields(strings.ToUpper(strings.ReplaceAll(value, ",", " ")))
}

// AddHeatmapTracks replaces the entities shown for a heatmap profile. An empty profile id
// uses the selected heatmap profile, and no entities uses the gene box. An empty entity list
// is rejected; rows are removed with RemoveHeatmapTrack or ClearHeatmap.
func (o *Oncoprint) AddHeatmapTracks(molecularProfileID string, entities []string) error {
	if molecularProfileID == "" {
		molecularProfileID = o.selectedHeatmapProfile()
	}
	if entities == nil {
		entities = parseGeneInput(heatmapGeneInput(o.controlsSnapshot(), o.store.Snapshot()))
	}
	kept := entities[:0:0]
	for _, e := range entities {
		if e = strings.TrimSpace(e); e != "" {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return domain.NewValidationError("entities", "at least one gene or entity is required", molecularProfileID)
	}
	if err := o.registry.AddTracks(molecularProfileID, kept); err != nil {
		return fmt.Errorf("add heatmap tracks: %w", err)
	}
	o.resetSortIfUnclustered()
	return nil
}

// selectedHeatmapProfile is the chosen heatmap profile, or the first one offered.
func (o *Oncoprint) selectedHeatmapProfile() string {
	if id := o.controlsSnapshot().selectedHeatmapProfile; id != "" {
		return id
	}
	if v := o.View(); v != nil {
		return v.Controls.SelectedHeatmapProfile
	}
	return ""
}

// RemoveHeatmapTrack removes one row. Removing the last row of the clustered profile resets
// the sort to data.
func (o *Oncoprint) RemoveHeatmapTrack(molecularProfileID, entity string) error {
	if _, err := o.registry.RemoveTrack(molecularProfileID, entity); err != nil {
		return fmt.Errorf("remove heatmap track: %w", err)
	}
	o.resetSortIfUnclustered()
	return nil
}

// ClearHeatmap removes every heatmap track group.
func (o *Oncoprint) ClearHeatmap() {
	o.registry.Clear()
	o.resetSortIfUnclustered()
}

// resetSortIfUnclustered leaves heatmap clustering when the clustered group is gone.
func (o *Oncoprint) resetSortIfUnclustered() {
	q := o.urls.Query()
	mode := SortModeOf(q)
	if mode.Type != domain.SortByHeatmapCluster || o.clusterTargetActive(q, mode.ClusteredHeatmapProfile) {
		return
	}
	o.logger.WithField("molecular_profile_id", mode.ClusteredHeatmapProfile).Info("Clustered heatmap removed, sorting by data")
	o.SortByData()
}

// ClusterHeatmap sorts columns by clustering the rows of a heatmap profile, or of the
// selected heatmap profile when none is given. It reports false and leaves the sort mode
// unchanged when the profile has no active track group.
func (o *Oncoprint) ClusterHeatmap(molecularProfileID string) bool {
	if molecularProfileID == "" {
		molecularProfileID = o.selectedHeatmapProfile()
	}
	q := o.urls.Query()
	if molecularProfileID == "" || !o.clusterTargetActive(q, molecularProfileID) {
		o.logger.WithField("molecular_profile_id", molecularProfileID).Debug("Ignoring cluster request for inactive heatmap profile")
		return false
	}
	o.urls.UpdateRoute(map[string]string{
		urlstate.KeySortBy:         sortByCluster,
		urlstate.KeyClusterProfile: molecularProfileID,
	})
	return true
}

func (o *Oncoprint) clusterTargetActive(q urlstate.Query, molecularProfileID string) bool {
	if _, ok := o.registry.IndexOf(q, molecularProfileID); ok {
		return true
	}
	snap := o.store.Snapshot()
	geneset, ok := genesetProfile(snap.MolecularProfiles.ValueOr(nil))
	return ok && geneset.MolecularProfileID == molecularProfileID && len(snap.Request.GenesetIDs) > 0
}

// SelectClinicalTrack appends a clinical attribute to the selected tracks. The first change
// writes out the inferred defaults, so the list is explicit from then on.
func (o *Oncoprint) SelectClinicalTrack(attributeID string) error {
	return o.editClinicalList(attributeID, func(ids []string) []string {
		for _, id := range ids {
			if id == attributeID {
				return ids
			}
		}
		return append(ids, attributeID)
	})
}

// DeleteClinicalTrack removes a clinical attribute from the selected tracks. Deleting the
// last one leaves an explicit empty list, which keeps the defaults away.
func (o *Oncoprint) DeleteClinicalTrack(attributeID string) error {
	return o.editClinicalList(attributeID, func(ids []string) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != attributeID {
				out = append(out, id)
			}
		}
		return out
	})
}

func (o *Oncoprint) editClinicalList(attributeID string, edit func([]string) []string) error {
	attributeID = strings.TrimSpace(attributeID)
	if attributeID == "" {
		return domain.NewValidationError("attributeId", "is required", nil)
	}
	selected := SelectedClinicalAttributeIDs(o.urls.Query(), o.store.Snapshot())
	current, ok := selected.Value()
	if !ok {
		return fmt.Errorf("clinical tracks: %w", domain.ErrNotReady)
	}
	ids := edit(append([]string(nil), current...))
	o.urls.UpdateRoute(map[string]string{urlstate.KeyClinicalList: strings.Join(ids, ",")})
	o.logger.WithFields(logrus.Fields{
		"attribute_id": attributeID,
		"selected":     len(ids),
	}).Debug("Clinical tracks changed")
	return nil
}

func (o *Oncoprint) ZoomIn() float64 {
	return o.SetHorzZoom(o.engine.HorzZoom() / zoomStep)
}

func (o *Oncoprint) ZoomOut() float64 {
	return o.SetHorzZoom(o.engine.HorzZoom() * zoomStep)
}

// SetHorzZoom sets the engine's horizontal zoom and returns the zoom it settled on.
func (o *Oncoprint) SetHorzZoom(z float64) float64 {
	o.engine.SetHorzZoom(z)
	o.updateControls(func(c *controls) { c.zoomFitted = true })
	return o.engine.HorzZoom()
}

// SetTrackSortDirection sorts columns by a clinical track.
func (o *Oncoprint) SetTrackSortDirection(trackKey string, direction int) error {
	if direction < -1 || direction > 1 {
		return domain.NewValidationError("direction", "must be -1, 0 or 1", direction)
	}
	o.engine.SetTrackSortDirection(trackKey, direction)
	o.invalidate()
	return nil
}

// onSortDirectionChange leaves the explicit sort modes once a track is sorted.
func (o *Oncoprint) onSortDirectionChange(trackKey string, direction int) {
	if direction == 0 {
		return
	}
	o.logger.WithFields(logrus.Fields{
		"track":     trackKey,
		"direction": direction,
	}).Debug("Track sort direction changed, sorting by data")
	o.SortByData()
}
