package orchestrator

import (
	"context"
	"fmt"

	"github.com/oncoprint-server/internal/annotation"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/oncoprint"
	"github.com/oncoprint-server/internal/remote"
	"github.com/oncoprint-server/internal/store"
	"github.com/oncoprint-server/internal/trackgroups"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxTrackFetches bounds the concurrent on-demand fetches of one track collection.
const maxTrackFetches = 4

// driverPredicate returns nil when drivers are not distinguished.
func driverPredicate(settings annotation.Snapshot, ann domain.MutationAnnotations) oncoprint.DriverPredicate {
	if !settings.DistinguishDrivers() {
		return nil
	}
	return func(m domain.MutationEvent) bool {
		return settings.IsPutativeDriver(m, ann)
	}
}

// annotationDeps lists the lookups of the enabled annotation sources.
func annotationDeps(snap store.Snapshot, settings annotation.Snapshot) []remote.Awaitable {
	var deps []remote.Awaitable
	if settings.OncoKB {
		deps = append(deps, snap.OncoKB)
	}
	if settings.Hotspots {
		deps = append(deps, snap.Hotspots)
	}
	if settings.CBioPortalCount {
		deps = append(deps, snap.CBioPortalCounts)
	}
	if settings.COSMICCount {
		deps = append(deps, snap.COSMICCounts)
	}
	return deps
}

// geneticTracks builds one track per OQL line. It waits on the aggregated alteration data,
// the coverage index and the lookups of every enabled annotation source.
func geneticTracks(
	mode domain.ColumnMode,
	cases remote.Result[[]domain.CaseRef],
	snap store.Snapshot,
	settings annotation.Snapshot,
	isDriver oncoprint.DriverPredicate,
) remote.Result[[]domain.GeneticTrackSpec] {
	deps := []remote.Awaitable{cases, snap.CaseAggregatedData, snap.Coverage}
	deps = append(deps, annotationDeps(snap, settings)...)

	return remote.Derive(deps, func() ([]domain.GeneticTrackSpec, error) {
		refs := cases.MustValue()
		coverage := snap.Coverage.MustValue().ForMode(mode)
		lines := snap.CaseAggregatedData.MustValue()

		tracks := make([]domain.GeneticTrackSpec, 0, len(lines))
		for i, line := range lines {
			caseData := line.ForMode(mode)
			if settings.HideVUS && isDriver != nil {
				kept := make(map[string][]domain.AlterationEvent, len(caseData))
				for uid, events := range caseData {
					if events = oncoprint.HidePassengers(events, isDriver); len(events) > 0 {
						kept[uid] = events
					}
				}
				caseData = kept
			}
			data := oncoprint.MakeGeneticTrackData(caseData, line.Gene, refs, coverage, isDriver)
			tracks = append(tracks, domain.GeneticTrackSpec{
				Key:   fmt.Sprintf("GENETICTRACK_%d", i),
				Label: line.Gene,
				OQL:   line.OQLLine,
				Info:  trackInfo(data),
				Data:  data,
			})
		}
		return tracks, nil
	})
}

// clinicalCatalog lists the attributes that can be shown as clinical tracks.
func clinicalCatalog(snap store.Snapshot) remote.Result[[]domain.ClinicalAttribute] {
	deps := []remote.Awaitable{snap.SelectedProfiles, snap.ClinicalAttributes}
	return remote.Derive(deps, func() ([]domain.ClinicalAttribute, error) {
		local := oncoprint.LocalClinicalAttributes(snap.SelectedProfiles.MustValue())
		return oncoprint.ClinicalAttributeCatalog(local, snap.ClinicalAttributes.MustValue()), nil
	})
}

// clinicalTracks builds one track per selected attribute in selection order. Unknown ids are
// skipped; an attribute whose data cannot be fetched is left out and logged.
func (o *Oncoprint) clinicalTracks(
	ctx context.Context,
	mode domain.ColumnMode,
	cases remote.Result[[]domain.CaseRef],
	selected remote.Result[[]string],
	catalog remote.Result[[]domain.ClinicalAttribute],
	snap store.Snapshot,
) remote.Result[[]domain.ClinicalTrackSpec] {
	deps := []remote.Awaitable{cases, selected, catalog, snap.Samples}
	if ids, ok := selected.Value(); ok && needsCoverage(ids) {
		deps = append(deps, snap.Coverage)
	}

	return remote.Derive(deps, func() ([]domain.ClinicalTrackSpec, error) {
		byID := make(map[string]domain.ClinicalAttribute)
		for _, attr := range catalog.MustValue() {
			byID[attr.ClinicalAttributeID] = attr
		}
		var attrs []domain.ClinicalAttribute
		for _, id := range selected.MustValue() {
			attr, ok := byID[id]
			if !ok {
				o.logger.WithField("clinical_attribute_id", id).Debug("Ignoring unknown clinical attribute")
				continue
			}
			attrs = append(attrs, attr)
		}

		samples := snap.Samples.MustValue()
		coverage := snap.Coverage.ValueOr(domain.CoverageInformation{})
		rows := make([][]domain.ClinicalDatum, len(attrs))
		fetched := make([]bool, len(attrs))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxTrackFetches)
		for i, attr := range attrs {
			if oncoprint.IsLocalClinicalAttribute(attr.ClinicalAttributeID) {
				rows[i] = oncoprint.LocalClinicalData(attr.ClinicalAttributeID, mode, samples, coverage)
				fetched[i] = true
				continue
			}
			i, attr := i, attr
			g.Go(func() error {
				data, err := o.store.ClinicalData(gctx, attr)
				if err != nil {
					o.logger.WithFields(logrus.Fields{
						"clinical_attribute_id": attr.ClinicalAttributeID,
						"error":                 err,
					}).Warn("Failed to fetch clinical data, dropping track")
					return nil
				}
				rows[i], fetched[i] = data, true
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		patientKeyOf := make(map[string]string, len(samples))
		for _, s := range samples {
			patientKeyOf[s.UniqueSampleKey] = s.UniquePatientKey
		}
		refs := cases.MustValue()
		tracks := make([]domain.ClinicalTrackSpec, 0, len(attrs))
		for i, attr := range attrs {
			if !fetched[i] {
				continue
			}
			data := oncoprint.MakeClinicalTrackData(attr, refs, mode, patientKeyOf, rows[i])
			tracks = append(tracks, oncoprint.MakeClinicalTrackSpec(attr, data))
		}
		return tracks, nil
	})
}

func needsCoverage(ids []string) bool {
	for _, id := range ids {
		if oncoprint.IsLocalClinicalAttribute(id) && id != oncoprint.AttrCancerStudy && id != oncoprint.AttrNumSamplesPerPatient {
			return true
		}
	}
	return false
}

// heatmapGroup is one profile's rows in a heatmap collection.
type heatmapGroup struct {
	profile  domain.MolecularProfile
	index    int
	entities []string
}

// heatmapTracks fetches and builds the rows of groups. A broken upstream contract fails the
// whole collection.
func (o *Oncoprint) heatmapTracks(
	ctx context.Context,
	mode domain.ColumnMode,
	cases remote.Result[[]domain.CaseRef],
	deps []remote.Awaitable,
	groups func() []heatmapGroup,
) remote.Result[[]domain.HeatmapTrackSpec] {
	deps = append([]remote.Awaitable{cases}, deps...)

	return remote.Derive(deps, func() ([]domain.HeatmapTrackSpec, error) {
		active := groups()
		refs := cases.MustValue()
		built := make([][]domain.HeatmapTrackSpec, len(active))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxTrackFetches)
		for i, group := range active {
			i, group := i, group
			g.Go(func() error {
				rows, err := o.store.HeatmapData(gctx, group.profile, group.entities)
				if err != nil {
					return fmt.Errorf("heatmap data for %s: %w", group.profile.MolecularProfileID, err)
				}
				tracks, err := heatmapSpecs(group, refs, mode, rows)
				if err != nil {
					o.logger.WithFields(logrus.Fields{
						"molecular_profile_id": group.profile.MolecularProfileID,
						"error":                err,
					}).Error("Heatmap data breaks the one row per sample contract")
					return err
				}
				built[i] = tracks
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		out := []domain.HeatmapTrackSpec{}
		for _, tracks := range built {
			out = append(out, tracks...)
		}
		return out, nil
	})
}

func heatmapSpecs(group heatmapGroup, cases []domain.CaseRef, mode domain.ColumnMode, rows []domain.MolecularDatum) ([]domain.HeatmapTrackSpec, error) {
	tracks := make([]domain.HeatmapTrackSpec, 0, len(group.entities))
	for _, entity := range group.entities {
		data, err := oncoprint.MakeHeatmapTrackData(entity, cases, mode, rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, domain.HeatmapTrackSpec{
			Key:                     group.profile.MolecularProfileID + "," + entity,
			Label:                   entity,
			MolecularProfileID:      group.profile.MolecularProfileID,
			MolecularAlterationType: group.profile.MolecularAlterationType,
			Datatype:                group.profile.Datatype,
			EntityID:                entity,
			TrackGroupIndex:         group.index,
			Data:                    data,
		})
	}
	return tracks, nil
}

// registryGroups selects the registry's active groups of generic assay profiles when
// treatments is set, and of every other heatmap profile otherwise.
func registryGroups(groups []trackgroups.Group, profiles []domain.MolecularProfile, treatments bool) []heatmapGroup {
	byID := make(map[string]domain.MolecularProfile, len(profiles))
	for _, p := range profiles {
		byID[p.MolecularProfileID] = p
	}
	var out []heatmapGroup
	for _, g := range groups {
		if (g.MolecularAlterationType == domain.GenericAssay) != treatments {
			continue
		}
		out = append(out, heatmapGroup{profile: byID[g.MolecularProfileID], index: g.TrackGroupIndex, entities: g.Entities})
	}
	return out
}
