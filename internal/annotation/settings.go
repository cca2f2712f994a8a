// Package annotation holds the page's putative driver annotation settings and the driver
// predicate derived from them.
package annotation

import (
	"sort"
	"sync"

	"github.com/oncoprint-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// Source names one driver annotation source.
type Source string

const (
	SourceOncoKB          Source = "oncoKb"
	SourceHotspots        Source = "hotspots"
	SourceCBioPortalCount Source = "cbioportalCount"
	SourceCOSMICCount     Source = "cosmicCount"
	SourceCustomBinary    Source = "customBinary"
)

// PutativeDriver is the custom driver filter value marking a driver.
const PutativeDriver = "Putative_Driver"

// Snapshot is an immutable copy of the settings used by one recomputation.
type Snapshot struct {
	OncoKB                   bool            `json:"oncoKb"`
	Hotspots                 bool            `json:"hotspots"`
	CBioPortalCount          bool            `json:"cbioportalCount"`
	CBioPortalCountThreshold int             `json:"cbioportalCountThreshold"`
	COSMICCount              bool            `json:"cosmicCount"`
	COSMICCountThreshold     int             `json:"cosmicCountThreshold"`
	CustomBinary             bool            `json:"customBinary"`
	Tiers                    map[string]bool `json:"tiers,omitempty"`
	HideVUS                  bool            `json:"hideVUS"`
	DistinguishMutationType  bool            `json:"distinguishMutationType"`
	Errored                  map[Source]bool `json:"errored,omitempty"`
	GloballyDisabled         map[Source]bool `json:"globallyDisabled,omitempty"`
}

// DistinguishDrivers reports whether any driver source is active.
func (s Snapshot) DistinguishDrivers() bool {
	if s.OncoKB || s.Hotspots || s.CBioPortalCount || s.COSMICCount || s.CustomBinary {
		return true
	}
	for _, on := range s.Tiers {
		if on {
			return true
		}
	}
	return false
}

// IsPutativeDriver applies the enabled sources to one mutation.
func (s Snapshot) IsPutativeDriver(m domain.MutationEvent, ann domain.MutationAnnotations) bool {
	if s.OncoKB && ann.OncoKB[m.Key()] {
		return true
	}
	if s.Hotspots && ann.Hotspots[m.Key()] {
		return true
	}
	if s.CBioPortalCount {
		if n := ann.CBioPortalCounts[m.PositionKey()]; n > 0 && n >= s.CBioPortalCountThreshold {
			return true
		}
	}
	if s.COSMICCount {
		if n := ann.COSMICCounts[domain.COSMICKey(m.HugoGeneSymbol, m.Keyword)]; n > 0 && n >= s.COSMICCountThreshold {
			return true
		}
	}
	if s.CustomBinary && m.DriverFilter == PutativeDriver {
		return true
	}
	if m.DriverTiersFilter != "" && s.Tiers[m.DriverTiersFilter] {
		return true
	}
	return false
}

// Settings is the mutable, page-scoped annotation configuration. It is changed only through
// its setters.
type Settings struct {
	mu    sync.RWMutex
	state Snapshot
	tiers []string

	logger *logrus.Logger
}

// NewSettings creates settings with every available source enabled.
func NewSettings(config domain.AnnotationConfig, logger *logrus.Logger) *Settings {
	s := &Settings{
		state: Snapshot{
			CBioPortalCountThreshold: config.CBioPortalCountThreshold,
			COSMICCountThreshold:     config.COSMICCountThreshold,
			DistinguishMutationType:  true,
			Tiers:                    make(map[string]bool),
			Errored:                  make(map[Source]bool),
			GloballyDisabled:         make(map[Source]bool),
		},
		logger: logger,
	}
	if !config.OncoKB.Enabled {
		s.state.GloballyDisabled[SourceOncoKB] = true
	}
	if !config.Hotspots.Enabled {
		s.state.GloballyDisabled[SourceHotspots] = true
	}
	if !config.COSMIC.Enabled {
		s.state.GloballyDisabled[SourceCOSMICCount] = true
	}
	s.setDistinguishDriversLocked(true)
	return s
}

// Snapshot returns a copy of the current settings.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Tiers = copyBools(s.state.Tiers)
	out.Errored = copyBools(s.state.Errored)
	out.GloballyDisabled = copyBools(s.state.GloballyDisabled)
	return out
}

// AvailableTiers returns the custom driver tiers present in the data.
func (s *Settings) AvailableTiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.tiers...)
}

// SetAvailableTiers records the custom driver tiers found in the mutation data. Newly seen
// tiers follow the umbrella driver switch.
func (s *Settings) SetAvailableTiers(tiers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := append([]string(nil), tiers...)
	sort.Strings(sorted)
	on := s.state.DistinguishDrivers()
	s.tiers = sorted
	for _, t := range sorted {
		if _, ok := s.state.Tiers[t]; !ok {
			s.state.Tiers[t] = on
		}
	}
}

// SetDistinguishDrivers is the umbrella switch. Turning it off disables every source, every
// tier and hiding of passengers. Turning it on re-enables each source unless it is globally
// disabled or errored.
func (s *Settings) SetDistinguishDrivers(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDistinguishDriversLocked(on)
}

func (s *Settings) setDistinguishDriversLocked(on bool) {
	st := &s.state
	if !on {
		st.OncoKB = false
		st.Hotspots = false
		st.CBioPortalCount = false
		st.COSMICCount = false
		st.CustomBinary = false
		st.HideVUS = false
		for t := range st.Tiers {
			st.Tiers[t] = false
		}
		return
	}
	st.OncoKB = s.availableLocked(SourceOncoKB)
	st.Hotspots = s.availableLocked(SourceHotspots)
	st.CBioPortalCount = s.availableLocked(SourceCBioPortalCount)
	st.COSMICCount = s.availableLocked(SourceCOSMICCount)
	st.CustomBinary = true
	for t := range st.Tiers {
		st.Tiers[t] = true
	}
}

func (s *Settings) availableLocked(src Source) bool {
	return !s.state.GloballyDisabled[src] && !s.state.Errored[src]
}

// setSource toggles one source; enabling an unavailable source is refused.
func (s *Settings) setSource(src Source, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && !s.availableLocked(src) {
		return false
	}
	s.setSourceFlagLocked(src, on)
	return true
}

func (s *Settings) SetOncoKB(on bool) bool          { return s.setSource(SourceOncoKB, on) }
func (s *Settings) SetHotspots(on bool) bool        { return s.setSource(SourceHotspots, on) }
func (s *Settings) SetCBioPortalCount(on bool) bool { return s.setSource(SourceCBioPortalCount, on) }
func (s *Settings) SetCOSMICCount(on bool) bool     { return s.setSource(SourceCOSMICCount, on) }
func (s *Settings) SetCustomBinary(on bool) bool    { return s.setSource(SourceCustomBinary, on) }

// SetCBioPortalCountThreshold changes the threshold and enables the source.
func (s *Settings) SetCBioPortalCountThreshold(threshold int) bool {
	s.mu.Lock()
	s.state.CBioPortalCountThreshold = threshold
	s.mu.Unlock()
	return s.SetCBioPortalCount(true)
}

// SetCOSMICCountThreshold changes the threshold and enables the source.
func (s *Settings) SetCOSMICCountThreshold(threshold int) bool {
	s.mu.Lock()
	s.state.COSMICCountThreshold = threshold
	s.mu.Unlock()
	return s.SetCOSMICCount(true)
}

// SetTier selects or deselects one custom driver tier.
func (s *Settings) SetTier(tier string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tiers[tier] = on
}

// SetHideVUS hides mutations that no enabled source calls a driver.
func (s *Settings) SetHideVUS(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.HideVUS = on
}

// SetDistinguishMutationType selects the coloured or single-colour mutation rule set.
func (s *Settings) SetDistinguishMutationType(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DistinguishMutationType = on
}

// MarkErrored force-disables a source whose lookups failed. It reports whether the source was
// newly marked.
func (s *Settings) MarkErrored(src Source, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Errored[src] {
		return false
	}
	s.state.Errored[src] = true
	s.setSourceFlagLocked(src, false)
	s.logger.WithFields(logrus.Fields{
		"source": src,
		"error":  err,
	}).Warn("Annotation source failed, disabling it")
	return true
}

// MarkDisabled turns off a source that has no backing service for this page. Unlike
// MarkErrored the source is not flagged as failed.
func (s *Settings) MarkDisabled(src Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.GloballyDisabled[src] {
		return false
	}
	s.state.GloballyDisabled[src] = true
	s.setSourceFlagLocked(src, false)
	return true
}

func (s *Settings) setSourceFlagLocked(src Source, on bool) {
	switch src {
	case SourceOncoKB:
		s.state.OncoKB = on
	case SourceHotspots:
		s.state.Hotspots = on
	case SourceCBioPortalCount:
		s.state.CBioPortalCount = on
	case SourceCOSMICCount:
		s.state.COSMICCount = on
	case SourceCustomBinary:
		s.state.CustomBinary = on
	}
}

func copyBools[K comparable](m map[K]bool) map[K]bool {
	out := make(map[K]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
