package store

import (
	"sort"
	"strconv"
	"strings"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/urlstate"
)

// Alteration keywords accepted on an OQL line.
const (
	OQLMut     = "MUT"
	OQLFusion  = "FUSION"
	OQLAmp     = "AMP"
	OQLHomdel  = "HOMDEL"
	OQLGain    = "GAIN"
	OQLHetloss = "HETLOSS"
	OQLExp     = "EXP"
	OQLProt    = "PROT"
)

// defaultOQL is used for genes queried without alteration keywords
var defaultOQL = []string{OQLMut, OQLFusion, OQLAmp, OQLHomdel, OQLExp, OQLProt}

// OQLLine is one queried gene with the alterations that count for it.
type OQLLine struct {
	Gene        string
	Alterations map[string]bool
	Text        string
}

// Accepts reports whether an event passes the line's alteration filter.
func (l OQLLine) Accepts(event domain.AlterationEvent) bool {
	switch e := event.(type) {
	case domain.MutationEvent:
		if strings.EqualFold(e.MutationType, "fusion") {
			return l.Alterations[OQLFusion]
		}
		return l.Alterations[OQLMut]
	case domain.CNAEvent:
		switch e.Value {
		case 2:
			return l.Alterations[OQLAmp]
		case 1:
			return l.Alterations[OQLGain]
		case -1:
			return l.Alterations[OQLHetloss]
		case -2:
			return l.Alterations[OQLHomdel]
		}
		return false
	case domain.ContinuousEvent:
		if e.RegulationDirection == 0 {
			return false
		}
		switch e.Kind {
		case domain.MRNAExpression:
			return l.Alterations[OQLExp]
		case domain.ProteinLevel:
			return l.Alterations[OQLProt]
		}
	}
	return false
}

// ParseGeneList splits a gene list into OQL lines. Lines are separated by newlines or ";".
// A line with a colon holds one gene and its keywords; any other line may list several genes.
func ParseGeneList(raw string) []OQLLine {
	var lines []OQLLine
	seen := make(map[string]bool)
	add := func(line OQLLine) {
		if line.Gene == "" || seen[line.Text] {
			return
		}
		seen[line.Text] = true
		lines = append(lines, line)
	}

	raw = strings.ReplaceAll(raw, "\n", ";")
	for _, part := range urlstate.SplitList(raw, ";") {
		if gene, keywords, ok := strings.Cut(part, ":"); ok {
			gene = strings.ToUpper(strings.TrimSpace(gene))
			alts := make(map[string]bool)
			var accepted []string
			for _, kw := range strings.Fields(strings.ToUpper(keywords)) {
				switch kw {
				case OQLMut, OQLFusion, OQLAmp, OQLHomdel, OQLGain, OQLHetloss, OQLExp, OQLProt:
					alts[kw] = true
					accepted = append(accepted, kw)
				}
			}
			if len(alts) == 0 {
				add(defaultLine(gene))
				continue
			}
			add(OQLLine{Gene: gene, Alterations: alts, Text: gene + ": " + strings.Join(accepted, " ")})
			continue
		}
		for _, gene := range strings.Fields(part) {
			add(defaultLine(strings.ToUpper(gene)))
		}
	}
	return lines
}

func defaultLine(gene string) OQLLine {
	alts := make(map[string]bool, len(defaultOQL))
	for _, kw := range defaultOQL {
		alts[kw] = true
	}
	return OQLLine{Gene: gene, Alterations: alts, Text: gene}
}

// Request describes what the results view loads. It is derived from the session part of
// the URL only.
type Request struct {
	StudyIDs      []string
	CaseSetID     string
	CaseIDs       []domain.SampleIdentifier
	OQLLines      []OQLLine
	GenesetIDs    []string
	ProfileIDs    []string
	MRNAZScore    float64
	ProteinZScore float64
}

// Genes returns the distinct genes of the OQL lines in query order.
func (r Request) Genes() []string {
	seen := make(map[string]bool, len(r.OQLLines))
	genes := make([]string, 0, len(r.OQLLines))
	for _, l := range r.OQLLines {
		if !seen[l.Gene] {
			seen[l.Gene] = true
			genes = append(genes, l.Gene)
		}
	}
	return genes
}

// Key identifies a request for reload detection.
func (r Request) Key() string {
	var b strings.Builder
	b.WriteString(strings.Join(r.StudyIDs, ","))
	b.WriteString("|" + r.CaseSetID + "|")
	for _, id := range r.CaseIDs {
		b.WriteString(id.StudyID + ":" + id.SampleID + "+")
	}
	for _, l := range r.OQLLines {
		b.WriteString(l.Text + ";")
	}
	b.WriteString("|" + strings.Join(r.GenesetIDs, ","))
	b.WriteString("|" + strings.Join(r.ProfileIDs, ","))
	b.WriteString("|" + strconv.FormatFloat(r.MRNAZScore, 'g', -1, 64))
	b.WriteString("|" + strconv.FormatFloat(r.ProteinZScore, 'g', -1, 64))
	return b.String()
}

// RequestFromQuery reads the load request from URL parameters. Thresholds missing from the
// URL fall back to the configured defaults.
func RequestFromQuery(q urlstate.Query, config domain.OncoprintConfig) Request {
	req := Request{
		StudyIDs:      urlstate.SplitList(strings.ReplaceAll(q.Value(urlstate.KeyCancerStudyList), ";", ","), ","),
		CaseSetID:     strings.TrimSpace(q.Value(urlstate.KeyCaseSetID)),
		CaseIDs:       parseCaseIDs(q.Value(urlstate.KeyCaseIDs)),
		OQLLines:      ParseGeneList(q.Value(urlstate.KeyGeneList)),
		GenesetIDs:    strings.Fields(strings.ReplaceAll(q.Value(urlstate.KeyGenesetList), ",", " ")),
		ProfileIDs:    urlstate.SplitList(q.Value(urlstate.KeyGeneticProfileIDs), ","),
		MRNAZScore:    parseThreshold(q.Value(urlstate.KeyZScoreThreshold), config.MRNAZScoreThreshold),
		ProteinZScore: parseThreshold(q.Value(urlstate.KeyRPPAScoreThreshold), config.ProteinZScoreThreshold),
	}
	if len(req.StudyIDs) == 0 {
		seen := make(map[string]bool)
		for _, id := range req.CaseIDs {
			if !seen[id.StudyID] {
				seen[id.StudyID] = true
				req.StudyIDs = append(req.StudyIDs, id.StudyID)
			}
		}
		sort.Strings(req.StudyIDs)
	}
	return req
}

// parseCaseIDs reads "study:sample" pairs separated by "+", commas or whitespace.
func parseCaseIDs(raw string) []domain.SampleIdentifier {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '+' || r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	ids := make([]domain.SampleIdentifier, 0, len(fields))
	for _, f := range fields {
		study, sample, ok := strings.Cut(f, ":")
		if !ok || study == "" || sample == "" {
			continue
		}
		ids = append(ids, domain.SampleIdentifier{StudyID: study, SampleID: sample})
	}
	return ids
}

func parseThreshold(raw string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
