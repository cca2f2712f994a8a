package oncoprint

import "strings"

// Simplified mutation types.
const (
	MutationMissense   = "missense"
	MutationFrameshift = "frameshift"
	MutationNonsense   = "nonsense"
	MutationSplice     = "splice"
	MutationNonstart   = "nonstart"
	MutationNonstop    = "nonstop"
	MutationFusion     = "fusion"
	MutationInframe    = "inframe"
	MutationOther      = "other"
)

// Oncoprint mutation buckets.
const (
	BucketMissense = "missense"
	BucketInframe  = "inframe"
	BucketFusion   = "fusion"
	BucketTrunc    = "trunc"
)

const driverSuffix = "_rec"

var simplifiedMutationTypes = map[string]string{
	"missense_mutation": MutationMissense,
	"missense":          MutationMissense,
	"missense_variant":  MutationMissense,

	"frame_shift_ins":          MutationFrameshift,
	"frame_shift_del":          MutationFrameshift,
	"frameshift":               MutationFrameshift,
	"frameshift_deletion":      MutationFrameshift,
	"frameshift_insertion":     MutationFrameshift,
	"de_novo_start_outofframe": MutationFrameshift,
	"frameshift_variant":       MutationFrameshift,

	"nonsense_mutation": MutationNonsense,
	"nonsense":          MutationNonsense,
	"stopgain_snv":      MutationNonsense,

	"splice_site":           MutationSplice,
	"splice":                MutationSplice,
	"splicing":              MutationSplice,
	"splice_site_snp":       MutationSplice,
	"splice_site_del":       MutationSplice,
	"splice_site_indel":     MutationSplice,
	"splice_region_variant": MutationSplice,

	"translation_start_site": MutationNonstart,
	"start_codon_snp":        MutationNonstart,
	"start_codon_del":        MutationNonstart,

	"nonstop_mutation": MutationNonstop,

	"fusion": MutationFusion,

	"in_frame_del":            MutationInframe,
	"in_frame_ins":            MutationInframe,
	"indel":                   MutationInframe,
	"nonframeshift_deletion":  MutationInframe,
	"nonframeshift":           MutationInframe,
	"nonframeshift_insertion": MutationInframe,
	"targeted_region":         MutationInframe,
	"inframe":                 MutationInframe,
}

// SimplifiedMutationType normalises a MAF variant classification.
func SimplifiedMutationType(mutationType string) string {
	if t, ok := simplifiedMutationTypes[strings.ToLower(strings.TrimSpace(mutationType))]; ok {
		return t
	}
	return MutationOther
}

// OncoprintMutationType maps a simplified type to its display bucket; everything that is not
// missense, inframe or a fusion is drawn as truncating.
func OncoprintMutationType(simplified string) string {
	switch simplified {
	case MutationMissense, MutationInframe, MutationFusion:
		return simplified
	}
	return BucketTrunc
}
