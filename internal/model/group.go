package model

import "time"

// GroupStatus is the single status enum used for DuplicateGroup (spec.md §9
// open question #2 — implemented directly as the enum, no boolean-pair
// legacy to migrate from in this codebase).
type GroupStatus string

const (
	GroupPending       GroupStatus = "pending"
	GroupFalsePositive GroupStatus = "false_positive"
	GroupIgnored       GroupStatus = "ignored"
	GroupDeleted       GroupStatus = "deleted"
)

// ComponentScores holds the stored per-pair similarity components a group
// was built from (spec.md §9 open question #1 — both the 2-component and
// 4-component weighting schemes are supported by making Metadata and
// Filename nullable).
type ComponentScores struct {
	Jaccard  float64
	Fuzzy    float64
	Metadata *float64
	Filename *float64
}

// DuplicateGroup is a cluster of >=2 documents judged duplicates (spec.md §3
// DuplicateGroup).
type DuplicateGroup struct {
	ID               GroupID
	ConfidenceScore  float64
	Components       ComponentScores
	AlgorithmVersion string
	Status           GroupStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DuplicateMember is the group<->document association (spec.md §3
// DuplicateMember).
type DuplicateMember struct {
	GroupID    GroupID
	DocumentID DocumentID
	IsPrimary  bool
}

// GroupWithMembers bundles a group and its members for atomic rebuilds via
// Store.ReplaceGroups.
type GroupWithMembers struct {
	Group   DuplicateGroup
	Members []DuplicateMember
}

// PrimaryDocumentID returns the id of the member flagged primary, or the
// zero value if none is (should not happen for a well-formed group).
func (g GroupWithMembers) PrimaryDocumentID() DocumentID {
	for _, m := range g.Members {
		if m.IsPrimary {
			return m.DocumentID
		}
	}
	return DocumentID{}
}

// MemberSet returns the set of document ids in the group, used for exact
// member-set equality comparisons during reconciliation (spec.md §4.9
// stage 7).
func (g GroupWithMembers) MemberSet() map[DocumentID]struct{} {
	set := make(map[DocumentID]struct{}, len(g.Members))
	for _, m := range g.Members {
		set[m.DocumentID] = struct{}{}
	}
	return set
}
