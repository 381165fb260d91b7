package copymove

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"math"
	"slices"
)

// Cluster is a group of raw matches that agree on one geometric transform.
type Cluster struct {
	Members   []RawMatch `json:"members" yaml:"members"`
	Transform Affine     `json:"transform" yaml:"transform"`
}

// Match summarises one accepted cluster.
type Match struct {
	// Source and Target are the centroids of the member block centers.
	Source image.Point `json:"source" yaml:"source"`
	Target image.Point `json:"target" yaml:"target"`

	// SourceRegion and TargetRegion bound all member blocks.
	SourceRegion image.Rectangle `json:"source_region" yaml:"source_region"`
	TargetRegion image.Rectangle `json:"target_region" yaml:"target_region"`

	// Offset is the rounded mean translation from source to target.
	Offset image.Point `json:"offset" yaml:"offset"`

	// Similarity is the mean member similarity.
	Similarity float64 `json:"similarity" yaml:"similarity"`

	Members   int    `json:"members" yaml:"members"`
	Transform Affine `json:"transform" yaml:"transform"`
}

// Summary computes the representative match of the cluster.
func (c Cluster) Summary() Match {
	var sx, sy, tx, ty, ox, oy, sim float64
	var srcRect, dstRect image.Rectangle
	for i, m := range c.Members {
		x, y := m.Source.Center()
		sx += x
		sy += y
		x, y = m.Target.Center()
		tx += x
		ty += y
		dx, dy := m.Offset()
		ox += float64(dx)
		oy += float64(dy)
		sim += m.Similarity
		if i == 0 {
			srcRect, dstRect = m.Source.Rect(), m.Target.Rect()
		} else {
			srcRect = srcRect.Union(m.Source.Rect())
			dstRect = dstRect.Union(m.Target.Rect())
		}
	}
	n := float64(len(c.Members))
	return Match{
		Source:       image.Pt(round(sx/n), round(sy/n)),
		Target:       image.Pt(round(tx/n), round(ty/n)),
		SourceRegion: srcRect,
		TargetRegion: dstRect,
		Offset:       image.Pt(round(ox/n), round(oy/n)),
		Similarity:   sim / n,
		Members:      len(c.Members),
		Transform:    c.Transform,
	}
}

func round(v float64) int { return int(math.Round(v)) }

// clusterMatches groups matches by translation and keeps the groups that are
// large enough.
//
// # Algorithm
//
// Matches sharing an exact offset are grouped first. Distinct offsets are
// then joined with union-find when they fall in the same cell of a grid laid
// over offset space, with cells one tolerance wide. The grid is tried at four
// half-cell shifts so a tight group straddling a cell edge lands whole in one
// of them; the shift yielding the fewest groups of at least MinClusterSize
// members wins, then the one keeping the most members, then the earliest.
//
// Cell membership does not depend on which matches survived the threshold, so
// raising the threshold only shrinks groups and never splits them. Accepted
// groups are refined by verifyCluster, which never rejects one.
//
// Matches must be sorted with compareMatches; the output order is then
// independent of the worker count.
func clusterMatches(ctx context.Context, matches []RawMatch, p Params, workers int) ([]Cluster, error) {
	if len(matches) < p.MinClusterSize {
		return nil, nil
	}
	tol := p.tolerance()

	offsetIndex := make(map[image.Point]int)
	var offsets []image.Point
	memberOffset := make([]int, len(matches))
	for i, m := range matches {
		dx, dy := m.Offset()
		o := image.Pt(dx, dy)
		idx, ok := offsetIndex[o]
		if !ok {
			idx = len(offsets)
			offsetIndex[o] = idx
			offsets = append(offsets, o)
		}
		memberOffset[i] = idx
	}

	var best [][]RawMatch
	bestMembers := -1
	for _, shift := range gridShifts {
		groups := groupByCell(matches, memberOffset, offsets, tol, shift)
		var accepted [][]RawMatch
		members := 0
		for _, g := range groups {
			if len(g) >= p.MinClusterSize {
				accepted = append(accepted, g)
				members += len(g)
			}
		}
		if bestMembers < 0 || len(accepted) < len(best) ||
			(len(accepted) == len(best) && members > bestMembers) {
			best, bestMembers = accepted, members
		}
	}

	verified := make([]Cluster, len(best))
	spans := partition(len(best), workers)
	err := forEachSpan(ctx, spans, workers, func(ctx context.Context, _ int, s span) error {
		for i := s.lo; i < s.hi; i++ {
			verified[i] = verifyCluster(best[i], tol, p.MinClusterSize)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify clusters: %w", err)
	}
	if len(verified) == 0 {
		return nil, nil
	}
	return verified, nil
}

// gridShifts are the cell origins tried by clusterMatches, in fractions of a
// cell.
var gridShifts = [...]point{{0, 0}, {0.5, 0}, {0, 0.5}, {0.5, 0.5}}

// groupByCell partitions matches by the grid cell of their offset. Groups are
// returned in order of their first member.
func groupByCell(matches []RawMatch, memberOffset []int, offsets []image.Point, tol float64, shift point) [][]RawMatch {
	uf := newUnionFind(len(offsets))
	first := make(map[image.Point]int)
	for i, o := range offsets {
		c := image.Pt(
			int(math.Floor(float64(o.X)/tol+shift.x)),
			int(math.Floor(float64(o.Y)/tol+shift.y)),
		)
		if j, ok := first[c]; ok {
			uf.union(j, i)
		} else {
			first[c] = i
		}
	}

	groupIndex := make(map[int]int)
	var groups [][]RawMatch
	for i, m := range matches {
		root := uf.find(memberOffset[i])
		g, ok := groupIndex[root]
		if !ok {
			g = len(groups)
			groupIndex[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], m)
	}
	return groups
}

// verifyCluster fits a transform to the members and removes members whose
// residual exceeds tol. Outliers are kept when removing them would leave
// fewer than minSize members.
func verifyCluster(members []RawMatch, tol float64, minSize int) Cluster {
	src, dst := memberPoints(members)
	t, ok := fitAffine(src, dst)
	if !ok {
		t = meanTranslation(src, dst)
	}

	kept := make([]RawMatch, 0, len(members))
	for i, m := range members {
		if residual(t, src[i], dst[i]) <= tol {
			kept = append(kept, m)
		}
	}
	if len(kept) < minSize {
		return Cluster{Members: members, Transform: meanTranslation(src, dst)}
	}
	if len(kept) < len(members) {
		src, dst = memberPoints(kept)
		if t, ok = fitAffine(src, dst); !ok {
			t = meanTranslation(src, dst)
		}
	}
	return Cluster{Members: kept, Transform: t}
}

func memberPoints(members []RawMatch) (src, dst []point) {
	src = make([]point, len(members))
	dst = make([]point, len(members))
	for i, m := range members {
		src[i].x, src[i].y = m.Source.Center()
		dst[i].x, dst[i].y = m.Target.Center()
	}
	return src, dst
}

// rankClusters summarises the clusters and orders both slices by descending
// mean similarity, then by source and target position in row-major order.
func rankClusters(clusters []Cluster) ([]Cluster, []Match) {
	idx := make([]int, len(clusters))
	summaries := make([]Match, len(clusters))
	for i, c := range clusters {
		idx[i] = i
		summaries[i] = c.Summary()
	}
	slices.SortStableFunc(idx, func(i, j int) int {
		a, b := summaries[i], summaries[j]
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Source.Y, b.Source.Y); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Source.X, b.Source.X); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Target.Y, b.Target.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.Target.X, b.Target.X)
	})

	rankedClusters := make([]Cluster, len(idx))
	ranked := make([]Match, len(idx))
	for k, i := range idx {
		rankedClusters[k] = clusters[i]
		ranked[k] = summaries[i]
	}
	return rankedClusters, ranked
}
