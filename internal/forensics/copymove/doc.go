// Package copymove detects copy-move forgeries: regions of an image that
// were copied and pasted elsewhere in the same image.
//
// # Pipeline
//
// Detection runs five stages, each consuming the full output of the previous one:
//
//  1. Block extraction: every size x size window on a dense grid (stride 1 by default).
//  2. Description: a low-frequency cosine-transform descriptor per block.
//     Low-variance blocks are skipped.
//  3. Matching: descriptors are quantized and sorted so that similar blocks
//     become neighbours, and nearby entries are compared. Pairs whose
//     similarity reaches the threshold and whose centers are far enough
//     apart become raw matches.
//  4. Clustering: raw matches whose translations fall in the same cell of a
//     grid over offset space are joined with union-find, small groups are
//     dropped, and each group is refined by fitting an affine transform and
//     removing outliers. Raising the threshold never increases the number of
//     clusters.
//  5. Assembly: one representative per cluster, a confidence score and a
//     visualization overlay.
//
// Descriptor computation, matching and cluster verification run on a
// bounded worker pool. Each worker owns its output slot and the slots are
// merged in a fixed order, so results do not depend on the worker count.
//
// # Usage
//
//	det, err := copymove.New(16, 0.95, 50)
//	if err != nil {
//	    return err
//	}
//	res, err := det.Detect(ctx, img)
//	if err != nil {
//	    return err
//	}
//	for _, m := range res.Matches {
//	    fmt.Println(m.Source, "->", m.Target, m.Similarity)
//	}
package copymove
