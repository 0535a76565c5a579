// Package scan implements the chirp-mass trigger search: a pre-trained
// conditional flow model proposes posterior samples over a grid of
// candidate chirp masses, and an exact likelihood re-scores the survivors
// to locate the best-supported trigger.
//
// # Reading Guide
//
// Start with these three files to understand the scan kernel:
//   - grid.go: candidate chirp-mass and trial-time grids
//   - scanner.go: conditioning batch layout and flow sampling
//   - pipeline.go: the sequential scan loop tying everything together
//
// # Architecture
//
// The scan package owns the pipeline; the model lives in a sub-package:
//   - scan/flow/: the conditional normalizing flow (spline transforms,
//     conditioner networks, base distribution, checkpoint loading)
//   - scan/results/: pure per-iteration trigger records and aggregation
//
// # Key Interfaces
//
// The extension points are small function types and one interface:
//   - Sampler: the slice of the flow model the scan controller uses
//   - ContextBuilder: raw event data + chirp-mass proxy → network input
//   - ScoreFunc: opaque exact likelihood, (params) → (log L, SNR)
//   - ScoreBuilder: builds a ScoreFunc for one (translated) dataset
package scan
