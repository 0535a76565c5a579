package flow

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Context is the structured conditioning input for one or more candidates:
// a flattened multi-detector strain block and auxiliary conditioning
// parameters (the standardized chirp-mass proxy), one row per candidate.
type Context struct {
	Strain *mat.Dense // (n × strainDim), may be nil when no embedding net is used
	Params *mat.Dense // (n × auxDim)
}

// Rows returns the number of context rows.
func (c *Context) Rows() int {
	if c.Strain != nil {
		n, _ := c.Strain.Dims()
		return n
	}
	if c.Params != nil {
		n, _ := c.Params.Dims()
		return n
	}
	return 0
}

// EmbeddingWeights is the serialized form of the embedding network: a
// linear projection of the strain block followed by a residual net over the
// projection concatenated with the auxiliary parameters.
type EmbeddingWeights struct {
	Projection DenseWeights       `json:"projection"`
	Net        ResidualNetWeights `json:"net"`
}

// RandomEmbeddingWeights builds random weights for the given dimensions.
func RandomEmbeddingWeights(strainDim, projDim, auxDim, hidden, out, numBlocks int, rng *rand.Rand) EmbeddingWeights {
	return EmbeddingWeights{
		Projection: RandomDenseWeights(strainDim, projDim, rng),
		Net:        RandomResidualNetWeights(projDim, auxDim, hidden, out, numBlocks, rng),
	}
}

// EmbeddingNet compresses a structured multi-detector context into the
// fixed-size vector the transform stack conditions on.
type EmbeddingNet struct {
	strainDim int
	auxDim    int
	proj      *denseLayer
	net       *ResidualNet
}

// NewEmbeddingNet assembles an embedding net mapping strainDim+auxDim
// structured features to a ctxDim vector.
func NewEmbeddingNet(strainDim, projDim, auxDim, hidden, ctxDim, numBlocks int, w EmbeddingWeights) (*EmbeddingNet, error) {
	proj, err := newDenseLayer(strainDim, projDim, w.Projection)
	if err != nil {
		return nil, fmt.Errorf("embedding projection: %w", err)
	}
	net, err := NewResidualNet(projDim, auxDim, hidden, ctxDim, w.Net)
	if err != nil {
		return nil, fmt.Errorf("embedding net: %w", err)
	}
	if len(w.Net.Blocks) != numBlocks {
		return nil, fmt.Errorf("embedding net: %d residual blocks in weights, want %d", len(w.Net.Blocks), numBlocks)
	}
	return &EmbeddingNet{strainDim: strainDim, auxDim: auxDim, proj: proj, net: net}, nil
}

// Embed maps the structured context to (n × ctxDim).
func (e *EmbeddingNet) Embed(ctx *Context) (*mat.Dense, error) {
	if ctx == nil || ctx.Strain == nil {
		return nil, fmt.Errorf("embedding: strain block required")
	}
	_, sd := ctx.Strain.Dims()
	if sd != e.strainDim {
		return nil, fmt.Errorf("embedding: strain dim %d, want %d", sd, e.strainDim)
	}
	if ctx.Params != nil {
		pn, pd := ctx.Params.Dims()
		if pd != e.auxDim || pn != ctx.Rows() {
			return nil, fmt.Errorf("embedding: aux params shape (%d,%d), want (%d,%d)", pn, pd, ctx.Rows(), e.auxDim)
		}
	} else if e.auxDim != 0 {
		return nil, fmt.Errorf("embedding: aux params required (dim %d)", e.auxDim)
	}
	projected := relu(e.proj.apply(ctx.Strain))
	return e.net.forward(projected, ctx.Params)
}
