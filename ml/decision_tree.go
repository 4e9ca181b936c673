package ml

import (
	"errors"
	"math"
	"sort"
)

// TreeNode is one node in the flattened tree representation. Children are
// indexes into the node slice; leaves carry the weighted share of positive
// samples that reached them.
type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	Probability float64 `json:"probability"`
	IsLeaf      bool    `json:"is_leaf"`
}

// DecisionTree is a binary classification tree over weighted samples.
type DecisionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Train fits the tree on weighted samples. Weights counter class imbalance:
// the forest passes balanced per-class weights so the minority built-up
// class is not drowned out.
func (dt *DecisionTree) Train(features [][]float64, labels []int, weights []float64, maxDepth int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if len(weights) != len(labels) {
		return errors.New("weights and labels size mismatch")
	}
	if maxDepth <= 0 {
		maxDepth = 5
	}

	dt.Nodes = dt.buildNode(features, labels, weights, 0, maxDepth)
	return nil
}

// PredictProba walks the tree and returns the probability of the positive
// class at the reached leaf.
func (dt *DecisionTree) PredictProba(features []float64) (float64, error) {
	if len(dt.Nodes) == 0 {
		return 0, errors.New("tree not trained")
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Probability, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, weights []float64, depth, maxDepth int) []TreeNode {
	leaf := TreeNode{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		Probability: positiveShare(labels, weights),
		IsLeaf:      true,
	}
	if depth >= maxDepth || isPure(labels) {
		return []TreeNode{leaf}
	}

	bestFeature, threshold, ok := findBestSplit(features, labels, weights)
	if !ok {
		return []TreeNode{leaf}
	}

	leftIdx, rightIdx := partition(features, bestFeature, threshold)
	if len(leftIdx) == 0 || len(rightIdx) == 0 {
		return []TreeNode{leaf}
	}

	leftNodes := dt.buildNode(gather(features, leftIdx), gatherInts(labels, leftIdx), gatherFloats(weights, leftIdx), depth+1, maxDepth)
	rightNodes := dt.buildNode(gather(features, rightIdx), gatherInts(labels, rightIdx), gatherFloats(weights, rightIdx), depth+1, maxDepth)

	root := TreeNode{
		FeatureIdx:  bestFeature,
		Threshold:   threshold,
		LeftChild:   1,
		RightChild:  1 + len(leftNodes),
		Probability: leaf.Probability,
		IsLeaf:      false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func findBestSplit(features [][]float64, labels []int, weights []float64) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftIdx, rightIdx := partition(features, featureIdx, threshold)
		if len(leftIdx) == 0 || len(rightIdx) == 0 {
			continue
		}
		impurity := weightedGini(labels, weights, leftIdx, rightIdx)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func partition(features [][]float64, featureIdx int, threshold float64) (left, right []int) {
	for i, row := range features {
		if row[featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func weightedGini(labels []int, weights []float64, leftIdx, rightIdx []int) float64 {
	leftWeight := totalWeight(weights, leftIdx)
	rightWeight := totalWeight(weights, rightIdx)
	total := leftWeight + rightWeight
	if total == 0 {
		return 0
	}
	return (leftWeight/total)*gini(labels, weights, leftIdx) +
		(rightWeight/total)*gini(labels, weights, rightIdx)
}

func gini(labels []int, weights []float64, idx []int) float64 {
	total := totalWeight(weights, idx)
	if total == 0 {
		return 0
	}
	var positive float64
	for _, i := range idx {
		if labels[i] == 1 {
			positive += weights[i]
		}
	}
	p := positive / total
	return 1 - p*p - (1-p)*(1-p)
}

func totalWeight(weights []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += weights[i]
	}
	return sum
}

func positiveShare(labels []int, weights []float64) float64 {
	var total, positive float64
	for i, label := range labels {
		total += weights[i]
		if label == 1 {
			positive += weights[i]
		}
	}
	if total == 0 {
		return 0
	}
	return positive / total
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func gather(features [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = features[j]
	}
	return out
}

func gatherInts(values []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

func gatherFloats(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
