// Package clustering implements seeded k-means over paper embeddings.
package clustering

import (
	"fmt"
	"math"
	"math/rand"
)

// Config holds tuning for the k-means run.
type Config struct {
	MaxIterations int
	Seed          int64
}

// DefaultConfig returns the defaults used by the trend stage. The fixed seed
// makes repeated runs over the same corpus produce the same clusters.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 100,
		Seed:          42,
	}
}

// KMeans clusters embeddings into a fixed number of groups using cosine
// distance and k-means++ initialization.
type KMeans struct {
	config Config
}

// NewKMeans creates a clusterer with the given config.
func NewKMeans(config Config) *KMeans {
	return &KMeans{config: config}
}

// Run clusters the embeddings into k groups and returns the per-point cluster
// assignments alongside the final centroids.
func (km *KMeans) Run(embeddings [][]float64, k int) ([]int, [][]float64, error) {
	if len(embeddings) == 0 {
		return nil, nil, fmt.Errorf("no embeddings provided")
	}
	if k <= 0 || k > len(embeddings) {
		return nil, nil, fmt.Errorf("invalid k: %d (must be 1-%d)", k, len(embeddings))
	}

	dim := len(embeddings[0])
	rng := rand.New(rand.NewSource(km.config.Seed))
	centroids := initializeCentroids(rng, embeddings, k, dim)

	var assignments []int
	converged := false
	for iteration := 0; iteration < km.config.MaxIterations && !converged; iteration++ {
		newAssignments := make([]int, len(embeddings))
		for i, embedding := range embeddings {
			newAssignments[i] = nearestCentroid(embedding, centroids)
		}

		if iteration > 0 {
			converged = true
			for i := range assignments {
				if assignments[i] != newAssignments[i] {
					converged = false
					break
				}
			}
		}
		assignments = newAssignments

		if !converged {
			centroids = updateCentroids(embeddings, assignments, k, dim)
		}
	}

	return assignments, centroids, nil
}

// initializeCentroids uses k-means++ seeding: the first centroid is sampled
// uniformly, later ones proportionally to squared distance from the nearest
// already-chosen centroid.
func initializeCentroids(rng *rand.Rand, embeddings [][]float64, k, dim int) [][]float64 {
	centroids := make([][]float64, k)

	firstIndex := rng.Intn(len(embeddings))
	centroids[0] = make([]float64, dim)
	copy(centroids[0], embeddings[firstIndex])

	for i := 1; i < k; i++ {
		distances := make([]float64, len(embeddings))
		totalDistance := 0.0
		for j, embedding := range embeddings {
			minDist := math.Inf(1)
			for c := 0; c < i; c++ {
				dist := CosineDistance(embedding, centroids[c])
				if dist < minDist {
					minDist = dist
				}
			}
			distances[j] = minDist * minDist
			totalDistance += distances[j]
		}

		if totalDistance == 0 {
			randomIndex := rng.Intn(len(embeddings))
			centroids[i] = make([]float64, dim)
			copy(centroids[i], embeddings[randomIndex])
			continue
		}

		target := rng.Float64() * totalDistance
		cumulative := 0.0
		selectedIndex := 0
		for j, dist := range distances {
			cumulative += dist
			if cumulative >= target {
				selectedIndex = j
				break
			}
		}

		centroids[i] = make([]float64, dim)
		copy(centroids[i], embeddings[selectedIndex])
	}

	return centroids
}

func nearestCentroid(embedding []float64, centroids [][]float64) int {
	minDistance := math.Inf(1)
	nearestIndex := 0
	for i, centroid := range centroids {
		distance := CosineDistance(embedding, centroid)
		if distance < minDistance {
			minDistance = distance
			nearestIndex = i
		}
	}
	return nearestIndex
}

func updateCentroids(embeddings [][]float64, assignments []int, k, dim int) [][]float64 {
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}

	for i, embedding := range embeddings {
		clusterID := assignments[i]
		counts[clusterID]++
		for j := range embedding {
			centroids[clusterID][j] += embedding[j]
		}
	}
	for i := range centroids {
		if counts[i] > 0 {
			for j := range centroids[i] {
				centroids[i][j] /= float64(counts[i])
			}
		}
	}
	return centroids
}

// CosineDistance returns 1 minus the cosine similarity of a and b. Zero
// vectors are maximally distant from everything.
func CosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// ClusterCount returns the number of clusters for n papers: sqrt(n) capped
// at 8, never below 2.
func ClusterCount(n int) int {
	k := int(math.Floor(math.Sqrt(float64(n))))
	if k > 8 {
		k = 8
	}
	if k < 2 {
		k = 2
	}
	return k
}
