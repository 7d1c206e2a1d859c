// Package benchmarkset implements the BenchmarkSet fan-out model (spec
// §4.6): expanding a permutation matrix into an ordered sequence of child
// benchmark specs, and the deep-concat-merge used to apply each
// permutation's overrides onto the shared template.
package benchmarkset

import (
	"fmt"
	"math"
	"sort"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
)

// Child is one emitted child benchmark: its deterministic name and the
// permutation overrides to merge onto the set's template.
type Child struct {
	Name   string
	Values map[string]apiextensionsv1.JSON
}

// PermutationCount computes spec §4.6 step 1: if both product and explicit
// are empty, 1; otherwise the Cartesian product size of product plus the
// number of explicit entries.
func PermutationCount(p v1alpha1.Permutations) int {
	if len(p.Product) == 0 && len(p.Explicit) == 0 {
		return 1
	}
	size := 1
	for _, values := range p.Product {
		size *= len(values)
	}
	if len(p.Product) == 0 {
		size = 0
	}
	return size + len(p.Explicit)
}

// Expand enumerates every child benchmark a BenchmarkSet named setName
// should own, in the stable order spec §4.6 step 3 requires: the Cartesian
// product of product (keys sorted, since a Go map cannot preserve
// insertion order — see DESIGN.md), followed by each explicit entry, each
// permutation emitted repetitions times. Returns the permutationCount and
// count alongside the children so callers need not recompute them.
func Expand(setName string, spec v1alpha1.BenchmarkSetSpec) (permutationCount, count int, children []Child, err error) {
	permutationCount = PermutationCount(spec.Permutations)
	repetitions := spec.Repetitions
	if repetitions <= 0 {
		repetitions = 1
	}
	count = permutationCount * repetitions

	var permutations []map[string]apiextensionsv1.JSON
	if len(spec.Permutations.Product) == 0 && len(spec.Permutations.Explicit) == 0 {
		permutations = []map[string]apiextensionsv1.JSON{{}}
	} else {
		permutations = cartesianProduct(spec.Permutations.Product)
		permutations = append(permutations, spec.Permutations.Explicit...)
	}

	width := paddedWidth(count)
	children = make([]Child, 0, count)
	index := 0
	for _, perm := range permutations {
		for r := 0; r < repetitions; r++ {
			index++
			children = append(children, Child{
				Name:   fmt.Sprintf("%s-%0*d", setName, width, index),
				Values: perm,
			})
		}
	}

	if len(children) != count {
		return 0, 0, nil, fmt.Errorf("benchmarkset: internal error, emitted %d children, expected %d", len(children), count)
	}
	return permutationCount, count, children, nil
}

// paddedWidth is spec §4.6 step 4's width = ceil(log10(count)) + 1.
func paddedWidth(count int) int {
	if count <= 1 {
		return 1
	}
	return int(math.Ceil(math.Log10(float64(count)))) + 1
}

// cartesianProduct expands product's keys (sorted for determinism) into
// every combination, last key varying fastest.
func cartesianProduct(product map[string][]apiextensionsv1.JSON) []map[string]apiextensionsv1.JSON {
	if len(product) == 0 {
		return nil
	}

	keys := make([]string, 0, len(product))
	for k := range product {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]apiextensionsv1.JSON{{}}
	for _, k := range keys {
		var next []map[string]apiextensionsv1.JSON
		for _, combo := range combos {
			for _, v := range product[k] {
				nc := make(map[string]apiextensionsv1.JSON, len(combo)+1)
				for kk, vv := range combo {
					nc[kk] = vv
				}
				nc[k] = v
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}
