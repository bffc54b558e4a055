/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package workload

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// ErrInvalidPolicy is returned for an unrecognised order policy name.
var ErrInvalidPolicy = errors.New("invalid order policy")

// OrderPolicy names a query ordering.
type OrderPolicy string

const (
	OrderArrival        OrderPolicy = "arrival"
	OrderPredShortest   OrderPolicy = "pred_shortest_first"
	OrderPredLongest    OrderPolicy = "pred_longest_first"
	OrderActualShortest OrderPolicy = "actual_shortest_first"
	OrderActualLongest  OrderPolicy = "actual_longest_first"
	OrderLowError       OrderPolicy = "low_error_first"
	OrderHighError      OrderPolicy = "high_error_first"
	OrderRandom         OrderPolicy = "random"
)

// RandomSeed makes the random order reproducible across runs.
const RandomSeed = 0

// OrderPolicies lists every supported policy.
func OrderPolicies() []OrderPolicy {
	return []OrderPolicy{
		OrderArrival,
		OrderPredShortest,
		OrderPredLongest,
		OrderActualShortest,
		OrderActualLongest,
		OrderLowError,
		OrderHighError,
		OrderRandom,
	}
}

// ParseOrderPolicy normalises a policy name. The empty string means arrival.
func ParseOrderPolicy(name string) (OrderPolicy, error) {
	normalized := OrderPolicy(strings.ToLower(strings.TrimSpace(name)))
	if normalized == "" {
		return OrderArrival, nil
	}
	for _, p := range OrderPolicies() {
		if p == normalized {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
}

// Ordered returns the queries reordered by policy. The workload is not modified.
// Keyed orders are stable, so equal keys keep arrival order.
func (w *Workload) Ordered(policy OrderPolicy) ([]Query, error) {
	p, err := ParseOrderPolicy(string(policy))
	if err != nil {
		return nil, err
	}

	queries := w.Queries()
	switch p {
	case OrderArrival:
		return queries, nil
	case OrderPredShortest:
		return sortBy(queries, func(q Query) int { return q.PredSlots }, false), nil
	case OrderPredLongest:
		return sortBy(queries, func(q Query) int { return q.PredSlots }, true), nil
	case OrderActualShortest:
		return sortBy(queries, func(q Query) int { return q.ActualSlots }, false), nil
	case OrderActualLongest:
		return sortBy(queries, func(q Query) int { return q.ActualSlots }, true), nil
	case OrderLowError:
		return sortBy(queries, Query.AbsError, false), nil
	case OrderHighError:
		return sortBy(queries, Query.AbsError, true), nil
	case OrderRandom:
		rng := rand.New(rand.NewSource(RandomSeed))
		rng.Shuffle(len(queries), func(i, j int) {
			queries[i], queries[j] = queries[j], queries[i]
		})
		return queries, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
}

// OrderedBy returns the queries stably sorted by a caller-supplied comparator.
func (w *Workload) OrderedBy(less func(a, b Query) bool) []Query {
	queries := w.Queries()
	sort.SliceStable(queries, func(i, j int) bool {
		return less(queries[i], queries[j])
	})
	return queries
}

func sortBy(queries []Query, key func(Query) int, descending bool) []Query {
	sort.SliceStable(queries, func(i, j int) bool {
		if descending {
			return key(queries[i]) > key(queries[j])
		}
		return key(queries[i]) < key(queries[j])
	})
	return queries
}
