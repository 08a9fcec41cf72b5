package solver

import (
	"fmt"
	"math"
	"sort"
)

const (
	fillTolerance = 1e-9
	bisectSteps   = 200
)

// Fill distributes n electrons over levels that each hold weight electrons.
// At T == 0 the lowest levels are filled first and the last one may be
// partially occupied; at T > 0 occupations follow the Fermi-Dirac
// distribution with the chemical potential found by bisection.
// It returns the occupation fraction of each level and the chemical potential.
func Fill(levels []float64, weight, n, T float64) ([]float64, float64, error) {
	occ := make([]float64, len(levels))
	if n < 0 {
		return nil, 0, fmt.Errorf("negative electron count %g", n)
	}
	if capacity := weight * float64(len(levels)); n > capacity+fillTolerance {
		return nil, 0, fmt.Errorf("%g electrons do not fit into %d levels of weight %g", n, len(levels), weight)
	}
	if len(levels) == 0 {
		return occ, 0, nil
	}
	if T > 0 {
		return fillFermi(levels, occ, weight, n, T)
	}

	order := make([]int, len(levels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return levels[order[a]] < levels[order[b]] })

	remaining := n
	mu := levels[order[0]]
	for _, i := range order {
		if remaining <= fillTolerance {
			break
		}
		take := math.Min(1, remaining/weight)
		occ[i] = take
		remaining -= take * weight
		mu = levels[i]
	}
	return occ, mu, nil
}

func fillFermi(levels, occ []float64, weight, n, T float64) ([]float64, float64, error) {
	lo, hi := levels[0], levels[0]
	for _, e := range levels {
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	lo -= 50*T + 1
	hi += 50*T + 1

	count := func(mu float64) float64 {
		s := 0.0
		for _, e := range levels {
			s += weight * Fermi((e-mu)/T)
		}
		return s
	}

	mu := 0.5 * (lo + hi)
	for range bisectSteps {
		mu = 0.5 * (lo + hi)
		c := count(mu)
		if math.Abs(c-n) < 1e-12 {
			break
		}
		if c < n {
			lo = mu
		} else {
			hi = mu
		}
	}
	for i, e := range levels {
		occ[i] = Fermi((e - mu) / T)
	}
	return occ, mu, nil
}

// Fermi is the Fermi-Dirac distribution 1/(1+exp(x)).
func Fermi(x float64) float64 {
	switch {
	case x > 40:
		return 0
	case x < -40:
		return 1
	}
	return 1 / (1 + math.Exp(x))
}

// Mix replaces prev with (1-mix)*prev + mix*next and returns the residual
// sqrt(sum (next-prev)^2) / norm.
func Mix(prev, next []float64, mix, norm float64) float64 {
	sum := 0.0
	for i := range prev {
		d := next[i] - prev[i]
		sum += d * d
		prev[i] += mix * d
	}
	return math.Sqrt(sum) / norm
}

// MixComplex is Mix for complex amplitudes.
func MixComplex(prev, next []complex128, mix, norm float64) float64 {
	sum := 0.0
	m := complex(mix, 0)
	for i := range prev {
		d := next[i] - prev[i]
		sum += real(d)*real(d) + imag(d)*imag(d)
		prev[i] += m * d
	}
	return math.Sqrt(sum) / norm
}
