package pinscheme

import (
	"fmt"
	"sort"
)

// broadcom maps BCM numbers to physical header positions.
var broadcom = map[int]int{
	2:  3,
	3:  5,
	4:  7,
	5:  29,
	6:  31,
	7:  26,
	8:  24,
	9:  21,
	10: 19,
	11: 23,
	12: 32,
	13: 33,
	14: 8,
	15: 10,
	16: 36,
	17: 11,
	18: 12,
	19: 35,
	20: 38,
	21: 40,
	22: 15,
	23: 16,
	24: 18,
	25: 22,
	26: 37,
	27: 13,
}

// physical is the inverse of broadcom, built once at init.
var physical = invert(broadcom)

func invert(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// ToPhysical returns the header position of BCM GPIO alternate.
func ToPhysical(alternate int) (int, error) {
	p, ok := broadcom[alternate]
	if !ok {
		return 0, fmt.Errorf("%w: BCM %d", ErrInvalidPin, alternate)
	}
	return p, nil
}

// ToAlternate returns the BCM GPIO number wired to header position phys.
func ToAlternate(phys int) (int, error) {
	a, ok := physical[phys]
	if !ok {
		return 0, fmt.Errorf("%w: physical %d", ErrInvalidPin, phys)
	}
	return a, nil
}

// Alternates returns every BCM number in the table, ascending.
func Alternates() []int {
	out := make([]int, 0, len(broadcom))
	for a := range broadcom {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}
