// Package pinscheme translates between physical header positions and
// Broadcom (BCM) GPIO numbers on the 40-pin Raspberry Pi header.
//
// The table covers BCM 2 to 27. Lookups outside that domain return
// ErrInvalidPin.
//
//	phys, err := pinscheme.ToPhysical(17) // 11
//	bcm, err := pinscheme.ToAlternate(11) // 17
package pinscheme
