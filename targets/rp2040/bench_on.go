//go:build rp2040 && bench

package main

// benchMode drives benchPin from the PIO pulser on every arm.
const benchMode = true
