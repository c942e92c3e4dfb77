//go:build rp2040 && !bench

package main

const benchMode = false
