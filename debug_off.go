//go:build !griddebug

package collisiongrid

const debugChecks = false
