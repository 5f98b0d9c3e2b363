//go:build !nativethread_strict

package thread

const strictContracts = false
