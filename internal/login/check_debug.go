//go:build keystashdebug

package login

const debugChecks = true
