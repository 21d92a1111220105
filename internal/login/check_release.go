//go:build !keystashdebug

package login

// debugChecks gates the kit consistency check. Release builds trust the
// protocol builders; build with -tags keystashdebug to verify every merge.
const debugChecks = false
