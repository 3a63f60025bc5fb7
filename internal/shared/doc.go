// Package shared holds helpers used across packages that belong to no
// single layer.
//
// The testutil subpackage provides a buffered slog handler so tests can
// assert on log records:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    runSomething(logger)
//	    testutil.AssertLogContains(t, handler, slog.LevelInfo, "run completed")
//	}
package shared
