package machine

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Test framework support: assertion primitives and test context management
// for the `seqc test` runner. Assertions collect failures instead of
// aborting, so every test in a file runs and reports, and the synthesized
// wrapper main can observe the outcome through test.has-failures.

// testFailure is a single recorded assertion failure with context.
type testFailure struct {
	message  string
	expected string
	actual   string
}

// testContext tracks assertion results. The current test's failures are
// cleared by TestInit; totalFailed survives across tests so the wrapper
// main can exit non-zero when any test in the file failed.
var testContext = struct {
	mu          sync.Mutex
	currentTest string
	passes      int
	failures    []testFailure
	totalFailed int
}{}

func testRecordPass() {
	testContext.mu.Lock()
	defer testContext.mu.Unlock()
	testContext.passes++
}

func testRecordFailure(message, expected, actual string) {
	testContext.mu.Lock()
	defer testContext.mu.Unlock()
	testContext.failures = append(testContext.failures, testFailure{
		message:  message,
		expected: expected,
		actual:   actual,
	})
	testContext.totalFailed++
}

// TestInit implements test.init: ( name -- ). It resets the context for a
// new test.
func TestInit(s *Stack) *Stack {
	v := s.Pop()
	if v.Kind != KindString {
		panic("test.init: expected String (test name) on stack, got " + v.Kind.String())
	}
	testContext.mu.Lock()
	defer testContext.mu.Unlock()
	testContext.currentTest = v.Str.String()
	testContext.passes = 0
	testContext.failures = nil
	return s
}

// TestFinish implements test.finish: ( -- ). It prints the current test's
// status line in the runner-parseable format "name ... ok|FAILED", with
// failure details on standard error.
func TestFinish(s *Stack) *Stack {
	testContext.mu.Lock()
	defer testContext.mu.Unlock()

	name := testContext.currentTest
	if name == "" {
		name = "unknown"
	}
	if len(testContext.failures) == 0 {
		fmt.Fprintf(Stdout, "%s ... ok\n", name)
		return s
	}
	fmt.Fprintf(Stdout, "%s ... FAILED\n", name)
	for _, f := range testContext.failures {
		fmt.Fprintf(Stderr, "    %s\n", f.message)
		if f.expected != "" {
			fmt.Fprintf(Stderr, "      expected: %s\n", f.expected)
		}
		if f.actual != "" {
			fmt.Fprintf(Stderr, "      actual: %s\n", f.actual)
		}
	}
	return s
}

// TestHasFailures implements test.has-failures: ( -- Bool ). It reports
// whether any assertion failed since the process started, so the wrapper
// main sees failures from every test in the file, not just the last one.
func TestHasFailures(s *Stack) *Stack {
	testContext.mu.Lock()
	defer testContext.mu.Unlock()
	s.Push(BoolValue(testContext.totalFailed > 0))
	return s
}

// testTruth reads an assertion operand: Bool, or Int for Forth-style
// truthiness.
func testTruth(v Value, op string) bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	}
	panic(op + ": expected Bool or Int on stack, got " + v.Kind.String())
}

// TestAssert implements test.assert: ( Bool -- ). Records a failure when
// the value is falsy.
func TestAssert(s *Stack) *Stack {
	if testTruth(s.Pop(), "test.assert") {
		testRecordPass()
	} else {
		testRecordFailure("assertion failed: expected truthy value", "non-zero", "0")
	}
	return s
}

// TestAssertNot implements test.assert-not: ( Bool -- ). Records a failure
// when the value is truthy.
func TestAssertNot(s *Stack) *Stack {
	if !testTruth(s.Pop(), "test.assert-not") {
		testRecordPass()
	} else {
		testRecordFailure("assertion failed: expected falsy value", "0", "non-zero")
	}
	return s
}

// TestAssertEq implements test.assert-eq: ( expected actual -- ) on Ints.
func TestAssertEq(s *Stack) *Stack {
	actual := popInt(s, "test.assert-eq")
	expected := popInt(s, "test.assert-eq")
	if expected == actual {
		testRecordPass()
	} else {
		testRecordFailure("assertion failed: values not equal",
			strconv.FormatInt(expected, 10), strconv.FormatInt(actual, 10))
	}
	return s
}

// TestAssertEqStr implements test.assert-eq-str: ( expected actual -- ) on
// Strings.
func TestAssertEqStr(s *Stack) *Stack {
	actualVal := s.Pop()
	expectedVal := s.Pop()
	if actualVal.Kind != KindString || expectedVal.Kind != KindString {
		panic("test.assert-eq-str: expected two Strings on stack")
	}
	expected, actual := expectedVal.Str.String(), actualVal.Str.String()
	if expected == actual {
		testRecordPass()
	} else {
		testRecordFailure("assertion failed: strings not equal",
			strconv.Quote(expected), strconv.Quote(actual))
	}
	return s
}

// testContextReset clears everything, including the cross-test failure
// total; for tests of the framework itself.
func testContextReset() {
	testContext.mu.Lock()
	defer testContext.mu.Unlock()
	testContext.currentTest = ""
	testContext.passes = 0
	testContext.failures = nil
	testContext.totalFailed = 0
}

// Exit terminates the process; overridable so tests can observe os.exit.
var Exit = os.Exit

// exit code range for Unix compatibility, only the low 8 bits are
// meaningful
const (
	exitCodeMin = 0
	exitCodeMax = 255
)

// OsExit implements os.exit: ( code -- ). It does not return; the Stack
// result exists for ABI uniformity.
func OsExit(s *Stack) *Stack {
	code := popInt(s, "os.exit")
	if code < exitCodeMin || code > exitCodeMax {
		panic(fmt.Sprintf("os.exit: exit code must be in range %d-%d, got %d",
			exitCodeMin, exitCodeMax, code))
	}
	Exit(int(code))
	return s
}
