package machine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureTestIO(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	t.Cleanup(func() {
		Stdout, Stderr = oldOut, oldErr
		testContextReset()
	})
	testContextReset()
	return &out, &errOut
}

func TestAssertionsPassingTest(t *testing.T) {
	out, errOut := captureTestIO(t)
	s := NewStack(32, 256)

	s.Push(GlobalStringValue("test-add"))
	TestInit(s)

	s.Push(IntValue(4))
	s.Push(IntValue(4))
	TestAssertEq(s)
	s.Push(BoolValue(true))
	TestAssert(s)
	TestFinish(s)

	assert.Equal(t, "test-add ... ok\n", out.String())
	assert.Empty(t, errOut.String())
	assert.Equal(t, 0, s.Depth())

	TestHasFailures(s)
	assert.False(t, s.Pop().Bool)
}

func TestAssertionsFailingTest(t *testing.T) {
	out, errOut := captureTestIO(t)
	s := NewStack(32, 256)

	s.Push(GlobalStringValue("test-bad"))
	TestInit(s)

	s.Push(IntValue(5))
	s.Push(IntValue(4))
	TestAssertEq(s)
	TestFinish(s)

	assert.Equal(t, "test-bad ... FAILED\n", out.String())
	assert.Contains(t, errOut.String(), "values not equal")
	assert.Contains(t, errOut.String(), "expected: 5")
	assert.Contains(t, errOut.String(), "actual: 4")

	TestHasFailures(s)
	assert.True(t, s.Pop().Bool)
}

func TestHasFailuresSurvivesInit(t *testing.T) {
	out, _ := captureTestIO(t)
	s := NewStack(32, 256)

	// first test fails
	s.Push(GlobalStringValue("test-first"))
	TestInit(s)
	s.Push(BoolValue(false))
	TestAssert(s)
	TestFinish(s)

	// second test passes; init clears the per-test failures
	s.Push(GlobalStringValue("test-second"))
	TestInit(s)
	s.Push(BoolValue(true))
	TestAssert(s)
	TestFinish(s)

	assert.Equal(t, "test-first ... FAILED\ntest-second ... ok\n", out.String())

	// the wrapper main still observes the earlier failure
	TestHasFailures(s)
	assert.True(t, s.Pop().Bool, "has-failures must see failures from every test in the file")
}

func TestAssertNotAndStrings(t *testing.T) {
	out, errOut := captureTestIO(t)
	s := NewStack(32, 256)

	s.Push(GlobalStringValue("test-str"))
	TestInit(s)

	s.Push(BoolValue(false))
	TestAssertNot(s)

	s.Push(GlobalStringValue("hello"))
	s.Push(GlobalStringValue("hello"))
	TestAssertEqStr(s)
	TestFinish(s)
	assert.Equal(t, "test-str ... ok\n", out.String())

	s.Push(GlobalStringValue("test-str-bad"))
	TestInit(s)
	s.Push(GlobalStringValue("hello"))
	s.Push(GlobalStringValue("world"))
	TestAssertEqStr(s)
	TestFinish(s)
	assert.Contains(t, out.String(), "test-str-bad ... FAILED")
	assert.Contains(t, errOut.String(), `expected: "hello"`)
	assert.Contains(t, errOut.String(), `actual: "world"`)
}

func TestAssertAcceptsForthStyleInts(t *testing.T) {
	captureTestIO(t)
	s := NewStack(32, 256)

	s.Push(GlobalStringValue("test-int"))
	TestInit(s)
	s.Push(IntValue(7))
	TestAssert(s)
	s.Push(IntValue(0))
	TestAssertNot(s)

	TestHasFailures(s)
	assert.False(t, s.Pop().Bool)
}

func TestOsExit(t *testing.T) {
	var code int
	old := Exit
	Exit = func(c int) { code = c }
	defer func() { Exit = old }()

	s := NewStack(16, 256)
	s.Push(IntValue(1))
	OsExit(s)
	assert.Equal(t, 1, code)

	// out-of-range codes abort instead of truncating
	s.Push(IntValue(256))
	require.Panics(t, func() { OsExit(s) })
}
