package version

import "testing"

func TestFull(t *testing.T) {
	if got, want := Full(), VERSION+"-"+RELEASE; got != want {
		t.Fatalf("Full() = %q, want %q", got, want)
	}
	if MAJOR != 4 || MINOR != 4 || FIX != 10 {
		t.Fatalf("unexpected version segments %d.%d.%d", MAJOR, MINOR, FIX)
	}
}
