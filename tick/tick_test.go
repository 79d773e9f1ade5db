package tick

import "testing"

func TestIncAdvancesGet(t *testing.T) {
	start := Get()
	Inc()
	Inc()
	Inc()
	if got, want := Get(), start+3; got != want {
		t.Fatalf("Get() = %d, want %d", got, want)
	}
}
