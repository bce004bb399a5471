package twab

import "testing"

func TestTimeIsAtOrBefore(t *testing.T) {
	const now = uint32(1000)

	tests := []struct {
		name string
		now  uint32
		a, b uint32
		want bool
	}{
		{"plain before", now, 100, 200, true},
		{"plain after", now, 200, 100, false},
		{"equal", now, 150, 150, true},
		{"equal to now", now, 1000, 1000, true},

		// now sits just past a wraparound; values numerically greater
		// than now belong to the previous epoch.
		{"pre-wrap before post-wrap", 100, 4294967290, 5, true},
		{"post-wrap after pre-wrap", 100, 5, 4294967290, false},
		{"both pre-wrap", 100, 4294967280, 4294967290, true},
		{"both pre-wrap reversed", 100, 4294967290, 4294967280, false},
		{"pre-wrap equal", 100, 4294967290, 4294967290, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeIsAtOrBefore(tt.now, tt.a, tt.b); got != tt.want {
				t.Errorf("TimeIsAtOrBefore(%d, %d, %d) = %v, want %v", tt.now, tt.a, tt.b, got, tt.want)
			}
		})
	}
}
