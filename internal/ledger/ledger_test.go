package ledger

import "testing"

func TestRoundToCentsFloors(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"exact cents unchanged", 12.34, 12.34},
		{"floors rather than rounds up", 12.999, 12.99},
		{"floors a half-cent down", 10.005, 10.00},
		{"zero stays zero", 0, 0},
		{"whole number unchanged", 100, 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := RoundToCents(c.amount)
			if err != nil {
				t.Fatalf("RoundToCents(%v) returned error: %v", c.amount, err)
			}
			if got != c.want {
				t.Fatalf("RoundToCents(%v) = %v, want %v", c.amount, got, c.want)
			}
		})
	}
}
