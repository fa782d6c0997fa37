package domain

import "testing"

func TestComputeMaintenanceMargin(t *testing.T) {
	p := &Position{MarginUsed: 250}
	p.ComputeMaintenanceMargin()
	if p.MaintenanceMargin != 125 {
		t.Fatalf("MaintenanceMargin = %v, want 125 (half of MarginUsed)", p.MaintenanceMargin)
	}
}
