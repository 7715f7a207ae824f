package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsNonPositiveInterval(t *testing.T) {
	c := Default()
	c.IntervalSeconds = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for a zero interval")
	}
}

func TestValidateRejectsNegativeDiskCost(t *testing.T) {
	c := Default()
	c.DiskWriteCost = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for a negative disk write cost")
	}
}
