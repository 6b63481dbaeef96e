package importer

import (
	"regexp"
	"testing"
)

var batchIDPattern = regexp.MustCompile(`^\d{8}T\d{6}-[0-9a-f]{8}$`)

func TestNewImportBatch_IDFormat(t *testing.T) {
	b := NewImportBatch("/data/products.csv")

	if !batchIDPattern.MatchString(b.ID) {
		t.Errorf("batch ID %q does not match expected format", b.ID)
	}
	if b.SourceFile != "/data/products.csv" {
		t.Errorf("SourceFile = %q", b.SourceFile)
	}
	if b.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestNewImportBatch_IDsUnique(t *testing.T) {
	// Batches created in the same second must still differ via the random
	// suffix.
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		b := NewImportBatch("f.csv")
		if seen[b.ID] {
			t.Fatalf("duplicate batch ID generated: %s", b.ID)
		}
		seen[b.ID] = true
	}
}
