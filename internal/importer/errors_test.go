package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestErrorWrapping(t *testing.T) {
	cause := fs.ErrNotExist

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"input", &InputError{Path: "/data/p.csv", Err: cause}, "/data/p.csv"},
		{"load", &LoadError{BatchID: "b1", Err: cause}, "b1"},
		{"merge", &MergeError{BatchID: "b1", Err: cause}, "b1"},
		{"restore", &RestoreError{Err: cause}, "restore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Errorf("errors.Is lost the cause through %T", tt.err)
			}
			if !strings.Contains(tt.err.Error(), tt.want) {
				t.Errorf("Error() = %q, want it to mention %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestErrorTypesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("run failed: %w", &LoadError{BatchID: "b1", Err: errors.New("copy")})

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatal("errors.As failed through fmt.Errorf wrap")
	}
	if loadErr.BatchID != "b1" {
		t.Errorf("BatchID = %q", loadErr.BatchID)
	}
}
