package service_test

import (
	"testing"

	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/service"
)

func TestClosurePolicy_ShouldClose(t *testing.T) {
	def := service.DefaultClosurePolicy()
	tests := []struct {
		name   string
		policy service.ClosurePolicy
		c      model.Counters
		want   bool
	}{
		{"fresh occurrence", def, model.Counters{Existing: 1}, false},
		{"closure below threshold", def, model.Counters{Existing: 1, Closure: 2}, false},
		{"closure reaches threshold", def, model.Counters{Existing: 9, Closure: 3}, true},
		{"non-existing outnumbers", def, model.Counters{Existing: 1, NonExisting: 3}, true},
		{"non-existing tied with existing", def, model.Counters{Existing: 3, NonExisting: 3}, false},
		{"non-existing below threshold", def, model.Counters{Existing: 0, NonExisting: 2}, false},
		{"closure rule disabled", service.ClosurePolicy{NonExistingThreshold: 3}, model.Counters{Closure: 50}, false},
		{"both rules disabled", service.ClosurePolicy{}, model.Counters{NonExisting: 50, Closure: 50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.ShouldClose(tt.c); got != tt.want {
				t.Fatalf("ShouldClose(%+v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}
