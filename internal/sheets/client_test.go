package sheets

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"googleapi 429", &googleapi.Error{Code: 429, Message: "Too many requests"}, true},
		{"googleapi 403", &googleapi.Error{Code: 403, Message: "Forbidden"}, false},
		{"quota exceeded text", errors.New("Quota exceeded for quota group 'ReadGroup'"), true},
		{"quota metric text", fmt.Errorf("wrapped: %w", errors.New("quota metric 'Read requests' exceeded")), true},
		{"unrelated", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQuotaError(tt.err); got != tt.want {
				t.Errorf("IsQuotaError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
