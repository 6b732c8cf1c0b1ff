package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/forumbridge/internal/application"
)

func TestIsAuthorized(t *testing.T) {
	tests := []struct {
		name    string
		isAdmin bool
		roles   []uint64
		allowed []uint64
		want    bool
	}{
		{name: "admin without roles", isAdmin: true, roles: nil, allowed: []uint64{5}, want: true},
		{name: "holds allowed role", roles: []uint64{3, 5}, allowed: []uint64{5, 9}, want: true},
		{name: "no overlap", roles: []uint64{3}, allowed: []uint64{5}, want: false},
		{name: "no roles", roles: nil, allowed: []uint64{5}, want: false},
		{name: "empty allow list", roles: []uint64{5}, allowed: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.IsAuthorized(tt.isAdmin, tt.roles, tt.allowed))
		})
	}
}
