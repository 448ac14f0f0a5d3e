package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":8080"},
		{name: "localhost", addr: "localhost:8090"},
		{name: "ip and port", addr: "127.0.0.1:3000"},
		{name: "missing port", addr: "localhost", wantErr: true},
		{name: "non-numeric port", addr: "localhost:http", wantErr: true},
		{name: "port out of range", addr: "localhost:70000", wantErr: true},
		{name: "port zero", addr: "localhost:0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
