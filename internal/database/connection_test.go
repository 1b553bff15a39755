package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithApplicationName(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url without query", "postgres://u:p@db:5432/booking", "postgres://u:p@db:5432/booking?application_name=therapy-booking"},
		{"url keeps existing params", "postgresql://db/booking?sslmode=disable", "postgresql://db/booking?application_name=therapy-booking&sslmode=disable"},
		{"explicit name wins", "postgres://db/booking?application_name=ops", "postgres://db/booking?application_name=ops"},
		{"key value dsn untouched", "host=db dbname=booking sslmode=disable", "host=db dbname=booking sslmode=disable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := withApplicationName(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := withApplicationName("")
	assert.Error(t, err)
}
