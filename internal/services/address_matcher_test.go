package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionAddressMatcher(t *testing.T) {
	matcher := NewRegionAddressMatcher()
	areas := []string{"서울 강남구", "경기 성남시 분당구"}

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"full region name", "서울특별시 강남구 역삼동 123-4", true},
		{"second area", "경기도 성남시 분당구 정자동", true},
		{"other district", "서울특별시 마포구 합정동", false},
		{"region only", "서울", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.Matches(tt.address, areas))
		})
	}

	assert.False(t, matcher.Matches("서울특별시 강남구 역삼동", nil))
}
