package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatWon(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		12300:    "12,300",
		1234567:  "1,234,567",
		-50000:   "-50,000",
		10000000: "10,000,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatWon(in), in)
	}
}
