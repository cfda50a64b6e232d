package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsValidate(t *testing.T) {
	valid := options{addr: "localhost:50051", token: "t", customerID: "c", requests: 50, amount: 1000, charge: 20000}
	assert.NoError(t, valid.validate())

	for name, mutate := range map[string]func(*options){
		"zero amount":     func(o *options) { o.amount = 0 },
		"negative amount": func(o *options) { o.amount = -5 },
		"zero requests":   func(o *options) { o.requests = 0 },
		"negative charge": func(o *options) { o.charge = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			o := valid
			mutate(&o)
			assert.Error(t, o.validate())
		})
	}
}

func TestRootCommandRejectsZeroAmount(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"--token", "t", "--customer", "c", "--amount", "0"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	assert.ErrorContains(t, err, "--amount must be positive")
}
