package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

func TestListOptionsNormalize(t *testing.T) {
	o := ListOptions{}
	o.Normalize()
	assert.Equal(t, DefaultListLimit, o.Limit)

	o = ListOptions{Limit: 10_000, Category: "  Health "}
	o.Normalize()
	assert.Equal(t, MaxListLimit, o.Limit)
	assert.Equal(t, "Health", o.Category)
}

func TestLastByKey(t *testing.T) {
	in := []types.Fact{
		{Identity: "u1", Subject: "mom", Key: "residence", Value: "Lives in Ohio"},
		{Identity: "u1", Subject: "mom", Key: "occupation", Value: "Works as nurse"},
		{Identity: "u1", Subject: "mom", Key: "residence", Value: "Lives in Denver"},
		{Identity: "u2", Subject: "mom", Key: "residence", Value: "Lives in Paris"},
	}
	out := LastByKey(in)

	if assert.Len(t, out, 3) {
		assert.Equal(t, "Lives in Denver", out[0].Value)
		assert.Equal(t, "occupation", out[1].Key)
		assert.Equal(t, "u2", out[2].Identity)
	}
	assert.Equal(t, "Lives in Ohio", in[0].Value, "input must not be mutated")
}

func TestValidateFact(t *testing.T) {
	ok := types.Fact{Identity: "u1", Subject: "mom", Key: "residence"}
	assert.NoError(t, ValidateFact(ok))

	for _, f := range []types.Fact{
		{Subject: "mom", Key: "k"},
		{Identity: "u1", Key: "k"},
		{Identity: "u1", Subject: "mom", Key: "  "},
	} {
		err := ValidateFact(f)
		assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
	}
}
