package dsictx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbose(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	ctx = SetVerbose(ctx, true)
	assert.True(t, IsVerbose(ctx))
	assert.False(t, IsVerbose(SetVerbose(ctx, false)))
}
