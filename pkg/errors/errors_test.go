package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeData, "bad scalar")
	outer := Wrap(inner, ErrorTypeQuery, "count failed")

	require.NotNil(t, outer)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeQuery))
	assert.Equal(t, "query: count failed: data: bad scalar", outer.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeQuery, "nothing"))
	assert.Nil(t, WrapContext(nil, ErrorTypeQuery, "nothing"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "slow")))
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "reset")))
	assert.False(t, IsRetryable(New(ErrorTypeValidation, "bad field")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestInfoConcurrentFail(t *testing.T) {
	info := NewInfo()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info.Fail(fmt.Errorf("failure %d", i))
		}(i)
	}
	wg.Wait()

	assert.True(t, info.Failed())
	assert.NotEmpty(t, info.Message())
	assert.Error(t, info.Err())
	assert.False(t, info.FailedAt().IsZero())
}

func TestInfoNilSafe(t *testing.T) {
	var info *Info
	info.Fail(fmt.Errorf("ignored"))
	info.Reset()
	assert.Equal(t, FlagOk, info.Flag())
	assert.Empty(t, info.Message())
	assert.NoError(t, info.Err())
}

func TestInfoFailIgnoresNil(t *testing.T) {
	info := NewInfo()
	info.Fail(nil)
	assert.False(t, info.Failed())
}
