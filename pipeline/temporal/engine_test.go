package temporal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stencilacore/pipeline"
)

func TestConvertRetryPolicyZeroValueIsNil(t *testing.T) {
	t.Parallel()
	require.Nil(t, convertRetryPolicy(pipeline.RetryPolicy{}))
}

func TestConvertRetryPolicyTranslatesFields(t *testing.T) {
	t.Parallel()
	rp := convertRetryPolicy(pipeline.RetryPolicy{MaxAttempts: 4, InitialBackoffMS: 100, MaxBackoffMS: 2000})
	require.NotNil(t, rp)
	require.EqualValues(t, 4, rp.MaximumAttempts)
	require.Equal(t, int64(100_000_000), rp.InitialInterval.Nanoseconds())
	require.Equal(t, int64(2_000_000_000), rp.MaximumInterval.Nanoseconds())
}

func TestNormalizeTemporalErrorPassesThroughNonCancellation(t *testing.T) {
	t.Parallel()
	want := require.New(t)
	err := errPlain("boom")
	want.Equal(err, normalizeTemporalError(err))
	want.Nil(normalizeTemporalError(nil))
}

type errPlain string

func (e errPlain) Error() string { return string(e) }
