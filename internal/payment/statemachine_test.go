package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTransition_Table(t *testing.T) {
	tests := []struct {
		from, to Status
		kind     TransitionKind
		elevated bool
		hook     Hook
	}{
		{StatusPending, StatusCompleted, TransitionStandard, false, HookComplete},
		{StatusPending, StatusCancelled, TransitionStandard, false, HookCancel},
		{StatusCompleted, StatusRefunded, TransitionStandard, false, HookRefund},
		{StatusCancelled, StatusPending, TransitionOverride, true, HookLabelOnly},
		{StatusRefunded, StatusCompleted, TransitionOverride, true, HookLabelOnly},
		{StatusCompleted, StatusCancelled, TransitionOverride, true, HookLabelOnly},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			tr, err := LookupTransition(tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, tr.Kind)
			assert.Equal(t, tt.elevated, tr.Elevated)
			assert.Equal(t, tt.hook, tr.Hook)
		})
	}
	assert.Len(t, transitionTable, len(tests))
}

func TestLookupTransition_Rejected(t *testing.T) {
	_, err := LookupTransition(StatusPending, StatusRefunded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, []Status{StatusCompleted, StatusCancelled}, terr.Valid)
	assert.Equal(t,
		"invalid transition PENDING -> REFUNDED; valid transitions from PENDING: [COMPLETED, CANCELLED]",
		err.Error())
}

func TestLookupTransition_SelfLoopsRejected(t *testing.T) {
	for _, s := range allStatuses {
		_, err := LookupTransition(s, s)
		assert.ErrorIs(t, err, ErrInvalidTransition, string(s))
	}
}

func TestValidTargets(t *testing.T) {
	assert.Equal(t, []Status{StatusCompleted, StatusCancelled}, ValidTargets(StatusPending))
	assert.Equal(t, []Status{StatusCancelled, StatusRefunded}, ValidTargets(StatusCompleted))
	assert.Equal(t, []Status{StatusPending}, ValidTargets(StatusCancelled))
	assert.Equal(t, []Status{StatusCompleted}, ValidTargets(StatusRefunded))
	assert.Empty(t, ValidTargets("ARCHIVED"))
}

func TestTransitionTable_OnlyKnownStatuses(t *testing.T) {
	for e, tr := range transitionTable {
		assert.True(t, e.from.Valid())
		assert.True(t, e.to.Valid())
		assert.Equal(t, e.from, tr.From)
		assert.Equal(t, e.to, tr.To)
		assert.Equal(t, tr.Kind == TransitionOverride, tr.Elevated)
		assert.Equal(t, tr.Kind == TransitionOverride, tr.Hook == HookLabelOnly)
	}
}

func TestReasonMapping(t *testing.T) {
	assert.True(t, ReasonSessionFee.FeeBearing())
	assert.True(t, ReasonMonthlyFee.FeeBearing())
	assert.True(t, ReasonClassFee.FeeBearing())
	assert.False(t, ReasonTopup.FeeBearing())
	assert.False(t, Reason("GIFT").Valid())
	assert.Equal(t, "STUDENT_BILL", string(ReasonClassFee.LedgerType()))
}

func TestMetadataScanValue(t *testing.T) {
	m := Metadata{MetaGatewayPaymentID: "sbx_1"}
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"gatewayPaymentId":"sbx_1"}`, v)

	var out Metadata
	require.NoError(t, out.Scan([]byte(`{"checkoutUrl":"https://x"}`)))
	assert.Equal(t, "https://x", out.String(MetaCheckoutURL))
	assert.Equal(t, "", out.String(MetaGatewayPaymentID))

	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)
	assert.Error(t, out.Scan(42))
}
