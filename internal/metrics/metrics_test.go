package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderIsNoOpBeforeInit(t *testing.T) {
	// Must not panic before Init.
	r := NewRecorder()
	r.RecordRunCompleted(true, 1.5)
	r.RecordRuleRotation("FunctionAppAccess", true)
	r.RecordNotification(false)
	r.RecordHealthCheck("service_bus", true)
}

func TestRecorderAfterInit(t *testing.T) {
	Init()
	assert.True(t, IsRegistered())

	r := NewRecorder()

	before := testutil.ToFloat64(rotationRunsTotal.WithLabelValues("success"))
	r.RecordRunCompleted(true, 12.0)
	after := testutil.ToFloat64(rotationRunsTotal.WithLabelValues("success"))
	assert.Equal(t, before+1, after)

	beforeFail := testutil.ToFloat64(ruleRotationsTotal.WithLabelValues("ReadOnlyAccess", "failure"))
	r.RecordRuleRotation("ReadOnlyAccess", false)
	afterFail := testutil.ToFloat64(ruleRotationsTotal.WithLabelValues("ReadOnlyAccess", "failure"))
	assert.Equal(t, beforeFail+1, afterFail)

	r.RecordHealthCheck("key_vault", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(healthCheckStatus.WithLabelValues("key_vault")))
	r.RecordHealthCheck("key_vault", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(healthCheckStatus.WithLabelValues("key_vault")))
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	assert.True(t, IsRegistered())
}
