package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RemindersSent.WithLabelValues("monthly_soon").Inc()
	m.PassFailures.WithLabelValues("annual_today").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersSent.WithLabelValues("monthly_soon")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PassFailures.WithLabelValues("annual_today")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_TwoRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
