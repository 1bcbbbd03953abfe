package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hifybe"

// AuthMetrics counts authentication outcomes. It satisfies usecase.AuthMetrics.
type AuthMetrics struct {
	logins          *prometheus.CounterVec
	registrations   *prometheus.CounterVec
	resetRequests   *prometheus.CounterVec
	resetRedeems    *prometheus.CounterVec
	externalSignIns *prometheus.CounterVec
}

// NewAuthMetrics registers the auth counters with reg, reusing collectors
// that are already registered so tests can build several instances.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logins, err := registerCounterVec(reg, "logins_total", "Local login attempts partitioned by outcome.", "outcome")
	if err != nil {
		return nil, err
	}
	registrations, err := registerCounterVec(reg, "registrations_total", "Accounts created partitioned by auth provider.", "provider")
	if err != nil {
		return nil, err
	}
	resetRequests, err := registerCounterVec(reg, "password_reset_requests_total", "Password reset requests partitioned by outcome.", "outcome")
	if err != nil {
		return nil, err
	}
	resetRedeems, err := registerCounterVec(reg, "password_reset_redemptions_total", "Password reset redemptions partitioned by outcome.", "outcome")
	if err != nil {
		return nil, err
	}
	externalSignIns, err := registerCounterVec(reg, "external_signins_total", "External sign-in callbacks partitioned by outcome.", "outcome")
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		logins:          logins,
		registrations:   registrations,
		resetRequests:   resetRequests,
		resetRedeems:    resetRedeems,
		externalSignIns: externalSignIns,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, name, help, label string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      name,
		Help:      help,
	}, []string{label})

	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", name, err)
	}
	return vec, nil
}

func (m *AuthMetrics) ObserveLogin(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *AuthMetrics) ObserveRegistration(provider string) {
	if m != nil {
		m.registrations.WithLabelValues(provider).Inc()
	}
}

func (m *AuthMetrics) ObserveResetRequest(outcome string) {
	if m != nil {
		m.resetRequests.WithLabelValues(outcome).Inc()
	}
}

func (m *AuthMetrics) ObserveResetRedeem(outcome string) {
	if m != nil {
		m.resetRedeems.WithLabelValues(outcome).Inc()
	}
}

func (m *AuthMetrics) ObserveExternalSignIn(outcome string) {
	if m != nil {
		m.externalSignIns.WithLabelValues(outcome).Inc()
	}
}
