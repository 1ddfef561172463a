package oauth

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	exchangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkd",
		Name:      "oauth_exchanges_total",
		Help:      "Authorization code exchanges by provider and result.",
	}, []string{"provider", "result"})

	refreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkd",
		Name:      "oauth_refreshes_total",
		Help:      "Access token refreshes by provider and result.",
	}, []string{"provider", "result"})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkd",
		Name:      "oauth_requests_total",
		Help:      "Outbound provider requests by outcome (ok, network, status, decode).",
	}, []string{"outcome"})
)

// RegisterMetrics registers the package collectors with reg. Registering twice is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{exchangesTotal, refreshesTotal, requestsTotal} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
