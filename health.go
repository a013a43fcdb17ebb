package auth

import (
	"context"
	"time"
)

// HealthCheck checks one dependency
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthCheck
type HealthCheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (h HealthCheckFunc) Name() string { return h.CheckName }

func (h HealthCheckFunc) Check(ctx context.Context) error {
	if h.Fn == nil {
		return nil
	}
	return h.Fn(ctx)
}

// Pinger is satisfied by Users and by redis clients wrapped in a func
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck builds a HealthCheck over a Pinger
func PingCheck(name string, p Pinger) HealthCheck {
	return HealthCheckFunc{CheckName: name, Fn: p.Ping}
}

// HealthStatus is a single check result
type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthReport aggregates check results
type HealthReport struct {
	Status    string                  `json:"status"`
	Service   string                  `json:"service,omitempty"`
	Version   string                  `json:"version,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]HealthStatus `json:"checks,omitempty"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// HealthChecker runs named checks with a per check timeout
type HealthChecker struct {
	service string
	version string
	timeout time.Duration
	checks  map[string]HealthCheck
	order   []string
	clock   Clock
}

func NewHealthChecker(service, version string, checks ...HealthCheck) *HealthChecker {
	h := &HealthChecker{
		service: service,
		version: version,
		timeout: 2 * time.Second,
		checks:  make(map[string]HealthCheck),
		clock:   SystemClock,
	}
	for _, c := range checks {
		h.Add(c)
	}
	return h
}

// Add registers c, replacing a check with the same name
func (h *HealthChecker) Add(c HealthCheck) *HealthChecker {
	if c == nil {
		return h
	}
	if _, ok := h.checks[c.Name()]; !ok {
		h.order = append(h.order, c.Name())
	}
	h.checks[c.Name()] = c
	return h
}

func (h *HealthChecker) WithTimeout(d time.Duration) *HealthChecker {
	if d > 0 {
		h.timeout = d
	}
	return h
}

func (h *HealthChecker) Has(name string) bool {
	_, ok := h.checks[name]
	return ok
}

// Liveness reports the service without probing dependencies
func (h *HealthChecker) Liveness() HealthReport {
	return HealthReport{
		Status:    HealthStatusHealthy,
		Service:   h.service,
		Version:   h.version,
		Timestamp: h.clock.Now(),
	}
}

// Run executes the named checks, or all of them when names is empty
func (h *HealthChecker) Run(ctx context.Context, names ...string) HealthReport {
	if len(names) == 0 {
		names = h.order
	}

	report := h.Liveness()
	report.Checks = make(map[string]HealthStatus, len(names))

	for _, name := range names {
		check, ok := h.checks[name]
		if !ok {
			report.Checks[name] = HealthStatus{Status: HealthStatusUnhealthy, Error: "not configured"}
			report.Status = HealthStatusUnhealthy
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := check.Check(cctx)
		cancel()

		if err != nil {
			report.Checks[name] = HealthStatus{Status: HealthStatusUnhealthy, Error: err.Error()}
			report.Status = HealthStatusUnhealthy
			continue
		}
		report.Checks[name] = HealthStatus{Status: HealthStatusHealthy}
	}

	return report
}
