package services

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// SecurityEventMonitor aggregates security events and audit-write
// failures, and triggers alerts. Audit failures matter independently:
// each one is a compliance gap even though it never blocks the
// originating operation.
type SecurityEventMonitor struct {
	mu            sync.Mutex
	failedLogins  map[string][]time.Time // Map of IP -> list of failure timestamps
	alertedIPs    map[string]time.Time   // Map of IP -> last alert time
	alerts        []SecurityAlert        // History of alerts for dashboard
	auditFailures int                    // Count of failed audit writes since start
}

// SecurityAlert represents a triggered security alert
type SecurityAlert struct {
	Timestamp time.Time
	IP        string
	Reason    string
	Level     string // "WARNING", "CRITICAL"
}

// Global monitor instance
var Monitor *SecurityEventMonitor

// InitSecurityMonitor initializes the global monitor
func InitSecurityMonitor() {
	Monitor = &SecurityEventMonitor{
		failedLogins: make(map[string][]time.Time),
		alertedIPs:   make(map[string]time.Time),
		alerts:       make([]SecurityAlert, 0),
	}
	// Start cleanup goroutine
	go Monitor.cleanup()
}

// TrackFailedLogin records a failed login attempt and checks for threshold
func (m *SecurityEventMonitor) TrackFailedLogin(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.failedLogins[ip] = append(m.failedLogins[ip], now)

	// Filter out old attempts (older than 10 minutes)
	validAttempts := []time.Time{}
	windowStart := now.Add(-10 * time.Minute)
	for _, t := range m.failedLogins[ip] {
		if t.After(windowStart) {
			validAttempts = append(validAttempts, t)
		}
	}
	m.failedLogins[ip] = validAttempts

	// Check threshold (5 attempts in 10 minutes)
	if len(validAttempts) >= 5 {
		m.triggerAlertLocked(ip, "Multiple failed logins detected")
	}
}

// TrackAuditFailure records a failed audit write so lost audit records
// stay visible to operators
func (m *SecurityEventMonitor) TrackAuditFailure(action, resourceType, resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.auditFailures++
	alert := SecurityAlert{
		Timestamp: time.Now(),
		Reason:    fmt.Sprintf("Audit write failed: %s %s/%s", action, resourceType, resourceID),
		Level:     "ERROR",
	}
	m.alerts = append([]SecurityAlert{alert}, m.alerts...)
	if len(m.alerts) > 100 {
		m.alerts = m.alerts[:100]
	}
}

// AuditFailureCount returns the number of audit writes lost since start
func (m *SecurityEventMonitor) AuditFailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auditFailures
}

// triggerAlertLocked sends an alert - called from within lock
func (m *SecurityEventMonitor) triggerAlertLocked(ip, reason string) {
	// Rate limit alerts: Max 1 per hour per IP
	lastAlert, alerted := m.alertedIPs[ip]
	if alerted && time.Since(lastAlert) < 1*time.Hour {
		return
	}

	m.alertedIPs[ip] = time.Now()

	alert := SecurityAlert{
		Timestamp: time.Now(),
		IP:        ip,
		Reason:    reason,
		Level:     "CRITICAL",
	}
	// Prepend to alerts (newest first), keep max 100
	m.alerts = append([]SecurityAlert{alert}, m.alerts...)
	if len(m.alerts) > 100 {
		m.alerts = m.alerts[:100]
	}

	log.Printf("[SECURITY ALERT] %s from IP: %s", reason, ip)
}

// GetRecentAlerts returns a copy of recent alerts
func (m *SecurityEventMonitor) GetRecentAlerts() []SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	alertsCopy := make([]SecurityAlert, len(m.alerts))
	copy(alertsCopy, m.alerts)
	return alertsCopy
}

// cleanup periodically removes stale data
func (m *SecurityEventMonitor) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for ip, attempts := range m.failedLogins {
			if len(attempts) > 0 {
				lastAttempt := attempts[len(attempts)-1]
				if now.Sub(lastAttempt) > 10*time.Minute {
					delete(m.failedLogins, ip)
				}
			} else {
				delete(m.failedLogins, ip)
			}
		}
		for ip, lastAlert := range m.alertedIPs {
			if now.Sub(lastAlert) > 1*time.Hour {
				delete(m.alertedIPs, ip)
			}
		}
		m.mu.Unlock()
	}
}
