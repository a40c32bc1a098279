// Package geo resolves a visitor IP to a coarse location for page-view analytics.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"invoicing-backend/logger"
)

// Location is what analytics stores per page view.
type Location struct {
	Country     string
	CountryCode string
	City        string
}

// Locator looks up an IP. A nil location with a nil error means "unknown".
type Locator interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

// NoopLocator never resolves anything.
type NoopLocator struct{}

func (NoopLocator) Lookup(context.Context, string) (*Location, error) { return nil, nil }

// ipAPIResponse represents the response from ip-api.com
type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
}

// IPAPILocator queries ip-api.com behind a circuit breaker so an outage of the free
// service stops costing request latency.
type IPAPILocator struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func NewIPAPILocator(baseURL string, timeout time.Duration) *IPAPILocator {
	if baseURL == "" {
		baseURL = "http://ip-api.com"
	}
	log := logger.Component("geo")
	settings := gobreaker.Settings{
		Name:        "ip-api",
		MaxRequests: 1,                // one probe in half-open state
		Interval:    60 * time.Second, // clear counts every minute
		Timeout:     60 * time.Second, // stay open for a minute before probing
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from":            from.String(),
				"to":              to.String(),
			}).Info("Circuit breaker state changed")
		},
	}
	return &IPAPILocator{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cb:         gobreaker.NewCircuitBreaker(settings),
	}
}

// Lookup skips private and malformed addresses without calling out.
func (l *IPAPILocator) Lookup(ctx context.Context, ip string) (*Location, error) {
	if IsPrivateIP(ip) {
		return nil, nil
	}
	res, err := l.cb.Execute(func() (interface{}, error) {
		return l.fetch(ctx, ip)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil
		}
		return nil, err
	}
	return res.(*Location), nil
}

func (l *IPAPILocator) fetch(ctx context.Context, ip string) (*Location, error) {
	url := fmt.Sprintf("%s/json/%s?fields=status,message,country,countryCode,city", l.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api.com returned status %d", resp.StatusCode)
	}

	var apiResp ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}
	if apiResp.Status != "success" {
		// the service answered; an unknown IP is not an outage
		return &Location{}, nil
	}
	return &Location{Country: apiResp.Country, CountryCode: apiResp.CountryCode, City: apiResp.City}, nil
}

// IsPrivateIP reports loopback, private, link-local and unparsable addresses.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() || parsed.IsUnspecified()
}

// New picks the locator named by provider ("ip-api" or "none").
func New(provider string, timeout time.Duration) Locator {
	switch strings.ToLower(provider) {
	case "none", "off", "":
		return NoopLocator{}
	default:
		return NewIPAPILocator("", timeout)
	}
}
