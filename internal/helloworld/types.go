// internal/helloworld/types.go - Wire types for the HelloWorld API
package helloworld

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Alert status values accepted by the API
const (
	StatusActive = "ACTIVE"
	StatusClosed = "CLOSED"
)

// MaxAlertsToFetch caps how many alerts one fetch cycle may request.
const MaxAlertsToFetch = 50

// DefaultReputationThreshold is the score at which an indicator is
// considered malicious unless the caller overrides it.
const DefaultReputationThreshold = 65

// Scan states reported by the API
const (
	ScanStatusRunning  = "RUNNING"
	ScanStatusComplete = "COMPLETE"
)

// Severities lists the alert severity levels recognized by the API, ordered
// from least to most severe. The order matters: minimum-severity filters
// expand to this list from the given level upward.
var Severities = []string{"Low", "Medium", "High", "Critical"}

// SeverityIndex returns the position of severity in Severities, or -1 if it
// is not a known level.
func SeverityIndex(severity string) int {
	for i, s := range Severities {
		if s == severity {
			return i
		}
	}
	return -1
}

// ValidSeverity reports whether severity is a known severity level.
func ValidSeverity(severity string) bool {
	return SeverityIndex(severity) >= 0
}

// ValidStatus reports whether status is a known alert status.
func ValidStatus(status string) bool {
	return status == StatusActive || status == StatusClosed
}

// SeveritiesFrom returns the severity levels at or above min, e.g. "Medium"
// yields [Medium High Critical].
func SeveritiesFrom(min string) ([]string, error) {
	idx := SeverityIndex(min)
	if idx < 0 {
		return nil, fmt.Errorf("unknown severity %q, must be one of: %s", min, strings.Join(Severities, ","))
	}
	return Severities[idx:], nil
}

// EpochSeconds is a unix timestamp that the API encodes as either a JSON
// number or a numeric string.
type EpochSeconds int64

// UnmarshalJSON accepts both encodings; empty and null values become zero.
func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*e = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*e = EpochSeconds(v)
	return nil
}

// Unix returns the timestamp as seconds since epoch.
func (e EpochSeconds) Unix() int64 { return int64(e) }

// Time returns the timestamp as a UTC time.
func (e EpochSeconds) Time() time.Time { return time.Unix(int64(e), 0).UTC() }

// Score is a 0-100 reputation value, encoded by the API as a number or a
// numeric string.
type Score int

// UnmarshalJSON accepts both encodings; empty and null values become zero.
func (s *Score) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	if str == "" || str == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		return fmt.Errorf("invalid score %q: %w", str, err)
	}
	*s = Score(v)
	return nil
}

// WhoisDate is a WHOIS date value. Registrars return either a single string
// or a list of strings; only the first entry is meaningful.
type WhoisDate []string

// UnmarshalJSON accepts a string, a list of strings, or null.
func (d *WhoisDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*d = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = nil
		return nil
	}
	*d = WhoisDate{s}
	return nil
}

// First returns the first date entry, or "" when none is present.
func (d WhoisDate) First() string {
	if len(d) == 0 {
		return ""
	}
	return d[0]
}

// Alert is a HelloWorld alert as returned by the API.
type Alert struct {
	ID       string       `json:"alert_id"`
	Name     string       `json:"name"`
	Status   string       `json:"alert_status"`
	Type     string       `json:"alert_type"`
	Severity string       `json:"severity"`
	Created  EpochSeconds `json:"created"`
	Updated  EpochSeconds `json:"updated"`

	// Raw keeps the untouched payload so vendor fields this struct does not
	// model still reach command outputs and rawJSON.
	Raw map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the full payload in Raw.
func (a *Alert) UnmarshalJSON(data []byte) error {
	type alert Alert
	var parsed alert
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Alert(parsed)
	a.Raw = raw
	return nil
}

// Network carries the network section of an IP reputation payload.
type Network struct {
	Links []string `json:"links"`
}

// IPReport is the reputation payload for a single IP address.
type IPReport struct {
	IP      string   `json:"ip"`
	Score   Score    `json:"score"`
	ASN     string   `json:"asn"`
	Network *Network `json:"network"`

	Raw map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the full payload in Raw.
func (r *IPReport) UnmarshalJSON(data []byte) error {
	type report IPReport
	var parsed report
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = IPReport(parsed)
	r.Raw = raw
	return nil
}

// Links returns the related URLs from the network section, if any.
func (r *IPReport) Links() []string {
	if r.Network == nil {
		return nil
	}
	return r.Network.Links
}

// DomainReport is the reputation payload for a single domain.
type DomainReport struct {
	Domain            string    `json:"domain"`
	Score             Score     `json:"score"`
	CreationDate      WhoisDate `json:"creation_date"`
	ExpirationDate    WhoisDate `json:"expiration_date"`
	UpdatedDate       WhoisDate `json:"updated_date"`
	Org               string    `json:"org"`
	NameServers       []string  `json:"name_servers"`
	RegistrantName    string    `json:"name"`
	RegistrantCountry string    `json:"country"`
	Registrar         string    `json:"registrar"`

	Raw map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the full payload in Raw.
func (r *DomainReport) UnmarshalJSON(data []byte) error {
	type report DomainReport
	var parsed report
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = DomainReport(parsed)
	r.Raw = raw
	return nil
}

// ScanJob describes a started or in-progress scan.
type ScanJob struct {
	ScanID   string `json:"scan_id"`
	Status   string `json:"status"`
	Hostname string `json:"hostname,omitempty"`

	Raw map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the full payload in Raw.
func (j *ScanJob) UnmarshalJSON(data []byte) error {
	type job ScanJob
	var parsed job
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*j = ScanJob(parsed)
	j.Raw = raw
	return nil
}

// Done reports whether the scan reached its terminal state.
func (j *ScanJob) Done() bool { return j.Status == ScanStatusComplete }

// ScanEntity is one affected entity in a scan result.
type ScanEntity struct {
	Vulns []string `json:"vulns"`

	Raw map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the full payload in Raw.
func (e *ScanEntity) UnmarshalJSON(data []byte) error {
	type entity ScanEntity
	var parsed entity
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ScanEntity(parsed)
	e.Raw = raw
	return nil
}

// ScanResults is the full result payload of a completed scan.
type ScanResults struct {
	ScanID   string       `json:"scan_id"`
	Status   string       `json:"status"`
	Entities []ScanEntity `json:"entities"`

	Raw map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the full payload in Raw.
func (r *ScanResults) UnmarshalJSON(data []byte) error {
	type results ScanResults
	var parsed results
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ScanResults(parsed)
	r.Raw = raw
	return nil
}

// CVEs returns the deduplicated vulnerability identifiers across all
// entities, in first-seen order.
func (r *ScanResults) CVEs() []string {
	seen := make(map[string]bool)
	var cves []string
	for _, entity := range r.Entities {
		for _, cve := range entity.Vulns {
			if cve == "" || seen[cve] {
				continue
			}
			seen[cve] = true
			cves = append(cves, cve)
		}
	}
	return cves
}
