// internal/command/reputation.go - IP and domain reputation commands
package command

import (
	"context"
	"time"

	"hellobridge/internal/helloworld"
)

// ipContextExcludedFields are response keys too noisy to keep in context
// output.
var ipContextExcludedFields = []string{"objects", "nir"}

// whoisDateLayouts covers the date formats registrars are known to return.
var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
	"02-Jan-2006",
}

// parseWhoisDate normalizes a WHOIS date string to ISO-8601 UTC, reporting
// whether it parsed.
func parseWhoisDate(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(timeLayout), true
		}
	}
	return "", false
}

// normalizeWhoisField rewrites a WHOIS date field in place, or drops it when
// the registrar value cannot be parsed.
func normalizeWhoisField(out map[string]interface{}, field string, date helloworld.WhoisDate) {
	if _, present := out[field]; !present {
		return
	}
	if normalized, ok := parseWhoisDate(date.First()); ok {
		out[field] = normalized
	} else {
		delete(out, field)
	}
}

// ipReputationCommand looks up reputation for one or more IP addresses.
type ipReputationCommand struct {
	deps Deps
}

func (c *ipReputationCommand) Name() string { return "ip" }

func (c *ipReputationCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	ips := args.List("ip")
	if len(ips) == 0 {
		return nil, argErrorf("IP(s) not specified")
	}
	threshold, err := args.Int("threshold", c.deps.IPThreshold)
	if err != nil {
		return nil, err
	}

	outputs := make([]map[string]interface{}, 0, len(ips))
	indicators := make([]Indicator, 0, len(ips))
	var relationships []Relationship

	for _, ip := range ips {
		report, err := c.deps.Client.GetIPReputation(ctx, ip)
		if err != nil {
			return nil, err
		}

		score := int(report.Score)
		indicators = append(indicators, Indicator{
			Type:        IndicatorTypeIP,
			Value:       ip,
			Verdict:     ScoreVerdict(score, threshold),
			Score:       score,
			Description: verdictDescription(score),
			Fields: dropEmptyFields(map[string]interface{}{
				"asn": report.ASN,
			}),
		})

		for _, link := range report.Links() {
			relationships = append(relationships, Relationship{
				Name:        "related-to",
				EntityA:     ip,
				EntityAType: IndicatorTypeIP,
				EntityB:     link,
				EntityBType: IndicatorTypeURL,
				Brand:       "HelloWorld",
			})
		}

		out := make(map[string]interface{}, len(report.Raw)+1)
		for k, v := range report.Raw {
			out[k] = v
		}
		for _, field := range ipContextExcludedFields {
			delete(out, field)
		}
		out["ip"] = ip
		outputs = append(outputs, out)
	}

	return &Result{
		Readable:      TableToMarkdown("IP", outputs),
		OutputsPrefix: "HelloWorld.IP",
		OutputsKey:    "ip",
		Outputs:       outputs,
		Indicators:    indicators,
		Relationships: relationships,
	}, nil
}

// domainReputationCommand looks up reputation for one or more domains.
type domainReputationCommand struct {
	deps Deps
}

func (c *domainReputationCommand) Name() string { return "domain" }

func (c *domainReputationCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	domains := args.List("domain")
	if len(domains) == 0 {
		return nil, argErrorf("domain(s) not specified")
	}
	threshold, err := args.Int("threshold", c.deps.DomainThreshold)
	if err != nil {
		return nil, err
	}

	outputs := make([]map[string]interface{}, 0, len(domains))
	indicators := make([]Indicator, 0, len(domains))

	for _, domain := range domains {
		report, err := c.deps.Client.GetDomainReputation(ctx, domain)
		if err != nil {
			return nil, err
		}

		score := int(report.Score)
		indicators = append(indicators, Indicator{
			Type:        IndicatorTypeDomain,
			Value:       domain,
			Verdict:     ScoreVerdict(score, threshold),
			Score:       score,
			Description: verdictDescription(score),
			Fields:      domainFields(report),
		})

		out := make(map[string]interface{}, len(report.Raw)+1)
		for k, v := range report.Raw {
			out[k] = v
		}
		out["domain"] = domain
		normalizeWhoisField(out, "creation_date", report.CreationDate)
		normalizeWhoisField(out, "expiration_date", report.ExpirationDate)
		normalizeWhoisField(out, "updated_date", report.UpdatedDate)
		outputs = append(outputs, out)
	}

	return &Result{
		Readable:      TableToMarkdown("Domain", outputs),
		OutputsPrefix: "HelloWorld.Domain",
		OutputsKey:    "domain",
		Outputs:       outputs,
		Indicators:    indicators,
	}, nil
}

// domainFields builds the indicator field map from a domain report, keeping
// only the WHOIS attributes the registrar actually returned.
func domainFields(report *helloworld.DomainReport) map[string]interface{} {
	fields := map[string]interface{}{
		"registrar":          report.Registrar,
		"organization":       report.Org,
		"registrant_name":    report.RegistrantName,
		"registrant_country": report.RegistrantCountry,
	}
	if len(report.NameServers) > 0 {
		fields["name_servers"] = report.NameServers
	}
	if d, ok := parseWhoisDate(report.CreationDate.First()); ok {
		fields["creation_date"] = d
	}
	if d, ok := parseWhoisDate(report.ExpirationDate.First()); ok {
		fields["expiration_date"] = d
	}
	if d, ok := parseWhoisDate(report.UpdatedDate.First()); ok {
		fields["updated_date"] = d
	}
	return dropEmptyFields(fields)
}

// dropEmptyFields removes empty string values so indicators only carry
// attributes that are actually set.
func dropEmptyFields(fields map[string]interface{}) map[string]interface{} {
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
