package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes an injection pattern found inside a string
// literal of a generated statement.
type InjectionCheckResult struct {
	Literal     string
	Fingerprint string
}

// CheckLiteralsForInjection runs libinjection over every single-quoted
// literal in the statement. Generated statements carry user phrasing inside
// literals, so a quote-breaking payload smuggled through the model lands
// here. Returns nil when all literals are clean.
func CheckLiteralsForInjection(statement string) *InjectionCheckResult {
	for _, literal := range stringLiterals(statement) {
		if literal == "" {
			continue
		}
		isSQLi, fingerprint := libinjection.IsSQLi(literal)
		if isSQLi {
			return &InjectionCheckResult{
				Literal:     literal,
				Fingerprint: string(fingerprint),
			}
		}
	}
	return nil
}
