package chorechart

import "net/http"

// Outcome is the kind of reply a request produced.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDegraded
	OutcomeConfigFault
	OutcomeUnexpectedFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeConfigFault:
		return "config_fault"
	case OutcomeUnexpectedFault:
		return "unexpected_fault"
	default:
		return "unknown"
	}
}

// Reason qualifies a degraded outcome.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonInvalidInput    Reason = "invalid_input"
	ReasonQuotaExceeded   Reason = "quota_exceeded"
	ReasonUpstreamFailure Reason = "upstream_failure"
	ReasonRateLimited     Reason = "rate_limited"
)

// Result is the tagged outcome of one Ask. Build it with Success, Degraded,
// ConfigFault or UnexpectedFault.
type Result struct {
	Outcome Outcome
	Reason  Reason
	// Text is the generatedText shown to the user.
	Text string
	// Detail is the operator-facing error message, exposed only for faults.
	Detail   string
	CacheHit bool
	// Err is the underlying cause, for logs only.
	Err error
}

// Success wraps a generated or cached answer.
func Success(text string, cacheHit bool) Result {
	return Result{Outcome: OutcomeSuccess, Text: text, CacheHit: cacheHit}
}

// Degraded returns the apology reply for reason.
func Degraded(reason Reason, cause error) Result {
	return Result{Outcome: OutcomeDegraded, Reason: reason, Text: degradedText(reason), Err: cause}
}

// ConfigFault reports a server misconfiguration such as a missing credential.
func ConfigFault(detail string, cause error) Result {
	return Result{Outcome: OutcomeConfigFault, Text: FaultText, Detail: detail, Err: cause}
}

// UnexpectedFault reports a failure nothing else classified.
func UnexpectedFault(detail string, cause error) Result {
	if detail == "" {
		detail = "An unexpected error occurred"
	}
	return Result{Outcome: OutcomeUnexpectedFault, Text: FaultText, Detail: detail, Err: cause}
}

func degradedText(reason Reason) string {
	switch reason {
	case ReasonInvalidInput:
		return InvalidInputText
	case ReasonQuotaExceeded:
		return QuotaExceededText
	case ReasonRateLimited:
		return RateLimitedText
	default:
		return UpstreamFailureText
	}
}

// StatusCode maps the result to its HTTP status.
func (r Result) StatusCode() int {
	switch r.Outcome {
	case OutcomeConfigFault, OutcomeUnexpectedFault:
		return http.StatusInternalServerError
	case OutcomeDegraded:
		if r.Reason == ReasonRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusOK
	default:
		return http.StatusOK
	}
}

// Envelope is the JSON body returned to the caller.
type Envelope struct {
	Error         string `json:"error,omitempty"`
	GeneratedText string `json:"generatedText"`
}

// Envelope maps the result to its wire body. Only faults expose Detail.
func (r Result) Envelope() Envelope {
	env := Envelope{GeneratedText: r.Text}
	if r.Outcome == OutcomeConfigFault || r.Outcome == OutcomeUnexpectedFault {
		env.Error = r.Detail
	}
	return env
}
