package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// Flow groups families by the engine operation that moves them. Exporters
// render families flow by flow.
type Flow string

const (
	FlowLogin      Flow = "login"
	FlowAutologin  Flow = "autologin"
	FlowBan        Flow = "ban"
	FlowToken      Flow = "token"
	FlowActivation Flow = "activation"
	FlowAccount    Flow = "account"
	FlowAccess     Flow = "access"
)

// Label is one name/value pair of a series.
type Label struct {
	Name  string
	Value string
}

// Series is one labelled counter of a family backed by an engine metric.
type Series struct {
	ID     goGuard.MetricID
	Labels []Label
}

// Family is one exported counter name with its labelled series.
type Family struct {
	Flow   Flow
	Name   string
	Help   string
	Series []Series
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goGuard.MetricID
	Flow Flow
	Name string
	Help string
}

func outcome(id goGuard.MetricID, v string) Series {
	return Series{ID: id, Labels: []Label{{Name: "outcome", Value: v}}}
}

func tokenOp(id goGuard.MetricID, purpose, op string) Series {
	return Series{ID: id, Labels: []Label{{Name: "purpose", Value: purpose}, {Name: "op", Value: op}}}
}

func event(id goGuard.MetricID, v string) Series {
	return Series{ID: id, Labels: []Label{{Name: "event", Value: v}}}
}

// Families lists every exported counter family in render order. Each
// engine counter appears in exactly one series.
var Families = []Family{
	{
		Flow: FlowLogin,
		Name: "goguard_login_attempts_total",
		Help: "Password login attempts by outcome.",
		Series: []Series{
			outcome(goGuard.MetricLoginSuccess, "success"),
			outcome(goGuard.MetricLoginFailure, "bad_credentials"),
			outcome(goGuard.MetricLoginBanned, "banned"),
			outcome(goGuard.MetricLoginPending, "pending_activation"),
		},
	},
	{
		Flow:   FlowLogin,
		Name:   "goguard_logouts_total",
		Help:   "Logouts of bound sessions.",
		Series: []Series{{ID: goGuard.MetricLogout}},
	},
	{
		Flow: FlowAutologin,
		Name: "goguard_autologin_attempts_total",
		Help: "Autologin cookie checks by outcome.",
		Series: []Series{
			outcome(goGuard.MetricAutologinSuccess, "success"),
			outcome(goGuard.MetricAutologinFailure, "rejected"),
		},
	},
	{
		Flow: FlowBan,
		Name: "goguard_ban_events_total",
		Help: "Ban tracker decisions: new bans written and requests blocked.",
		Series: []Series{
			event(goGuard.MetricBanActivated, "activated"),
			event(goGuard.MetricBanBlocked, "blocked"),
		},
	},
	{
		Flow: FlowToken,
		Name: "goguard_split_token_operations_total",
		Help: "Split credential operations by purpose.",
		Series: []Series{
			tokenOp(goGuard.MetricTokenIssued, "autologin", "issued"),
			tokenOp(goGuard.MetricTokenRotated, "autologin", "rotated"),
			tokenOp(goGuard.MetricTokenRevoked, "autologin", "revoked"),
			tokenOp(goGuard.MetricActivationRequested, "activation", "issued"),
		},
	},
	{
		Flow: FlowActivation,
		Name: "goguard_activations_total",
		Help: "Activation key redemptions by outcome.",
		Series: []Series{
			outcome(goGuard.MetricActivationSuccess, "activated"),
			outcome(goGuard.MetricActivationFailure, "invalid_key"),
			outcome(goGuard.MetricActivationDenied, "denied"),
		},
	},
	{
		Flow: FlowAccount,
		Name: "goguard_account_events_total",
		Help: "Account lifecycle events.",
		Series: []Series{
			event(goGuard.MetricAccountCreated, "created"),
			event(goGuard.MetricAccountCreationDuplicate, "duplicate"),
			event(goGuard.MetricAccountDeleted, "deleted"),
			event(goGuard.MetricPasswordChangeSuccess, "password_changed"),
			event(goGuard.MetricPasswordRehash, "password_rehashed"),
		},
	},
	{
		Flow:   FlowAccess,
		Name:   "goguard_permission_denied_total",
		Help:   "Requests refused by a permission check.",
		Series: []Series{{ID: goGuard.MetricPermissionDenied}},
	},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricLoginLatency, Flow: FlowLogin, Name: "goguard_login_latency_seconds", Help: "Latency of Engine.Login, ban check included."},
}

// AuditLossName is the counter family for audit events that never reached
// the sink. Its series carry reason="dropped" or reason="sink_panic".
const (
	AuditLossName = "goguard_audit_events_lost_total"
	AuditLossHelp = "Audit events lost to dispatcher backpressure or a panicking sink."
)

// HistogramBounds are the upper bounds, in seconds, of the engine's eight
// latency buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed eight bucket array. Missing
// buckets read as zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
