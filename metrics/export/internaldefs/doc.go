// Package internaldefs holds the metric families, labels and bucket bounds
// shared by the Prometheus and OTel exporters, so both expose identical
// series. Engine counters are folded into one family per flow (login,
// autologin, ban, token, activation, account, access) and told apart by
// outcome, event or purpose labels.
package internaldefs
