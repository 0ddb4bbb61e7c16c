package domain

import "strings"

// Recognised proxy_type metadata values for subscription plans.
const (
	proxyTypePremiumISP      = "premium isp"
	proxyTypePremiumISPParen = "premium (isp)"
	proxyTypePrivateIPv4     = "private ipv4"
	proxyTypeSharedIPv4      = "shared ipv4"
	proxyTypeIPv6            = "ipv6"
)

// ClassifyPlan maps a plan to its owning cart tab. Explicit rotating and
// static plan types map directly; otherwise the proxy_type metadata decides.
// Unrecognised or missing metadata falls back to the private IPv4 tab, which
// matches the storefront's historical behaviour for unknown proxy types.
func ClassifyPlan(plan Plan) CartTab {
	switch plan.Type {
	case PlanTypeRotating:
		return TabRotating
	case PlanTypeStatic:
		return TabStatic
	}

	switch strings.ToLower(strings.TrimSpace(plan.Metadata.ProxyType)) {
	case proxyTypePremiumISP, proxyTypePremiumISPParen:
		return TabPremiumISP
	case proxyTypePrivateIPv4:
		return TabPrivateIPv4
	case proxyTypeSharedIPv4:
		return TabSharedIPv4
	case proxyTypeIPv6:
		return TabIPv6
	}
	return TabPrivateIPv4
}
