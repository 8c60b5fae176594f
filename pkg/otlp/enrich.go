package otlp

import (
	"go.opentelemetry.io/collector/pdata/pcommon"
)

// IngestSource is the constant stamped into the maple_ingest_source resource
// attribute on every forwarded payload.
const IngestSource = "maple-ingest-gateway"

const (
	attrOrgID   = "maple_org_id"
	attrKeyType = "maple_ingest_key_type"
	attrSource  = "maple_ingest_source"

	// Clients may also try to claim a tenant through the bare key.
	attrClientOrgID = "org_id"
)

// Enrich stamps gateway-attested tenant identity onto every resource entry in
// the request. This is the trust boundary: after Enrich the collector only
// sees identity derived from the authenticated ingest key. pdata resources
// always exist on their entries, so entries without a client-supplied
// resource get the stamps on a fresh empty one.
func (r Request) Enrich(orgID, keyType string) {
	switch r.signal {
	case SignalTraces:
		rss := r.traces.ResourceSpans()
		for i := 0; i < rss.Len(); i++ {
			EnrichResource(rss.At(i).Resource().Attributes(), orgID, keyType)
		}
	case SignalLogs:
		rls := r.logs.ResourceLogs()
		for i := 0; i < rls.Len(); i++ {
			EnrichResource(rls.At(i).Resource().Attributes(), orgID, keyType)
		}
	case SignalMetrics:
		rms := r.metrics.ResourceMetrics()
		for i := 0; i < rms.Len(); i++ {
			EnrichResource(rms.At(i).Resource().Attributes(), orgID, keyType)
		}
	}
}

// EnrichResource rewrites a single resource attribute set. Both reserved
// tenant keys are deleted before the authoritative values are written, so a
// spoofed org_id or maple_org_id never survives.
func EnrichResource(attrs pcommon.Map, orgID, keyType string) {
	attrs.RemoveIf(func(k string, _ pcommon.Value) bool {
		return k == attrClientOrgID || k == attrOrgID
	})

	attrs.PutStr(attrOrgID, orgID)
	attrs.PutStr(attrKeyType, keyType)
	attrs.PutStr(attrSource, IngestSource)
}
