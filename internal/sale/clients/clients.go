// Package clients holds the HTTP adapters behind the orchestrator's resource
// client ports. The request plumbing (instrumented transport, timeout,
// bearer credential, error envelope decoding) is the shared svcclient.Caller;
// this package adds only the mapping from peer responses to the sale
// failure taxonomy. The orchestrator sees ports and taxonomy sentinels,
// never status codes.
package clients
