// Package openapi generates the OpenAPI document of a route table and annotates every
// operation with the contracts of its endpoint.
//
// Each annotated operation carries the x-contracts extension, an ordered list (outermost
// decorator first) of
//
//	{"kind": "precondition", "description": "...", "status_code": 404, "enforced": true, "text": "..."}
//
// where description and status_code are null when absent, and x-snapshots when the chain
// captures snapshots.
package openapi
