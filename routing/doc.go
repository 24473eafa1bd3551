// Package routing hosts contract-decorated endpoints on a chi router.
//
// A request is bound to the endpoint's Signature (path, query, header and JSON body
// parameters), the chain is run, and the result is written as JSON. Failures are written as
// RFC 7807 problem details:
//   - binding failures: 422 with one entry per bad parameter
//   - precondition violations: the configured status, detail "Pre-condition violated: <description>"
//   - postcondition violations, configuration and other errors: 500
//
// The Router is also the route table the openapi package generates the schema from.
package routing
