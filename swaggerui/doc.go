// Package swaggerui renders Swagger UI with the swagger-ui-plugin-contracts plugin, which
// displays the x-contracts extension of every operation.
//
// HTML is the customizable primitive, Page the one-call convenience with default assets and
// SetUpRoute wires the page into a router that serves the OpenAPI document.
package swaggerui
