// Package api implements the HTTP surface of the AMS auth service.
//
// Every endpoint is declared as a Route carrying its auth metadata, a body
// parser and a handler. A request runs through these stages and stops at the
// first failure:
//
//  1. Pre-auth middleware: request id, logging, Prometheus, InfluxDB stats,
//     panic recovery, CORS, body limit
//  2. chi route match (404 and 405 go through the error writer)
//  3. Parse and validate the JSON body
//  4. Authenticate with the route's strategy, unless the route is exempt
//  5. Authorise with auth.Gate, then invoke the handler
//  6. Send the JSON response
//
// writeFailure is the only place where errors become HTTP responses. Bodies
// have the shape {"error":{"statusCode","name","message","code"}}. An
// expired access token yields code TOKEN_EXPIRED so clients know to call
// POST /user/refresh.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
