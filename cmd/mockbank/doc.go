// Package main runs the in-memory mock banking API used by banktransfer during
// development and tests.
//
// HTTP API
//
//	POST /authToken?claim=transfer
//	    Issue an HS256 bearer token. Any username and password are accepted.
//
//	POST /auth/validate
//	    Report whether the bearer token in the Authorization header is valid.
//
//	GET /accounts
//	    List seeded accounts with their status and balance.
//
//	GET /accounts/validate/{id}
//	    Return {"accountId": id, "isValid": bool}; unknown ids get a 404 body
//	    with isValid false.
//
//	GET /accounts/balance/{id}
//	    Return the balance of {id}, or 404 ACCOUNT_NOT_FOUND.
//
//	POST /transfer {"fromAccount", "toAccount", "amount"}
//	    Move funds. The permission level is ENHANCED when a valid bearer token
//	    is sent and BASIC otherwise.
//
//	GET /transactions/history?limit=N&accountNumber=ID
//	    Return recent transfers newest first. Requires a bearer token.
//
//	GET /metrics
//	    Prometheus request counters.
//
// Behaviour
//
//   - Accounts ACC1000 upwards are seeded at start and all state is lost on
//     exit.
//   - Error bodies are {"error": CODE, "message": text}.
//   - Requests are logged at debug level with route, status and duration.
//   - The default listen address is :8123.
package main
