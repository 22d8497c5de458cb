// Package callable serves typed functions over a small JSON RPC protocol
// compatible with callable-function clients.
//
// A request is a POST whose body is {"data": <payload>}. A successful call
// answers 200 {"result": <value>}; a failed one answers
// {"error": {"status": "<CODE>", "message": "..."}} with the status mapped to
// 401, 400, 404 or 500.
//
// The caller's identity comes from an optional bearer token. A missing token
// yields a nil Request.Auth and the function decides whether anonymous calls
// are allowed; a present but invalid token fails with UNAUTHENTICATED before
// the function runs.
//
//	http.Handle("/rpc/quota.consume", callable.Handle(consume,
//		callable.WithVerifier(verifier),
//		callable.WithErrorMapper(quotaErrors),
//	))
//
// Errors returned by the function are resolved in order: an *Error in the
// chain, then the ErrorMapper, then INTERNAL with a generic message.
package callable
