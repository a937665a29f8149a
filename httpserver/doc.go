/*
Package httpserver serves the vaccine research ledger over HTTP.

Handler maps the endpoints documented in package api onto an interfaces.Ledger.
Request bodies are checked against JSON schemas before they reach the ledger,
mutating routes go through Authenticator, which recovers the caller from the
secp256k1 signature headers, and ledger rejections are returned as
{"err": code, "message": ...} with a 4xx status:

	1001 UNAUTHORIZED          403
	1002 INVALID-SUBMISSION    400
	1004 INSUFFICIENT-FUNDS    403
	1005 ALREADY-REGISTERED    409
	1006 DUPLICATE-SUBMISSION  409

Missing records are 404, oracle and snapshot storage failures 502.

Server adds access logging, request metrics, /livez, /readyz, /drain and
/undrain, and optionally pprof under /debug. Prometheus metrics are served on a
separate listener.
*/
package httpserver
