/*
Package tokensdk is the client side of the token service RPC.

# Overview

The token service exposes four JSON operations over HTTP:

  - POST /v1/token/generate: mint (or return the cached) access/refresh pair
  - POST /v1/token/parse: describe a token, reporting signature and expiry
  - POST /v1/token/refresh: exchange a refresh token for a new pair
  - POST /v1/token/clear: evict a subject's cached pair

A Client is built either for a fixed base URL or around a Resolver that picks
an instance per call. pkg/balancer provides a round-robin Resolver fed by
registry discovery:

	rr := balancer.NewRoundRobin()
	events, _ := reg.Discover(ctx, "token")
	go rr.Run(ctx, events)

	client := tokensdk.NewClientWithResolver(rr)
	pair, err := client.GenerateToken(ctx, tokensdk.GenerateTokenRequest{
		Sub: "u1",
		Aud: "web",
		Payload: &tokensdk.Payload{Sub: "u1", Group: "admin"},
	})

# Errors

Every failure is an *Error carrying one of the Code* constants:

  - invalid_argument (400): malformed token, wrong kind, expired refresh token,
    unknown audience
  - unauthenticated (401)
  - internal (500): the service could not sign
  - unavailable (503): no endpoint resolved or the connection failed
  - deadline_exceeded (504): the context deadline or client timeout passed

A cancelled context is returned as context.Canceled rather than an *Error.

	if tokensdk.CodeOf(err) == tokensdk.CodeUnavailable {
		// try again later
	}
*/
package tokensdk
