// Package httpclient builds and sends the estimate requests.
//
// A [RequestBuilder] is created once per run from configuration and turns
// each iteration's payload into a POST request with the fixed headers:
//
//	builder, err := httpclient.NewRequestBuilderWithAuth(cfg, provider)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, payload)
//
// [NewClient] returns a client with pooled connections sized for many
// concurrent virtual users and a whole-request timeout.
package httpclient
